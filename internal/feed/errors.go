package feed

import (
	"fmt"
	"strings"
)

// Kind classifies why a tier attempt failed.
type Kind int

const (
	// KindTransport covers network, timeout and HTTP status failures.
	KindTransport Kind = iota
	// KindParse covers malformed payloads, including an HTML page served
	// where data was expected.
	KindParse
)

func (k Kind) String() string {
	if k == KindParse {
		return "parse"
	}
	return "transport"
}

// TierError records one failed attempt in the tier chain. The chain advances
// past it; it only reaches a caller wrapped inside an ExhaustedError.
type TierError struct {
	Tier string
	Kind Kind
	Err  error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Tier, e.Kind, e.Err)
}

func (e *TierError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every tier failed for a fetch. It is the
// only feed error surfaced to users, and only on foreground fetches.
type ExhaustedError struct {
	Source   string
	Attempts []*TierError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return fmt.Sprintf("fetch %q: all tiers failed: %s", e.Source, strings.Join(parts, "; "))
}
