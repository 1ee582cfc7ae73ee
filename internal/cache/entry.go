package cache

import "time"

// Entry is one cached payload. Entries are created on fetch success and
// replaced wholesale on refresh; no code path mutates a stored entry.
type Entry[T any] struct {
	Key      string        `json:"key"`
	Data     T             `json:"data"`
	StoredAt time.Time     `json:"storedAt"`
	TTL      time.Duration `json:"ttl"`
}

// DeltaEntry is an Entry written by the delta-sync path. Version is
// monotonically non-decreasing for a given key; LastUpdated tracks the most
// recent merge rather than the original snapshot time.
type DeltaEntry[T any] struct {
	Entry[T]
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
	IsDelta     bool      `json:"isDelta"`
}

// Freshness classifies an entry's age. It is derived on every read, never
// stored.
type Freshness int

const (
	Missing Freshness = iota
	Fresh
	Stale
	Expired
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Expired:
		return "expired"
	default:
		return "missing"
	}
}

// Usable reports whether an entry in this state may be served to a consumer
// without a blocking fetch.
func (f Freshness) Usable() bool { return f == Fresh || f == Stale }
