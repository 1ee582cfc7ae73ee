// Package diff compares two versions of a dataset by key and classifies
// whether the change is big enough to surface a notification.
package diff

import (
	"maps"

	"github.com/rfoley/tapedeck/internal/dataset"
)

// DefaultThreshold is the changed-row fraction at which a refresh counts as
// significant.
const DefaultThreshold = 0.05

// absoluteTrigger keeps large datasets honest: more than this many changed
// rows is significant even when the fraction stays tiny.
const absoluteTrigger = 10

// Summary describes one old-vs-new comparison. It is recomputed on every
// refresh and never stored.
type Summary struct {
	Added       int
	Removed     int
	Updated     int
	Total       int
	Significant bool
}

// Changes returns the combined number of changed rows.
func (s Summary) Changes() int { return s.Added + s.Removed + s.Updated }

// Detect diffs the two row collections by key. Added rows exist only in
// newRows, removed rows only in oldRows, updated rows in both with different
// cell content. Total is the size of the new collection. A non-positive
// threshold selects DefaultThreshold.
func Detect(oldRows, newRows []dataset.Record, key dataset.KeyFunc, threshold float64) Summary {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	oldByKey := keyed(oldRows, key)
	newByKey := keyed(newRows, key)

	s := Summary{Total: len(newRows)}
	for k, nr := range newByKey {
		or, ok := oldByKey[k]
		if !ok {
			s.Added++
			continue
		}
		if !maps.Equal(or, nr) {
			s.Updated++
		}
	}
	for k := range oldByKey {
		if _, ok := newByKey[k]; !ok {
			s.Removed++
		}
	}

	ratio := float64(s.Changes()) / float64(max(1, s.Total))
	s.Significant = ratio >= threshold || s.Changes() > absoluteTrigger
	return s
}

func keyed(rows []dataset.Record, key dataset.KeyFunc) map[string]dataset.Record {
	m := make(map[string]dataset.Record, len(rows))
	for _, r := range rows {
		m[key(r)] = r
	}
	return m
}
