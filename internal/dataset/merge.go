package dataset

import (
	"errors"
	"maps"
)

// ErrNoHeader is returned by FromGrid for a grid without a header row.
var ErrNoHeader = errors.New("dataset: grid has no header row")

// Op is a delta operation kind.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Change is one keyed mutation inside a delta batch.
type Change struct {
	Key string
	Op  Op
	Row Record
}

// Apply merges a batch of changes into the table and returns the result; the
// receiver is left untouched. Changes are applied in the order given, so when
// a key appears twice the last op wins. Upserts replace a matching row in
// place or append unknown keys at the end; deletes of unknown keys are no-ops.
// Applying the same batch twice yields the same table.
func (t Table) Apply(changes []Change, key KeyFunc) Table {
	if key == nil {
		key = t.Key()
	}
	out := t.Clone()

	index := make(map[string]int, len(out.Rows))
	for i, r := range out.Rows {
		index[key(r)] = i
	}

	for _, ch := range changes {
		switch ch.Op {
		case OpUpsert:
			row := maps.Clone(ch.Row)
			if i, ok := index[ch.Key]; ok {
				out.Rows[i] = row
				continue
			}
			index[ch.Key] = len(out.Rows)
			out.Rows = append(out.Rows, row)

		case OpDelete:
			i, ok := index[ch.Key]
			if !ok {
				continue
			}
			out.Rows = append(out.Rows[:i], out.Rows[i+1:]...)
			delete(index, ch.Key)
			for k, j := range index {
				if j > i {
					index[k] = j - 1
				}
			}
		}
	}
	return out
}
