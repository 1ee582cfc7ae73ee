// Package dataset models the tabular payloads tapedeck keeps fresh: ordered
// rows keyed into records by a header row, plus the delta-merge operation the
// sync layer applies to them.
package dataset

import "maps"

// Record is one row keyed by column name. Values keep their literal wire form
// ("3.14" stays "3.14"); interpretation is left to consumers.
type Record map[string]string

// Table is an ordered collection of records plus the header that produced
// them. Row order is the order the source returned.
type Table struct {
	Columns []string
	Rows    []Record
}

// KeyFunc extracts the identity of a record, e.g. its ticker symbol.
type KeyFunc func(Record) string

// KeyColumn returns a KeyFunc reading the named column.
func KeyColumn(name string) KeyFunc {
	return func(r Record) string { return r[name] }
}

// Key returns the table's default KeyFunc: the first column. Datasets with a
// dedicated identity column should use KeyColumn instead.
func (t Table) Key() KeyFunc {
	if len(t.Columns) == 0 {
		return func(Record) string { return "" }
	}
	return KeyColumn(t.Columns[0])
}

// FromGrid converts a raw 2-D grid into a Table. The first row is the header;
// every following row is keyed into a Record by column name. Short rows are
// padded with empty strings, excess cells are dropped.
func FromGrid(grid [][]string) (Table, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return Table{}, ErrNoHeader
	}
	header := make([]string, len(grid[0]))
	copy(header, grid[0])

	rows := make([]Record, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(cells) {
				rec[col] = cells[i]
			} else {
				rec[col] = ""
			}
		}
		rows = append(rows, rec)
	}
	return Table{Columns: header, Rows: rows}, nil
}

// Clone returns a deep copy. Mutating the copy never affects the receiver.
func (t Table) Clone() Table {
	out := Table{Columns: make([]string, len(t.Columns))}
	copy(out.Columns, t.Columns)
	if t.Rows == nil {
		return out
	}
	out.Rows = make([]Record, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = maps.Clone(r)
	}
	return out
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Grid renders the table back into header-plus-rows form, the shape the CSV
// export and the snapshot endpoint use.
func (t Table) Grid() [][]string {
	grid := make([][]string, 0, len(t.Rows)+1)
	header := make([]string, len(t.Columns))
	copy(header, t.Columns)
	grid = append(grid, header)
	for _, r := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			cells[i] = r[col]
		}
		grid = append(grid, cells)
	}
	return grid
}
