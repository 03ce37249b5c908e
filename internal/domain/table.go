package domain

import (
	"math"
	"time"
)

// Table is a timestamp-indexed numeric table with a fixed column order.
// Missing cells are NaN until a fill pass resolves them; consumers past the
// aligner may assume every cell is finite.
//
// Rows are strictly time-ordered and unique by timestamp after alignment.
// Derivation stages append columns to copies rather than editing source
// cells in place.
type Table struct {
	Columns    []string
	Timestamps []time.Time
	Rows       [][]float64
}

// NewTable creates an empty table with the given column order.
func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Column returns a copy of the named column, or nil when absent.
func (t *Table) Column(name string) []float64 {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	col := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		col[i] = row[idx]
	}
	return col
}

// AppendRow adds one row. The value slice length must match the column count.
func (t *Table) AppendRow(ts time.Time, values []float64) {
	t.Timestamps = append(t.Timestamps, ts)
	t.Rows = append(t.Rows, values)
}

// AddColumn appends a derived column. The value count must match the row count.
func (t *Table) AddColumn(name string, values []float64) {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns:    append([]string(nil), t.Columns...),
		Timestamps: append([]time.Time(nil), t.Timestamps...),
		Rows:       make([][]float64, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]float64(nil), row...)
	}
	return out
}

// Coverage returns the fraction of non-NaN cells in row i.
func (t *Table) Coverage(i int) float64 {
	if len(t.Columns) == 0 {
		return 0
	}
	var present int
	for _, v := range t.Rows[i] {
		if !math.IsNaN(v) {
			present++
		}
	}
	return float64(present) / float64(len(t.Columns))
}

// Value returns the cell at (row, column name) and whether the column exists
// and the cell is finite.
func (t *Table) Value(row int, name string) (float64, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return 0, false
	}
	v := t.Rows[row][idx]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
