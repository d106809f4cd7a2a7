// Package tabular reads and writes the tabular files idveil operates on.
//
// A Table preserves column order and stores every cell as a string; the
// engine never needs typed cells, and string round-tripping keeps CSV and
// spreadsheet content byte-stable apart from the columns it deliberately
// changes.
package tabular

import (
	"github.com/arden-health/idveil/errors"
)

// Table is an ordered-column, row-major tabular file in memory.
type Table struct {
	Columns []string
	Rows    [][]string // every row has len(Columns) cells
}

// NewTable creates an empty table with the given column order.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// Cell returns the value at (row, column name).
func (t *Table) Cell(row int, column string) (string, error) {
	idx, ok := t.ColumnIndex(column)
	if !ok {
		return "", errors.NewMissingColumnError("column %q not present", column)
	}
	if row < 0 || row >= len(t.Rows) {
		return "", errors.Newf("row %d out of range (table has %d rows)", row, len(t.Rows))
	}
	return t.Rows[row][idx], nil
}

// SetCell sets the value at (row, column name).
func (t *Table) SetCell(row int, column, value string) error {
	idx, ok := t.ColumnIndex(column)
	if !ok {
		return errors.NewMissingColumnError("column %q not present", column)
	}
	if row < 0 || row >= len(t.Rows) {
		return errors.Newf("row %d out of range (table has %d rows)", row, len(t.Rows))
	}
	t.Rows[row][idx] = value
	return nil
}

// AppendRow adds a row, padding or truncating it to the column count.
func (t *Table) AppendRow(cells ...string) {
	t.Rows = append(t.Rows, padRow(cells, len(t.Columns)))
}

// AppendColumn adds a column at the end of the column order. values supplies
// one cell per existing row; missing entries become empty cells.
func (t *Table) AppendColumn(name string, values []string) {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		t.Rows[i] = append(t.Rows[i], v)
	}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.Columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// padRow fits cells to width, padding with empty strings or truncating.
func padRow(cells []string, width int) []string {
	row := make([]string, width)
	copy(row, cells)
	return row
}
