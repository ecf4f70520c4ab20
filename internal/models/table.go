// Package models defines the tabular records and analysis artifacts shared across the engine.
package models

import "time"

// ColumnKind tells how the cells of a canonical column are typed.
type ColumnKind int

// Column kinds.
const (
	KindText ColumnKind = iota
	KindTimestamp
)

// String returns the kind name.
func (k ColumnKind) String() string {
	if k == KindTimestamp {
		return "timestamp"
	}

	return "text"
}

// RawTable is an uploaded table before any column reconciliation.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// NullTime is a timestamp that may be missing. Valid is false when the
// source cell was empty or could not be parsed.
type NullTime struct {
	Time  time.Time
	Valid bool
}

// Cell holds the source text of a value and, for timestamp columns, its
// parsed form.
type Cell struct {
	Text string
	Time NullTime
}

// Column describes a canonical table column.
type Column struct {
	Name string
	Kind ColumnKind
}

// Table is a canonical table: column names resolved and timestamps coerced.
type Table struct {
	Columns []Column
	Rows    [][]Cell
	index   map[string]int
}

// NewTable creates a table and indexes its columns. When two columns share
// a name the first one is the one returned by Index.
func NewTable(columns []Column, rows [][]Cell) *Table {
	t := &Table{
		Columns: columns,
		Rows:    rows,
		index:   make(map[string]int, len(columns)),
	}

	for i, c := range columns {
		if _, ok := t.index[c.Name]; !ok {
			t.index[c.Name] = i
		}
	}

	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Has reports whether a column is present.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}

	return -1
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}

	return names
}

// Text returns the text of a cell. Out of range positions yield "".
func (t *Table) Text(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}

	return t.Rows[row][col].Text
}

// Time returns the parsed timestamp of a cell and whether it is present.
func (t *Table) Time(row, col int) (time.Time, bool) {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return time.Time{}, false
	}

	nt := t.Rows[row][col].Time

	return nt.Time, nt.Valid
}

// NullCount returns how many rows lack a valid timestamp in the column.
// It is zero for text columns and for absent columns.
func (t *Table) NullCount(name string) int {
	col := t.Index(name)
	if col < 0 || t.Columns[col].Kind != KindTimestamp {
		return 0
	}

	n := 0

	for r := range t.Rows {
		if _, ok := t.Time(r, col); !ok {
			n++
		}
	}

	return n
}

// WithColumn returns a copy of the table with a text column set from
// values. An existing column of that name is replaced in place; otherwise
// it is appended. Rows beyond len(values) get an empty cell. The receiver
// is not modified.
func (t *Table) WithColumn(name string, values []string) *Table {
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)

	pos := t.Index(name)
	if pos < 0 {
		pos = len(cols)
		cols = append(cols, Column{Name: name, Kind: KindText})
	}

	rows := make([][]Cell, len(t.Rows))

	for r, src := range t.Rows {
		width := len(cols)
		if len(src) > width {
			width = len(src)
		}

		row := make([]Cell, width)
		copy(row, src)

		var v string
		if r < len(values) {
			v = values[r]
		}

		row[pos] = Cell{Text: v}

		rows[r] = row
	}

	return NewTable(cols, rows)
}
