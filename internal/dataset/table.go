// Package dataset loads sales CSV files into a small typed, column-oriented table.
package dataset

import (
	"fmt"
	"time"
)

// Well-known columns of the sales export.
const (
	ColBookingDate  = "Booking Date"
	ColUnitType     = "Unit Type"
	ColNetSaleValue = "Net Sale Value (AED)"
	ColNationality  = "P1 Nationality"
	ColProjectName  = "Project Name"
	ColSaleableArea = "Total Saleable Area (Sqft)"
)

// Kind is the coerced type of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// Value is a single cell. Valid is false for the missing marker: empty input or a
// value that failed coercion.
type Value struct {
	Text  string
	Num   float64
	Time  time.Time
	Valid bool
}

// Column holds the values of one column in row order.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// Table is an immutable, column-oriented view of a loaded CSV.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// MissingColumnError reports a column that an operation needed but the table lacks.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("dataset has no column %q", e.Column)
}

func newTable(columns []*Column, rows int) *Table {
	t := &Table{columns: columns, index: make(map[string]int, len(columns)), rows: rows}
	for i, c := range columns {
		t.index[c.Name] = i
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Names returns column names in file order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column or a *MissingColumnError.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	return t.columns[i], nil
}

// Row returns the raw text of row i in column order.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.columns))
	for j, c := range t.columns {
		out[j] = c.Values[i].Text
	}
	return out
}
