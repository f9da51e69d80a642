package dataset

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Field is a column name with its coerced kind.
type Field struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Schema lists the columns of t in file order.
func (t *Table) Schema() []Field {
	fields := make([]Field, len(t.columns))
	for i, c := range t.columns {
		fields[i] = Field{Name: c.Name, Kind: c.Kind.String()}
	}
	return fields
}

// KindOf returns the kind of the named column.
func (t *Table) KindOf(name string) (Kind, bool) {
	i, ok := t.index[name]
	if !ok {
		return KindText, false
	}
	return t.columns[i].Kind, true
}

// SchemaSummary renders one "name  kind" line per column, padded into two columns.
func (t *Table) SchemaSummary() string {
	width := 0
	for _, c := range t.columns {
		if len(c.Name) > width {
			width = len(c.Name)
		}
	}
	var b strings.Builder
	for _, c := range t.columns {
		fmt.Fprintf(&b, "%-*s  %s\n", width, c.Name, c.Kind)
	}
	return b.String()
}

// Sample renders the header and up to n distinct random rows as CSV text.
// Rows keep their original order so the sample reads like the file.
func (t *Table) Sample(n int, rnd *rand.Rand) string {
	if n > t.rows {
		n = t.rows
	}
	picked := rnd.Perm(t.rows)[:n]
	sort.Ints(picked)

	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(t.Names())
	for _, i := range picked {
		_ = w.Write(t.Row(i))
	}
	w.Flush()
	return b.String()
}
