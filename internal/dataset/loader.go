package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ErrEmptyFile is returned when the CSV has no header row.
var ErrEmptyFile = errors.New("csv file is empty")

// Options controls the coercion applied after parsing.
type Options struct {
	// CoerceNumeric converts the net sale value and saleable area columns to numbers.
	CoerceNumeric bool
	// DropMissingUnitType removes rows whose unit type is blank.
	DropMissingUnitType bool
}

// DefaultOptions mirrors the most complete variant of the sales assistant.
func DefaultOptions() Options {
	return Options{CoerceNumeric: true, DropMissingUnitType: true}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2-Jan-2006",
	"2-Jan-06",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

// LoadFile opens path and loads it with opts.
func LoadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load parses CSV from r. Header names are trimmed. Booking Date values are parsed
// as dates; values that do not parse become missing rather than failing the load.
func Load(r io.Reader, opts Options) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make([]*Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		columns[i] = &Column{Name: name, Kind: KindText}
	}

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", rows+2, err)
		}
		if isBlank(record) {
			continue
		}
		for i, c := range columns {
			var raw string
			if i < len(record) {
				raw = strings.TrimSpace(record[i])
			}
			c.Values = append(c.Values, Value{Text: raw, Valid: raw != ""})
		}
		rows++
	}

	t := newTable(columns, rows)
	for _, c := range t.columns {
		switch {
		case c.Name == ColBookingDate:
			coerceDates(c)
		case opts.CoerceNumeric && (c.Name == ColNetSaleValue || c.Name == ColSaleableArea):
			coerceNumbers(c)
		case looksNumeric(c):
			coerceNumbers(c)
		}
	}
	if opts.DropMissingUnitType && t.Has(ColUnitType) {
		t = t.dropWhere(ColUnitType)
	}
	return t, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ParseDate parses the date formats seen in sales exports.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, plausibleYear(t)
		}
	}
	if t, err := cast.ToTimeE(s); err == nil && !t.IsZero() {
		return t, plausibleYear(t)
	}
	return time.Time{}, false
}

// 超出范围的年份（如 0202）多为录入错误，按缺失处理
const (
	minBookingYear = 1900
	maxBookingYear = 2200
)

func plausibleYear(t time.Time) bool {
	return t.Year() >= minBookingYear && t.Year() <= maxBookingYear
}

// ParseNumber parses a number, tolerating thousand separators and a currency prefix.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "AED")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceDates(c *Column) {
	c.Kind = KindDate
	for i := range c.Values {
		v := &c.Values[i]
		v.Time, v.Valid = ParseDate(v.Text)
	}
}

func coerceNumbers(c *Column) {
	c.Kind = KindNumber
	for i := range c.Values {
		v := &c.Values[i]
		v.Num, v.Valid = ParseNumber(v.Text)
	}
}

// looksNumeric reports whether every non-empty value parses as a number.
func looksNumeric(c *Column) bool {
	seen := false
	for _, v := range c.Values {
		if v.Text == "" {
			continue
		}
		if _, ok := ParseNumber(v.Text); !ok {
			return false
		}
		seen = true
	}
	return seen
}

// dropWhere returns a copy of t without rows whose value in col is missing.
func (t *Table) dropWhere(col string) *Table {
	key := t.columns[t.index[col]]
	keep := make([]int, 0, t.rows)
	for i, v := range key.Values {
		if v.Valid {
			keep = append(keep, i)
		}
	}
	if len(keep) == t.rows {
		return t
	}
	columns := make([]*Column, len(t.columns))
	for j, c := range t.columns {
		nc := &Column{Name: c.Name, Kind: c.Kind, Values: make([]Value, 0, len(keep))}
		for _, i := range keep {
			nc.Values = append(nc.Values, c.Values[i])
		}
		columns[j] = nc
	}
	return newTable(columns, len(keep))
}
