package dataset

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = ` Booking Date , Unit Type ,Net Sale Value (AED),P1 Nationality,Project Name,Total Saleable Area (Sqft)
2024-01-15,Apartment,"1,200,000",India,Marina Heights,850
2024-01-20,Villa,3500000,UAE,Palm Gardens,3200
not-a-date,Apartment,900000,India,Marina Heights,700
2024-02-03,,450000,UK,Downtown One,400
2024-02-10,Townhouse,abc,Pakistan,Palm Gardens,1800
`

func TestLoadTrimsHeadersAndCoerces(t *testing.T) {
	tbl, err := Load(strings.NewReader(salesCSV), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{ColBookingDate, ColUnitType, ColNetSaleValue, ColNationality, ColProjectName, ColSaleableArea}, tbl.Names())
	// the row with a blank unit type is dropped
	assert.Equal(t, 4, tbl.Len())

	dates, err := tbl.Column(ColBookingDate)
	require.NoError(t, err)
	assert.Equal(t, KindDate, dates.Kind)
	assert.True(t, dates.Values[0].Valid)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), dates.Values[0].Time)
	assert.False(t, dates.Values[2].Valid, "unparseable date must become missing")
	assert.Equal(t, "not-a-date", dates.Values[2].Text)

	sales, err := tbl.Column(ColNetSaleValue)
	require.NoError(t, err)
	assert.Equal(t, KindNumber, sales.Kind)
	assert.Equal(t, 1200000.0, sales.Values[0].Num)
	assert.False(t, sales.Values[3].Valid, "unparseable number must become missing")

	area, _ := tbl.KindOf(ColSaleableArea)
	assert.Equal(t, KindNumber, area)
}

func TestLoadWithoutOptionalCoercion(t *testing.T) {
	tbl, err := Load(strings.NewReader(salesCSV), Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, tbl.Len())

	// the net sale column contains "abc", so without explicit coercion it stays text
	kind, ok := tbl.KindOf(ColNetSaleValue)
	require.True(t, ok)
	assert.Equal(t, KindText, kind)

	// a fully numeric column is still inferred
	kind, _ = tbl.KindOf(ColSaleableArea)
	assert.Equal(t, KindNumber, kind)
}

func TestLoadMissingColumnsIsNotAnError(t *testing.T) {
	tbl, err := Load(strings.NewReader("Region,Amount\nNorth,10\n"), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	_, err = tbl.Column(ColBookingDate)
	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, ColBookingDate, missing.Column)
}

func TestLoadRaggedAndBlankRows(t *testing.T) {
	tbl, err := Load(strings.NewReader("A,B,C\n1,x\n\n,,\n2,y,z\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"1", "x", ""}, tbl.Row(0))
}

func TestLoadEmpty(t *testing.T) {
	_, err := Load(strings.NewReader(""), DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestParseNumber(t *testing.T) {
	cases := map[string]struct {
		want float64
		ok   bool
	}{
		"1,250.50":  {1250.5, true},
		"AED 1,000": {1000, true},
		" 42 ":      {42, true},
		"":          {0, false},
		"n/a":       {0, false},
		"NaN":       {0, false},
	}
	for in, tc := range cases {
		got, ok := ParseNumber(in)
		assert.Equal(t, tc.ok, ok, in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, in)
		}
	}
}

func TestParseDateLayouts(t *testing.T) {
	for _, in := range []string{"2024-03-05", "3/5/2024", "5-Mar-2024", "Mar 5, 2024", "2024-03-05 10:30:00"} {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, 2024, got.Year(), in)
		assert.Equal(t, time.March, got.Month(), in)
		assert.Equal(t, 5, got.Day(), in)
	}
	_, ok := ParseDate("31/31/2024")
	assert.False(t, ok)
	_, ok = ParseDate("0202-05-01")
	assert.False(t, ok)
}

func TestSchemaSummaryAndSample(t *testing.T) {
	tbl, err := Load(strings.NewReader(salesCSV), DefaultOptions())
	require.NoError(t, err)

	summary := tbl.SchemaSummary()
	assert.Contains(t, summary, "Booking Date")
	assert.Contains(t, summary, "date")
	assert.Equal(t, 6, strings.Count(summary, "\n"))

	fields := tbl.Schema()
	require.Len(t, fields, 6)
	assert.Equal(t, Field{Name: ColNetSaleValue, Kind: "number"}, fields[2])

	sample := tbl.Sample(2, rand.New(rand.NewSource(1)))
	lines := strings.Split(strings.TrimSpace(sample), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Booking Date,Unit Type"))

	all := tbl.Sample(100, rand.New(rand.NewSource(1)))
	assert.Len(t, strings.Split(strings.TrimSpace(all), "\n"), tbl.Len()+1)
}
