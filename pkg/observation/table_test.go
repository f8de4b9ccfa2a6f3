package observation

import (
	"math"
	"testing"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/stretchr/testify/require"
)

var citySchema = Schema{
	Name:            "city",
	EntityDimension: "station",
	Fields:          []string{"adultCount", "aonCount"},
	Catalogue:       []string{"ST-9", "ST-1"},
	Years:           []int{2023},
}

func obs(entity string, ts time.Time, adults, aon float64) Observation {
	return Observation{
		Entity:    entity,
		Timestamp: ts,
		Values:    map[string]float64{"adultCount": adults, "aonCount": aon},
	}
}

func TestNewTable_SortsAndCatalogues(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 5, d, 12, 0, 0, 0, time.UTC) }
	rows := []Observation{
		obs("ST-2", day(3), 4, 1),
		obs("ST-1", day(1), 2, 0),
		obs("ST-1", day(3), 5, 2),
	}

	table, err := NewTable(citySchema, rows)
	require.NoError(t, err)

	require.Equal(t, 3, table.Len())
	require.Equal(t, []string{"ST-1", "ST-2"}, table.Entities())
	require.Equal(t, []string{"ST-9", "ST-1", "ST-2"}, table.Catalogue())
	require.Equal(t, []int{2023, 2024}, table.Years())

	got := table.Rows()
	require.Equal(t, "ST-1", got[0].Entity)
	require.Equal(t, "ST-1", got[1].Entity)
	require.Equal(t, "ST-2", got[2].Entity)

	min, max, ok := table.Span()
	require.True(t, ok)
	require.Equal(t, day(1), min)
	require.Equal(t, day(3), max)

	require.True(t, table.HasEntity("ST-9"))
	require.False(t, table.HasEntity("ST-7"))
	require.True(t, table.HasYear(2023))
	require.False(t, table.HasYear(2022))
}

func TestNewTable_DoesNotAliasInput(t *testing.T) {
	rows := []Observation{obs("ST-1", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 2, 0)}

	table, err := NewTable(citySchema, rows)
	require.NoError(t, err)

	rows[0].Values["adultCount"] = 99
	require.Equal(t, float64(2), table.Rows()[0].Values["adultCount"])
}

func TestNewTable_DataIntegrity(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]Observation{
		"missing entity":    obs("", ts, 1, 1),
		"missing timestamp": obs("ST-1", time.Time{}, 1, 1),
		"missing field":     {Entity: "ST-1", Timestamp: ts, Values: map[string]float64{"adultCount": 1}},
		"negative":          obs("ST-1", ts, -1, 0),
		"fractional":        obs("ST-1", ts, 1.5, 0),
		"nan":               obs("ST-1", ts, math.NaN(), 0),
	}

	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTable(citySchema, []Observation{row})
			require.Error(t, err)
			require.True(t, errs.Is(err, errs.ErrDataIntegrity), "got %v", err)
		})
	}
}

func TestNewTable_BadSchema(t *testing.T) {
	_, err := NewTable(Schema{Name: "x", Fields: []string{"a"}}, nil)
	require.True(t, errs.Is(err, errs.ErrConfiguration))

	_, err = NewTable(Schema{Name: "x", EntityDimension: "site"}, nil)
	require.True(t, errs.Is(err, errs.ErrConfiguration))

	_, err = NewTable(Schema{Name: "x", EntityDimension: "site", Fields: []string{"a", "a"}}, nil)
	require.True(t, errs.Is(err, errs.ErrConfiguration))
}

func TestTable_EmptySpan(t *testing.T) {
	table, err := NewTable(citySchema, nil)
	require.NoError(t, err)

	_, _, ok := table.Span()
	require.False(t, ok)
	require.Equal(t, []string{"ST-9", "ST-1"}, table.Catalogue())
}
