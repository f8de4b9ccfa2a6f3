package engine

import (
	"context"
	"testing"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pct(p float64) *float64 {
	return &p
}

func row(entity string, ts time.Time, adults, aon float64) observation.Observation {
	return observation.Observation{
		Entity:    entity,
		Timestamp: ts,
		Values:    map[string]float64{"adultCount": adults, "aonCount": aon},
	}
}

// SME grid over these rows: Apr30, May15, May31, Jun15, Jun30
func cityDataset(t *testing.T) *Dataset {
	schema := observation.Schema{
		Name:            "city",
		EntityDimension: "station",
		Fields:          []string{"adultCount", "aonCount"},
		Catalogue:       []string{"X", "Y", "Z"},
		Years:           []int{2023, 2024},
	}
	table, err := observation.NewTable(schema, []observation.Observation{
		row("X", date(2024, time.May, 20), 2, 1),
		row("X", date(2024, time.May, 14), 5, 1),
		row("X", date(2024, time.May, 16), 3, 0),
		row("Y", date(2024, time.May, 15), 4, 2),
		row("Y", date(2024, time.June, 1), 0, 0),
		row("X", date(2024, time.June, 20), 7, 3),
	})
	require.NoError(t, err)
	return NewDataset(table)
}

func TestAggregate_SumAndMissing(t *testing.T) {
	d := cityDataset(t)

	res, err := d.Aggregate(AggregateQuery{Field: "adultCount", Percentile: pct(1)})
	require.NoError(t, err)
	require.Equal(t, "SME", res.Frequency)
	require.Nil(t, res.Matrix)

	s := res.Series
	require.Equal(t, 5, s.Len())
	require.Equal(t, date(2024, time.April, 30), s.Index()[0])

	// Apr30: nothing observed
	require.False(t, s.At(0).Present)
	// May15: max(X: 2,5,3) + Y: 4
	require.Equal(t, 9.0, s.At(1).Value)
	// May31: Y observed a real zero
	require.True(t, s.At(2).Present)
	require.Equal(t, 0.0, s.At(2).Value)
	// Jun15: X 7
	require.Equal(t, 7.0, s.At(3).Value)
	require.False(t, s.At(4).Present)
}

func TestAggregate_DefaultPercentile(t *testing.T) {
	d := cityDataset(t)

	res, err := d.Aggregate(AggregateQuery{Field: "adultCount", Entities: []string{"X"}})
	require.NoError(t, err)
	require.Equal(t, 0.75, res.Percentile)

	// X in May15: [2,3,5] at 0.75 -> h=1.5 -> 3 + 0.5*2
	require.Equal(t, 4.0, res.Series.At(1).Value)
}

func TestAggregate_PerEntityAndFilters(t *testing.T) {
	d := cityDataset(t)

	res, err := d.Aggregate(AggregateQuery{
		Field:      "adultCount",
		Percentile: pct(0),
		Entities:   []string{"Y", "Z"},
		Year:       2024,
		PerEntity:  true,
	})
	require.NoError(t, err)
	require.Nil(t, res.Series)
	require.Equal(t, []string{"Y", "Z"}, res.Matrix.Entities())

	// Z is catalogued but never observed
	z := res.Matrix.Column("Z")
	for i := 0; i < z.Len(); i++ {
		require.False(t, z.At(i).Present)
	}

	// a valid year with no observations is empty, not an error
	empty, err := d.Aggregate(AggregateQuery{Field: "adultCount", Year: 2023})
	require.NoError(t, err)
	require.Zero(t, empty.Series.Len())
}

func TestAggregate_Idempotent(t *testing.T) {
	d := cityDataset(t)
	q := AggregateQuery{Field: "aonCount", Frequency: "W", Percentile: pct(0.5), Entities: []string{"X", "Y"}}

	first, err := d.Aggregate(q)
	require.NoError(t, err)
	second, err := d.Aggregate(q)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// a fresh dataset over the same table agrees too
	third, err := NewDataset(d.Table()).Aggregate(q)
	require.NoError(t, err)
	require.Equal(t, first.Series.Cells(), third.Series.Cells())
}

func TestAggregate_Validation(t *testing.T) {
	d := cityDataset(t)

	cases := []struct {
		name string
		q    AggregateQuery
		kind interface{ Is(error) bool }
	}{
		{"percentile", AggregateQuery{Field: "adultCount", Percentile: pct(1.5)}, errs.ErrInvalidParameter},
		{"field", AggregateQuery{Field: "wingspan"}, errs.ErrInvalidParameter},
		{"frequency", AggregateQuery{Field: "adultCount", Frequency: "Q"}, errs.ErrConfiguration},
		{"entity", AggregateQuery{Field: "adultCount", Entities: []string{"nope"}}, errs.ErrInvalidParameter},
		{"year", AggregateQuery{Field: "adultCount", Year: 1999}, errs.ErrInvalidParameter},
	}
	for _, tc := range cases {
		_, err := d.Aggregate(tc.q)
		require.Error(t, err, tc.name)
		require.True(t, tc.kind.Is(err), tc.name)
	}
}

func TestAggregate_EmptyTable(t *testing.T) {
	table, err := observation.NewTable(observation.Schema{Name: "city", EntityDimension: "station", Fields: []string{"n"}}, nil)
	require.NoError(t, err)

	_, err = NewDataset(table).Aggregate(AggregateQuery{Field: "n"})
	require.True(t, errs.Is(err, errs.ErrConfiguration))
}

func TestAggregateFields(t *testing.T) {
	d := cityDataset(t)

	results, err := d.AggregateFields(context.Background(), []string{"adultCount", "aonCount"}, AggregateQuery{Percentile: pct(1)})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "adultCount", results[0].Field)
	require.Equal(t, "aonCount", results[1].Field)
	require.Equal(t, 3.0, results[1].Series.At(1).Value)

	_, err = d.AggregateFields(context.Background(), []string{"adultCount", "wingspan"}, AggregateQuery{})
	require.True(t, errs.Is(err, errs.ErrInvalidParameter))
}

func TestAggregate_ConcurrentReaders(t *testing.T) {
	d := cityDataset(t)
	want, err := d.Aggregate(AggregateQuery{Field: "adultCount", Frequency: "D"})
	require.NoError(t, err)

	fresh := NewDataset(d.Table())
	done := make(chan *Result, 16)
	for i := 0; i < cap(done); i++ {
		go func() {
			res, err := fresh.Aggregate(AggregateQuery{Field: "adultCount", Frequency: "D"})
			if err != nil {
				done <- nil
				return
			}
			done <- res
		}()
	}
	for i := 0; i < cap(done); i++ {
		res := <-done
		require.NotNil(t, res)
		require.Equal(t, want.Series.Cells(), res.Series.Cells())
	}
}

func TestSubmissions(t *testing.T) {
	d := cityDataset(t)

	yearly := d.YearlySubmissionCounts()
	require.Equal(t, 4, yearly.Count(2024, "X"))
	require.Equal(t, 0, yearly.Count(2024, "Z"))
	require.Equal(t, 0, yearly.Count(2023, "X"))

	daily := d.DailySubmissionCounts()
	require.Len(t, daily, 6)
	require.Equal(t, 6, daily[len(daily)-1].Cumulative)

	bin, err := d.SubmissionsInBin("", date(2024, time.May, 17))
	require.NoError(t, err)
	require.Equal(t, date(2024, time.May, 15), bin.Bin)
	require.Equal(t, map[string]int{"X": 3, "Y": 1, "Z": 0}, bin.Map())

	_, err = d.SubmissionsInBin("SME", date(2030, time.January, 1))
	require.True(t, errs.Is(err, errs.ErrInvalidParameter))

	_, err = d.SubmissionsInBin("bogus", date(2024, time.May, 17))
	require.True(t, errs.Is(err, errs.ErrConfiguration))
}
