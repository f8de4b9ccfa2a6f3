// Package submissions tallies raw observation rows to report survey effort.
// Unlike the aggregate matrix, a zero here is a real count: submissions
// have no notion of "unmeasured".
package submissions

import (
	"fmt"
	"sort"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/timegrid"
)

// YearlyCounts holds row counts for every (year, entity) in the catalogue
type YearlyCounts struct {
	Years    []int    `json:"years"`
	Entities []string `json:"entities"`

	// Counts[i][j] is the count for Years[i] and Entities[j]
	Counts [][]int `json:"counts"`
}

// Count returns the count for (year, entity), 0 when either is unknown
func (y *YearlyCounts) Count(year int, entity string) int {
	for i, yr := range y.Years {
		if yr != year {
			continue
		}
		for j, e := range y.Entities {
			if e == entity {
				return y.Counts[i][j]
			}
		}
	}
	return 0
}

// Total returns the count over all entities for year
func (y *YearlyCounts) Total(year int) int {
	var total int
	for i, yr := range y.Years {
		if yr != year {
			continue
		}
		for _, c := range y.Counts[i] {
			total += c
		}
	}
	return total
}

// Yearly counts rows per (year, entity), reindexed over the full year and
// entity catalogue with 0 fill.
func Yearly(table *observation.Table) *YearlyCounts {
	years := table.Years()
	entities := table.Catalogue()

	yearIdx := make(map[int]int, len(years))
	for i, y := range years {
		yearIdx[y] = i
	}
	entityIdx := make(map[string]int, len(entities))
	for j, e := range entities {
		entityIdx[e] = j
	}

	counts := make([][]int, len(years))
	for i := range counts {
		counts[i] = make([]int, len(entities))
	}

	table.Each(func(_ int, o *observation.Observation) {
		counts[yearIdx[o.Timestamp.Year()]][entityIdx[o.Entity]]++
	})

	return &YearlyCounts{Years: years, Entities: entities, Counts: counts}
}

// DailyCount is the number of rows on one calendar day and the running
// total for that day's year up to and including it.
type DailyCount struct {
	Year       int       `json:"year"`
	Date       time.Time `json:"date"`
	Count      int       `json:"count"`
	Cumulative int       `json:"cumulative"`
}

// Daily counts rows per calendar day. Only days with at least one row are
// returned, in date order; Cumulative restarts every year.
func Daily(table *observation.Table) []DailyCount {
	// keyed on the calendar date, not time.Time: equal offsets decoded
	// separately carry distinct locations
	type day struct {
		y int
		m time.Month
		d int
	}
	perDay := make(map[day]int)
	table.Each(func(_ int, o *observation.Observation) {
		y, m, d := o.Timestamp.Date()
		perDay[day{y, m, d}]++
	})

	days := make([]day, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		a, b := days[i], days[j]
		if a.y != b.y {
			return a.y < b.y
		}
		if a.m != b.m {
			return a.m < b.m
		}
		return a.d < b.d
	})

	out := make([]DailyCount, len(days))
	running := make(map[int]int)
	for i, d := range days {
		running[d.y] += perDay[d]
		out[i] = DailyCount{
			Year:       d.y,
			Date:       time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC),
			Count:      perDay[d],
			Cumulative: running[d.y],
		}
	}
	return out
}

// BinCounts holds per-entity row counts for a single grid bin
type BinCounts struct {
	Bin       time.Time `json:"bin"`
	Frequency string    `json:"frequency"`
	Entities  []string  `json:"entities"`
	Counts    []int     `json:"counts"`
}

// Count returns the count for entity, 0 when unknown
func (b *BinCounts) Count(entity string) int {
	for i, e := range b.Entities {
		if e == entity {
			return b.Counts[i]
		}
	}
	return 0
}

// Map returns the counts keyed by entity
func (b *BinCounts) Map() map[string]int {
	out := make(map[string]int, len(b.Entities))
	for i, e := range b.Entities {
		out[e] = b.Counts[i]
	}
	return out
}

// InBin builds a grid over the table span at freq, snaps every row to it and
// counts rows per entity in the bin nearest to date. date must fall within
// the grid. Every catalogue entity appears in the result.
func InBin(table *observation.Table, freq timegrid.Frequency, date time.Time) (*BinCounts, error) {
	min, max, ok := table.Span()
	if !ok {
		return nil, errs.ErrInvalidParameter.New("no observations to bin")
	}

	grid, err := timegrid.Build(min, max, freq)
	if err != nil {
		return nil, err
	}
	return InGrid(table, grid, date)
}

// InGrid is InBin over a grid the caller already built
func InGrid(table *observation.Table, grid *timegrid.Grid, date time.Time) (*BinCounts, error) {
	if !grid.Contains(date) {
		return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("date %s is outside the grid [%s, %s]",
			date.Format(time.DateOnly), grid.First().Format(time.DateOnly), grid.Last().Format(time.DateOnly)))
	}
	target := grid.Nearest([]time.Time{date})[0]

	entities := table.Catalogue()
	idx := make(map[string]int, len(entities))
	for i, e := range entities {
		idx[e] = i
	}

	counts := make([]int, len(entities))
	bins := grid.Nearest(table.Timestamps())
	table.Each(func(i int, o *observation.Observation) {
		if bins[i] == target {
			counts[idx[o.Entity]]++
		}
	})

	return &BinCounts{
		Bin:       grid.At(target),
		Frequency: grid.Frequency().String(),
		Entities:  entities,
		Counts:    counts,
	}, nil
}
