// Package ledge reduces per-ledge nest statuses to numeric nest and chick
// counts, and picks the peak-count observation per season.
//
// It runs before rows are turned into an observation.Table, so the temporal
// engine only ever sees numeric fields.
package ledge

import (
	"fmt"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/observation"
)

// Ledge statuses as entered by observers
const (
	StatusOneChick    = "1 chick visible"
	StatusTwoChicks   = "2 chicks visible"
	StatusThreeChicks = "3 chicks visible"
	StatusOccupied    = "Apparently occupied nest"
)

// Derived field names
const (
	FieldNests       = "nestCount"
	FieldOneChick    = "one_chick"
	FieldTwoChicks   = "two_chicks"
	FieldThreeChicks = "three_chicks"
)

// Fields lists every field Augment derives
var Fields = []string{FieldNests, FieldOneChick, FieldTwoChicks, FieldThreeChicks}

// Counts is the tally of one observation's ledge statuses
type Counts struct {
	Nests       int `json:"nests"`
	OneChick    int `json:"one_chick"`
	TwoChicks   int `json:"two_chicks"`
	ThreeChicks int `json:"three_chicks"`
}

// Tally counts ledges with visible chicks as nests. Apparently occupied
// nests count too when includeAON is set. Unknown statuses are ignored.
func Tally(statuses map[string]string, includeAON bool) Counts {
	var c Counts
	var occupied int
	for _, s := range statuses {
		switch s {
		case StatusOneChick:
			c.OneChick++
		case StatusTwoChicks:
			c.TwoChicks++
		case StatusThreeChicks:
			c.ThreeChicks++
		case StatusOccupied:
			occupied++
		}
	}

	c.Nests = c.OneChick + c.TwoChicks + c.ThreeChicks
	if includeAON {
		c.Nests += occupied
	}
	return c
}

// Augment returns copies of rows with the derived count fields set from
// their statuses. Existing values for other fields are kept.
func Augment(rows []observation.Observation, includeAON bool) []observation.Observation {
	out := make([]observation.Observation, len(rows))
	for i, r := range rows {
		c := r.Clone()
		if c.Values == nil {
			c.Values = make(map[string]float64, len(Fields))
		}
		t := Tally(r.Statuses, includeAON)
		c.Values[FieldNests] = float64(t.Nests)
		c.Values[FieldOneChick] = float64(t.OneChick)
		c.Values[FieldTwoChicks] = float64(t.TwoChicks)
		c.Values[FieldThreeChicks] = float64(t.ThreeChicks)
		out[i] = c
	}
	return out
}

// Breeding season months accepted by PeakPerYear
const (
	FirstMonth = 4
	LastMonth  = 9
)

// YearPeak is the observation with the highest nest count in one year
type YearPeak struct {
	Year      int       `json:"year"`
	Counts    Counts    `json:"counts"`
	Timestamp time.Time `json:"timestamp"`

	ObservationID string `json:"observation_id,omitempty"`
}

// PeakPerYear picks, for each year, the row of entity with the most nests.
// The earliest such row wins a tie. A non-zero month restricts rows to that
// calendar month and must lie within the breeding season.
func PeakPerYear(table *observation.Table, entity string, month int) ([]YearPeak, error) {
	if month != 0 && (month < FirstMonth || month > LastMonth) {
		return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("month %d is outside %d..%d", month, FirstMonth, LastMonth))
	}
	if !table.HasEntity(entity) {
		return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("unknown %s %q", table.Schema().EntityDimension, entity))
	}
	for _, f := range Fields {
		if !table.Schema().HasField(f) {
			return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("dataset %q has no field %q", table.Schema().Name, f))
		}
	}

	var peaks []YearPeak
	best := make(map[int]int) // year -> index into peaks

	table.Each(func(_ int, o *observation.Observation) {
		if o.Entity != entity {
			return
		}
		if month != 0 && int(o.Timestamp.Month()) != month {
			return
		}

		candidate := YearPeak{
			Year: o.Timestamp.Year(),
			Counts: Counts{
				Nests:       int(o.Values[FieldNests]),
				OneChick:    int(o.Values[FieldOneChick]),
				TwoChicks:   int(o.Values[FieldTwoChicks]),
				ThreeChicks: int(o.Values[FieldThreeChicks]),
			},
			Timestamp:     o.Timestamp,
			ObservationID: o.ID,
		}

		i, seen := best[candidate.Year]
		if !seen {
			best[candidate.Year] = len(peaks)
			peaks = append(peaks, candidate)
			return
		}
		// strictly greater keeps the earliest row on ties
		if candidate.Counts.Nests > peaks[i].Counts.Nests {
			peaks[i] = candidate
		}
	})

	return peaks, nil
}
