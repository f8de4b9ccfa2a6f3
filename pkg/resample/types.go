package resample

import (
	"time"

	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/timegrid"
)

// DefaultPercentile balances rejecting over-counted submissions against
// undercounting
const DefaultPercentile = 0.75

// Binned is one observation already snapped to a grid point
type Binned struct {
	Bin    time.Time
	Entity string
	Values map[string]float64
}

// Aggregate is the reduced value of every field for one (bin, entity) group
type Aggregate struct {
	Bin    time.Time
	Entity string

	// Number of observations in the group
	Count uint64

	// Percentile of each field across the group
	Values map[string]float64
}

// FromTable snaps every row of the table onto the grid.
// Rows share no maps with the table.
func FromTable(table *observation.Table, grid *timegrid.Grid) []Binned {
	bins := grid.Assign(table.Timestamps())
	fields := table.Schema().Fields

	out := make([]Binned, 0, table.Len())
	table.Each(func(i int, o *observation.Observation) {
		values := make(map[string]float64, len(fields))
		for _, f := range fields {
			values[f] = o.Values[f]
		}
		out = append(out, Binned{Bin: bins[i], Entity: o.Entity, Values: values})
	})
	return out
}
