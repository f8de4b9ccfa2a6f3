// Package timegrid builds the fixed reference grid observations are aligned to
// and snaps irregular timestamps onto it.
//
// A grid spans the observed minimum minus Pad to the observed maximum plus
// Pad. Fixed-step frequencies start exactly at min−Pad; calendar frequencies
// start at the latest anchor at or before min−Pad. Either way the last point
// is at or after max+Pad, so every observation has a neighbour on both sides.
//
//	obs:        x    x  x        x
//	grid:  |----|----|----|----|----|----|
//	       min−pad                  max+pad
//
// Grids are immutable. Callers filter results afterwards; a grid is never
// subset between queries.
package timegrid

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
)

// Pad extends the grid on both sides of the observed span
const Pad = 10 * day

// MaxPoints caps grid size; anything larger is treated as a misconfiguration
const MaxPoints = 100_000

// Grid is an ordered, strictly increasing set of reference timestamps
type Grid struct {
	points []time.Time
	freq   Frequency
}

// Build returns the grid from min−Pad to max+Pad at the given frequency
func Build(min, max time.Time, freq Frequency) (*Grid, error) {
	if min.IsZero() || max.IsZero() {
		return nil, errs.ErrConfiguration.New("grid span needs both a minimum and a maximum timestamp")
	}
	if max.Before(min) {
		return nil, errs.ErrConfiguration.New(fmt.Sprintf("grid span is inverted: %s after %s",
			min.Format(time.RFC3339), max.Format(time.RFC3339)))
	}
	if freq.name == "" {
		return nil, errs.ErrConfiguration.New("grid frequency is not set")
	}

	start := min.Add(-Pad)
	end := max.Add(Pad)

	var points []time.Time
	if freq.Anchored() {
		for p := freq.floor(start); ; p = freq.next(p) {
			points = append(points, p)
			if !p.Before(end) {
				break
			}
			if len(points) > MaxPoints {
				return nil, tooLarge(freq)
			}
		}
	} else {
		if freq.step <= 0 {
			return nil, errs.ErrConfiguration.New(fmt.Sprintf("frequency %s has no positive step", freq))
		}
		steps := math.Ceil(float64(end.Sub(start)) / float64(freq.step))
		if steps+1 > MaxPoints {
			return nil, tooLarge(freq)
		}
		n := int(steps)
		points = make([]time.Time, 0, n+1)
		for k := 0; k <= n; k++ {
			points = append(points, start.Add(time.Duration(k)*freq.step))
		}
	}

	if len(points) < 2 {
		return nil, errs.ErrConfiguration.New(fmt.Sprintf("frequency %s yields fewer than two grid points", freq))
	}

	return &Grid{points: points, freq: freq}, nil
}

func tooLarge(freq Frequency) error {
	return errs.ErrConfiguration.New(fmt.Sprintf("frequency %s yields more than %d grid points", freq, MaxPoints))
}

// Frequency returns the frequency the grid was built with
func (g *Grid) Frequency() Frequency {
	return g.freq
}

// Len returns the number of grid points
func (g *Grid) Len() int {
	return len(g.points)
}

// At returns the i-th grid point
func (g *Grid) At(i int) time.Time {
	return g.points[i]
}

// First returns the earliest grid point
func (g *Grid) First() time.Time {
	return g.points[0]
}

// Last returns the latest grid point
func (g *Grid) Last() time.Time {
	return g.points[len(g.points)-1]
}

// Points returns a copy of the grid points
func (g *Grid) Points() []time.Time {
	return append([]time.Time(nil), g.points...)
}

// Index returns the position of t on the grid
func (g *Grid) Index(t time.Time) (int, bool) {
	i := sort.Search(len(g.points), func(k int) bool { return !g.points[k].Before(t) })
	if i < len(g.points) && g.points[i].Equal(t) {
		return i, true
	}
	return 0, false
}

// Contains reports whether t lies within [First, Last]
func (g *Grid) Contains(t time.Time) bool {
	return !t.Before(g.First()) && !t.After(g.Last())
}

// Nearest returns, for each timestamp, the index of the closest grid point
func (g *Grid) Nearest(timestamps []time.Time) []int {
	return nearest(timestamps, g.points)
}

// Assign returns, for each timestamp, the closest grid point
func (g *Grid) Assign(timestamps []time.Time) []time.Time {
	idx := nearest(timestamps, g.points)
	out := make([]time.Time, len(idx))
	for i, k := range idx {
		out[i] = g.points[k]
	}
	return out
}
