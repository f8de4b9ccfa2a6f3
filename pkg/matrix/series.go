package matrix

import (
	"time"
)

// Series is a single column of values over a time index
type Series struct {
	name  string
	index []time.Time
	cells []Cell

	// summed is set for SumOverEntities output, where a missing point means
	// nothing was observed at all
	summed bool
}

// Point is a JSON-friendly series entry. Value is nil when missing.
type Point struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

func newSeries(name string, index []time.Time) *Series {
	return &Series{
		name:  name,
		index: append([]time.Time(nil), index...),
		cells: make([]Cell, len(index)),
	}
}

// Name returns the series label (entity or field)
func (s *Series) Name() string {
	return s.name
}

// Len returns the number of points
func (s *Series) Len() int {
	return len(s.index)
}

// Index returns a copy of the timestamps
func (s *Series) Index() []time.Time {
	return append([]time.Time(nil), s.index...)
}

// At returns the i-th cell
func (s *Series) At(i int) Cell {
	return s.cells[i]
}

// Cells returns a copy of the cells
func (s *Series) Cells() []Cell {
	return append([]Cell(nil), s.cells...)
}

// Filled is the consumer view of Points: missing points are rendered as 0,
// except on a summed series, where a point with no observed entity stays nil.
// The series itself keeps the distinction.
func (s *Series) Filled() []Point {
	out := s.Points()
	if s.summed {
		return out
	}
	for i := range out {
		if out[i].Value == nil {
			zero := 0.0
			out[i].Value = &zero
		}
	}
	return out
}

// Points returns the series as time/value pairs
func (s *Series) Points() []Point {
	out := make([]Point, len(s.index))
	for i, t := range s.index {
		out[i].Time = t
		if s.cells[i].Present {
			v := s.cells[i].Value
			out[i].Value = &v
		}
	}
	return out
}
