// Package matrix turns sparse per-bin aggregates into a dense time × entity
// table where "no observation" is a distinct state from zero.
package matrix

import (
	"fmt"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/resample"
	"github.com/MELR22/rissa-plotter/pkg/timegrid"
)

// Cell is one matrix value. Present is false when nothing was observed for
// the (time, entity) pair; Value is then meaningless.
type Cell struct {
	Value   float64
	Present bool
}

// Matrix is a dense, immutable time × entity table for a single field.
// Every grid point appears as a row and every entity as a column.
type Matrix struct {
	field    string
	index    []time.Time
	entities []string
	cells    [][]Cell // [row][column]
}

// Row is one time point of a matrix, cells ordered like Entities()
type Row struct {
	Time  time.Time
	Cells []Cell
}

// Materialize lays the aggregates for field out over every grid point and
// every entity. Groups absent from aggregates become missing cells.
func Materialize(grid *timegrid.Grid, entities []string, field string, aggregates []resample.Aggregate) (*Matrix, error) {
	index := grid.Points()
	columns := make(map[string]int, len(entities))
	ordered := make([]string, 0, len(entities))
	for _, e := range entities {
		if _, dup := columns[e]; dup {
			continue
		}
		columns[e] = len(ordered)
		ordered = append(ordered, e)
	}

	m := newMatrix(field, index, ordered)

	for _, a := range aggregates {
		row, ok := grid.Index(a.Bin)
		if !ok {
			return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("aggregate bin %s is not on the grid", a.Bin.Format(time.RFC3339)))
		}
		col, ok := columns[a.Entity]
		if !ok {
			return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("aggregate entity %q is not a matrix column", a.Entity))
		}
		v, ok := a.Values[field]
		if !ok {
			return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("aggregate for %q has no field %q", a.Entity, field))
		}
		m.cells[row][col] = Cell{Value: v, Present: true}
	}

	return m, nil
}

func newMatrix(field string, index []time.Time, entities []string) *Matrix {
	cells := make([][]Cell, len(index))
	for i := range cells {
		cells[i] = make([]Cell, len(entities))
	}
	return &Matrix{
		field:    field,
		index:    index,
		entities: entities,
		cells:    cells,
	}
}

// Field returns the aggregated field name
func (m *Matrix) Field() string {
	return m.field
}

// Len returns the number of rows
func (m *Matrix) Len() int {
	return len(m.index)
}

// Index returns a copy of the row timestamps
func (m *Matrix) Index() []time.Time {
	return append([]time.Time(nil), m.index...)
}

// Entities returns a copy of the column entities
func (m *Matrix) Entities() []string {
	return append([]string(nil), m.entities...)
}

// Cell returns the value at (row, entity). Unknown entities are missing.
func (m *Matrix) Cell(row int, entity string) Cell {
	col := m.column(entity)
	if col < 0 {
		return Cell{}
	}
	return m.cells[row][col]
}

func (m *Matrix) column(entity string) int {
	for i, e := range m.entities {
		if e == entity {
			return i
		}
	}
	return -1
}

// Rows returns a copy of every row, for tabular export
func (m *Matrix) Rows() []Row {
	out := make([]Row, len(m.index))
	for i, t := range m.index {
		out[i] = Row{Time: t, Cells: append([]Cell(nil), m.cells[i]...)}
	}
	return out
}

// Column returns one entity's values as a series. An entity that is not a
// column yields an all-missing series.
func (m *Matrix) Column(entity string) *Series {
	s := newSeries(entity, m.index)
	col := m.column(entity)
	if col < 0 {
		return s
	}
	for i := range m.index {
		s.cells[i] = m.cells[i][col]
	}
	return s
}

// Selection narrows a matrix. A nil Entities keeps every column; Year 0
// keeps every row.
type Selection struct {
	Entities []string
	Year     int
}

// Select returns a new matrix restricted to sel. Entities not present in m
// become all-missing columns. Rows outside Year are dropped; the remaining
// rows keep their original grid timestamps.
func (m *Matrix) Select(sel Selection) *Matrix {
	entities := m.entities
	if sel.Entities != nil {
		seen := make(map[string]bool, len(sel.Entities))
		entities = make([]string, 0, len(sel.Entities))
		for _, e := range sel.Entities {
			if seen[e] {
				continue
			}
			seen[e] = true
			entities = append(entities, e)
		}
	}

	rows := make([]int, 0, len(m.index))
	for i, t := range m.index {
		if sel.Year != 0 && t.Year() != sel.Year {
			continue
		}
		rows = append(rows, i)
	}

	index := make([]time.Time, len(rows))
	for i, r := range rows {
		index[i] = m.index[r]
	}

	out := newMatrix(m.field, index, append([]string(nil), entities...))
	for j, e := range entities {
		col := m.column(e)
		if col < 0 {
			continue
		}
		for i, r := range rows {
			out.cells[i][j] = m.cells[r][col]
		}
	}
	return out
}

// SumOverEntities adds the present values of every column per row.
// A row where every column is missing stays missing rather than becoming 0.
func SumOverEntities(m *Matrix) *Series {
	s := newSeries(m.field, m.index)
	s.summed = true
	for i, row := range m.cells {
		var sum float64
		var observed bool
		for _, c := range row {
			if c.Present {
				sum += c.Value
				observed = true
			}
		}
		if observed {
			s.cells[i] = Cell{Value: sum, Present: true}
		}
	}
	return s
}
