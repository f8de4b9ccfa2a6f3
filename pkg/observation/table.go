package observation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
)

// Table is a validated, immutable observation table. Rows are sorted by
// timestamp, then entity. Nothing returned by a Table aliases its rows.
type Table struct {
	schema    Schema
	rows      []Observation
	entities  []string
	catalogue []string
	years     []int
}

// NewTable validates rows against the schema and builds a table.
// The input slice is copied and never mutated.
func NewTable(schema Schema, rows []Observation) (*Table, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}

	copied := make([]Observation, len(rows))
	for i, r := range rows {
		if err := validateRow(schema, i, r); err != nil {
			return nil, err
		}
		copied[i] = r.Clone()
	}

	sort.SliceStable(copied, func(i, j int) bool {
		if !copied[i].Timestamp.Equal(copied[j].Timestamp) {
			return copied[i].Timestamp.Before(copied[j].Timestamp)
		}
		return copied[i].Entity < copied[j].Entity
	})

	t := &Table{schema: schema, rows: copied}
	t.buildCatalogues()
	return t, nil
}

func validateSchema(s Schema) error {
	if s.EntityDimension == "" {
		return errs.ErrConfiguration.New(fmt.Sprintf("schema %q has no entity dimension", s.Name))
	}
	if len(s.Fields) == 0 {
		return errs.ErrConfiguration.New(fmt.Sprintf("schema %q has no numeric fields", s.Name))
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f == "" {
			return errs.ErrConfiguration.New(fmt.Sprintf("schema %q has an empty field name", s.Name))
		}
		if seen[f] {
			return errs.ErrConfiguration.New(fmt.Sprintf("schema %q lists field %q twice", s.Name, f))
		}
		seen[f] = true
	}
	return nil
}

func validateRow(s Schema, i int, r Observation) error {
	if r.Entity == "" {
		return errs.ErrDataIntegrity.New(fmt.Sprintf("row %d: missing %s", i, s.EntityDimension))
	}
	if r.Timestamp.IsZero() {
		return errs.ErrDataIntegrity.New(fmt.Sprintf("row %d: missing timestamp", i))
	}
	for _, f := range s.Fields {
		v, ok := r.Values[f]
		if !ok {
			return errs.ErrDataIntegrity.New(fmt.Sprintf("row %d: missing field %q", i, f))
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) {
			return errs.ErrDataIntegrity.New(fmt.Sprintf("row %d: field %q is not a non-negative integer (%v)", i, f, v))
		}
	}
	return nil
}

func (t *Table) buildCatalogues() {
	observed := make(map[string]bool)
	years := make(map[int]bool)
	for _, r := range t.rows {
		observed[r.Entity] = true
		years[r.Timestamp.Year()] = true
	}

	t.entities = make([]string, 0, len(observed))
	for e := range observed {
		t.entities = append(t.entities, e)
	}
	sort.Strings(t.entities)

	// Configured catalogue order first, then unlisted observed entities.
	listed := make(map[string]bool, len(t.schema.Catalogue))
	for _, e := range t.schema.Catalogue {
		if listed[e] {
			continue
		}
		listed[e] = true
		t.catalogue = append(t.catalogue, e)
	}
	for _, e := range t.entities {
		if !listed[e] {
			t.catalogue = append(t.catalogue, e)
		}
	}

	for _, y := range t.schema.Years {
		years[y] = true
	}
	t.years = make([]int, 0, len(years))
	for y := range years {
		t.years = append(t.years, y)
	}
	sort.Ints(t.years)
}

// Schema returns the table's schema
func (t *Table) Schema() Schema {
	return t.schema
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the rows
func (t *Table) Rows() []Observation {
	out := make([]Observation, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// Each calls fn for every row in order. fn must not retain or modify the row.
func (t *Table) Each(fn func(i int, o *Observation)) {
	for i := range t.rows {
		fn(i, &t.rows[i])
	}
}

// Entities returns the sorted distinct entities present in the rows
func (t *Table) Entities() []string {
	return append([]string(nil), t.entities...)
}

// Catalogue returns configured entities followed by any other observed ones
func (t *Table) Catalogue() []string {
	return append([]string(nil), t.catalogue...)
}

// Years returns configured and observed years, ascending
func (t *Table) Years() []int {
	return append([]int(nil), t.years...)
}

// HasEntity reports whether entity is in the catalogue
func (t *Table) HasEntity(entity string) bool {
	for _, e := range t.catalogue {
		if e == entity {
			return true
		}
	}
	return false
}

// HasYear reports whether year is configured or observed
func (t *Table) HasYear(year int) bool {
	for _, y := range t.years {
		if y == year {
			return true
		}
	}
	return false
}

// Span returns the minimum and maximum timestamps. ok is false for an empty table.
func (t *Table) Span() (min, max time.Time, ok bool) {
	if len(t.rows) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.rows[0].Timestamp, t.rows[len(t.rows)-1].Timestamp, true
}

// Timestamps returns every row's timestamp in row order
func (t *Table) Timestamps() []time.Time {
	out := make([]time.Time, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Timestamp
	}
	return out
}
