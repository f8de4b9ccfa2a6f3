// Package engine serves aggregate and submission queries over immutable
// in-memory observation tables.
//
// A Dataset wraps one table. Grids and matrices are built on first use and
// cached; cached values are never modified afterwards, so any number of
// queries can share a Dataset. Reloading data means building a new Dataset
// and swapping it in through the Registry.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/ledge"
	"github.com/MELR22/rissa-plotter/pkg/matrix"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/resample"
	"github.com/MELR22/rissa-plotter/pkg/submissions"
	"github.com/MELR22/rissa-plotter/pkg/timegrid"
)

type matrixKey struct {
	field      string
	frequency  string
	percentile float64
}

// Dataset is an immutable snapshot of one observation table
type Dataset struct {
	table    *observation.Table
	loadedAt time.Time

	yearly *submissions.YearlyCounts
	daily  []submissions.DailyCount

	mu       sync.RWMutex
	grids    map[string]*timegrid.Grid
	matrices map[matrixKey]*matrix.Matrix
}

// NewDataset wraps table. Submission tallies are computed up front since
// they do not depend on any query parameter.
func NewDataset(table *observation.Table) *Dataset {
	return &Dataset{
		table:    table,
		loadedAt: time.Now(),
		yearly:   submissions.Yearly(table),
		daily:    submissions.Daily(table),
		grids:    make(map[string]*timegrid.Grid),
		matrices: make(map[matrixKey]*matrix.Matrix),
	}
}

// Table returns the underlying table
func (d *Dataset) Table() *observation.Table {
	return d.table
}

// Schema returns the table's schema
func (d *Dataset) Schema() observation.Schema {
	return d.table.Schema()
}

// LoadedAt returns when the snapshot was built
func (d *Dataset) LoadedAt() time.Time {
	return d.loadedAt
}

// Grid returns the table's grid at freq, building it on first use
func (d *Dataset) Grid(freq timegrid.Frequency) (*timegrid.Grid, error) {
	d.mu.RLock()
	g, ok := d.grids[freq.String()]
	d.mu.RUnlock()
	if ok {
		return g, nil
	}

	min, max, ok := d.table.Span()
	if !ok {
		return nil, errs.ErrConfiguration.New(fmt.Sprintf("dataset %q has no observations to span a grid", d.Schema().Name))
	}
	g, err := timegrid.Build(min, max, freq)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// another reader may have won the race; keep the first grid
	if existing, ok := d.grids[freq.String()]; ok {
		return existing, nil
	}
	d.grids[freq.String()] = g
	return g, nil
}

// Matrix returns the full per-entity matrix for field, building it on first
// use. The matrix covers every observed entity and the whole grid.
func (d *Dataset) Matrix(field string, freq timegrid.Frequency, p float64) (*matrix.Matrix, error) {
	if err := resample.ValidatePercentile(p); err != nil {
		return nil, err
	}
	if !d.Schema().HasField(field) {
		return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("dataset %q has no field %q", d.Schema().Name, field))
	}

	key := matrixKey{field: field, frequency: freq.String(), percentile: p}
	d.mu.RLock()
	m, ok := d.matrices[key]
	d.mu.RUnlock()
	if ok {
		return m, nil
	}

	grid, err := d.Grid(freq)
	if err != nil {
		return nil, err
	}
	r, err := resample.New(p)
	if err != nil {
		return nil, err
	}
	aggregates, err := r.Resample(resample.FromTable(d.table, grid), []string{field})
	if err != nil {
		return nil, err
	}
	m, err = matrix.Materialize(grid, d.table.Entities(), field, aggregates)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.matrices[key]; ok {
		return existing, nil
	}
	d.matrices[key] = m
	return m, nil
}

// AggregateQuery selects one aggregate series or matrix
type AggregateQuery struct {
	Field     string
	Frequency string

	// Percentile defaults to resample.DefaultPercentile when nil
	Percentile *float64

	// Entities restricts the result; nil means every observed entity
	Entities []string

	// Year restricts the result to one year; 0 means every year
	Year int

	// PerEntity returns the matrix instead of the summed series
	PerEntity bool
}

// Result is the outcome of an aggregate query. Exactly one of Series and
// Matrix is set.
type Result struct {
	Field      string
	Frequency  string
	Percentile float64

	Series *matrix.Series
	Matrix *matrix.Matrix
}

// Aggregate answers an aggregate query. Every parameter is validated before
// any work is done. Entities or years that exist but have no observations in
// scope yield missing values, not an error.
func (d *Dataset) Aggregate(q AggregateQuery) (*Result, error) {
	p := resample.DefaultPercentile
	if q.Percentile != nil {
		p = *q.Percentile
	}
	if err := resample.ValidatePercentile(p); err != nil {
		return nil, err
	}
	if !d.Schema().HasField(q.Field) {
		return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("dataset %q has no field %q", d.Schema().Name, q.Field))
	}

	spec := q.Frequency
	if spec == "" {
		spec = timegrid.DefaultFrequency
	}
	freq, err := timegrid.ParseFrequency(spec)
	if err != nil {
		return nil, err
	}

	for _, e := range q.Entities {
		if !d.table.HasEntity(e) {
			return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("unknown %s %q", d.Schema().EntityDimension, e))
		}
	}
	if q.Year != 0 && !d.table.HasYear(q.Year) {
		return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("unknown year %d", q.Year))
	}

	full, err := d.Matrix(q.Field, freq, p)
	if err != nil {
		return nil, err
	}
	selected := full.Select(matrix.Selection{Entities: q.Entities, Year: q.Year})

	res := &Result{
		Field:      q.Field,
		Frequency:  freq.String(),
		Percentile: p,
	}
	if q.PerEntity {
		res.Matrix = selected
	} else {
		res.Series = matrix.SumOverEntities(selected)
	}
	return res, nil
}

// AggregateFields runs the same query for several fields concurrently.
// Results are in field order. The first error cancels the rest.
func (d *Dataset) AggregateFields(ctx context.Context, fields []string, q AggregateQuery) ([]*Result, error) {
	results := make([]*Result, len(fields))

	g, ctx := errgroup.WithContext(ctx)
	for i, field := range fields {
		i, field := i, field
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fq := q
			fq.Field = field
			res, err := d.Aggregate(fq)
			if err != nil {
				return fmt.Errorf("field %s: %w", field, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// YearlySubmissionCounts returns row counts per (year, entity)
func (d *Dataset) YearlySubmissionCounts() *submissions.YearlyCounts {
	return d.yearly
}

// DailySubmissionCounts returns row counts per day with per-year running totals
func (d *Dataset) DailySubmissionCounts() []submissions.DailyCount {
	return append([]submissions.DailyCount(nil), d.daily...)
}

// SubmissionsInBin counts rows per catalogue entity in the bin nearest date.
// The grid is the dataset's cached grid at freq.
func (d *Dataset) SubmissionsInBin(freqSpec string, date time.Time) (*submissions.BinCounts, error) {
	if freqSpec == "" {
		freqSpec = timegrid.DefaultFrequency
	}
	freq, err := timegrid.ParseFrequency(freqSpec)
	if err != nil {
		return nil, err
	}
	if _, _, ok := d.table.Span(); !ok {
		return nil, errs.ErrInvalidParameter.New("no observations to bin")
	}
	grid, err := d.Grid(freq)
	if err != nil {
		return nil, err
	}
	return submissions.InGrid(d.table, grid, date)
}

// Peaks returns the per-year peak nest count for entity
func (d *Dataset) Peaks(entity string, month int) ([]ledge.YearPeak, error) {
	return ledge.PeakPerYear(d.table, entity, month)
}
