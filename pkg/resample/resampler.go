package resample

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/errs"
)

// Resampler reduces same-bin, same-entity observations to one value per field
type Resampler struct {
	percentile float64
}

// New creates a resampler for percentile p, which must lie in [0, 1]
func New(p float64) (*Resampler, error) {
	if err := ValidatePercentile(p); err != nil {
		return nil, err
	}
	return &Resampler{percentile: p}, nil
}

// Percentile returns the configured percentile
func (r *Resampler) Percentile() float64 {
	return r.percentile
}

// ValidatePercentile rejects values outside [0, 1]. Values are never clamped.
func ValidatePercentile(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return errs.ErrInvalidParameter.New(fmt.Sprintf("percentile %v is outside [0, 1]", p))
	}
	return nil
}

type groupKey struct {
	bin    int64
	entity string
}

type group struct {
	bin    time.Time
	entity string
	rows   int
	values map[string][]float64
}

// Resample groups rows by (bin, entity) and computes the configured
// percentile of each field independently.
//
// Only groups with at least one row appear in the result; densifying the
// empty ones is left to the matrix. The result is sorted by bin, then entity.
func (r *Resampler) Resample(rows []Binned, fields []string) ([]Aggregate, error) {
	groups := make(map[groupKey]*group)

	for i, row := range rows {
		key := groupKey{bin: row.Bin.UnixNano(), entity: row.Entity}

		g, exists := groups[key]
		if !exists {
			g = &group{
				bin:    row.Bin,
				entity: row.Entity,
				values: make(map[string][]float64, len(fields)),
			}
			groups[key] = g
		}
		g.rows++

		for _, f := range fields {
			v, ok := row.Values[f]
			if !ok {
				return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("row %d (%s) has no field %q", i, row.Entity, f))
			}
			g.values[f] = append(g.values[f], v)
		}
	}

	out := make([]Aggregate, 0, len(groups))
	for _, g := range groups {
		agg := Aggregate{
			Bin:    g.bin,
			Entity: g.entity,
			Count:  uint64(g.rows),
			Values: make(map[string]float64, len(fields)),
		}
		for _, f := range fields {
			agg.Values[f] = Quantile(g.values[f], r.percentile)
		}
		out = append(out, agg)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Bin.Equal(out[j].Bin) {
			return out[i].Bin.Before(out[j].Bin)
		}
		return out[i].Entity < out[j].Entity
	})

	return out, nil
}

// Resample is a convenience wrapper creating a one-off resampler for p
func Resample(rows []Binned, fields []string, p float64) ([]Aggregate, error) {
	r, err := New(p)
	if err != nil {
		return nil, err
	}
	return r.Resample(rows, fields)
}

// Quantile computes the p-th quantile of values with linear interpolation
// between order statistics. values is not modified.
func Quantile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
