package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/engine"
	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/resample"
)

// ParseAggregateQuery reads aggregate parameters from a query string:
//
//	field       numeric field (repeatable on /aggregate)
//	frequency   grid frequency, dataset default when empty
//	percentile  0..1, dataset default when empty
//	entity      entity filter (repeatable)
//	year        year filter
//	per_entity  true for one column per entity
//	fill        true to render missing points as 0 (read by the handler)
//
// Values are only parsed here. Range and catalogue checks happen in the engine.
func ParseAggregateQuery(values url.Values) (engine.AggregateQuery, error) {
	q := engine.AggregateQuery{
		Field:     strings.TrimSpace(values.Get("field")),
		Frequency: strings.TrimSpace(values.Get("frequency")),
	}

	if raw := values.Get("percentile"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, errs.ErrInvalidParameter.New(fmt.Sprintf("percentile %q is not a number", raw))
		}
		q.Percentile = &p
	}

	for _, e := range values["entity"] {
		if e = strings.TrimSpace(e); e != "" {
			q.Entities = append(q.Entities, e)
		}
	}
	if len(q.Entities) > config.QueryMaxEntities {
		return q, errs.ErrInvalidParameter.New(fmt.Sprintf("too many entities (max %d)", config.QueryMaxEntities))
	}

	if raw := values.Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			return q, errs.ErrInvalidParameter.New(fmt.Sprintf("year %q is not an integer", raw))
		}
		q.Year = y
	}

	if raw := values.Get("per_entity"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, errs.ErrInvalidParameter.New(fmt.Sprintf("per_entity %q is not a boolean", raw))
		}
		q.PerEntity = b
	}
	return q, nil
}

// ApplyDefaults fills frequency and percentile from the dataset's
// configuration where the request left them out
func ApplyDefaults(q *engine.AggregateQuery, ds config.Dataset) {
	if q.Frequency == "" {
		q.Frequency = ds.DefaultFrequency()
	}
	if q.Percentile == nil {
		p := ds.DefaultPercentile(resample.DefaultPercentile)
		q.Percentile = &p
	}
}

// ParseDate reads a date as RFC3339 or YYYY-MM-DD
func ParseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errs.ErrInvalidParameter.New("date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, errs.ErrInvalidParameter.New(fmt.Sprintf("date %q is not RFC3339 or YYYY-MM-DD", raw))
}

// ParseMonth reads an optional month number; empty means any month
func ParseMonth(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	m, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.ErrInvalidParameter.New(fmt.Sprintf("month %q is not an integer", raw))
	}
	return m, nil
}

func parseFill(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errs.ErrInvalidParameter.New(fmt.Sprintf("fill %q is not a boolean", raw))
	}
	return b, nil
}
