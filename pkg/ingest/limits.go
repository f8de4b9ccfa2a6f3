package ingest

import (
	"errors"
	"fmt"
	"math"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/observation"
)

// Per-request and per-observation limits
const (
	MaxObservationsPerRequest = config.IngestMaxObservations
	MaxFieldsPerObservation   = config.IngestMaxFields
	MaxStatusesPerObservation = config.IngestMaxStatuses
	MaxEntityLength           = config.IngestMaxEntityLength
	MaxObserverLength         = 256
)

var (
	// ErrTooManyObservations is returned when a request carries too many observations
	ErrTooManyObservations = fmt.Errorf("too many observations in request (max %d)", MaxObservationsPerRequest)

	// ErrNoObservations is returned for an empty request
	ErrNoObservations = errors.New("no observations in request")

	// ErrTooManyFields is returned when an observation has too many values
	ErrTooManyFields = fmt.Errorf("too many values (max %d)", MaxFieldsPerObservation)

	// ErrTooManyStatuses is returned when an observation has too many ledge statuses
	ErrTooManyStatuses = fmt.Errorf("too many statuses (max %d)", MaxStatusesPerObservation)

	// ErrEntityTooLong is returned when an entity name is too long
	ErrEntityTooLong = fmt.Errorf("entity too long (max %d chars)", MaxEntityLength)
)

// ValidateObservation checks an observation against limits and the dataset
// shape. Limit violations are plain errors; shape problems are data
// integrity errors.
func ValidateObservation(ds config.Dataset, i int, o observation.Observation) error {
	if len(o.Entity) > MaxEntityLength {
		return fmt.Errorf("observation %d: %w", i, ErrEntityTooLong)
	}
	if len(o.Values) > MaxFieldsPerObservation {
		return fmt.Errorf("observation %d: %w", i, ErrTooManyFields)
	}
	if len(o.Statuses) > MaxStatusesPerObservation {
		return fmt.Errorf("observation %d: %w", i, ErrTooManyStatuses)
	}
	if len(o.Observer) > MaxObserverLength {
		return fmt.Errorf("observation %d: observer too long (max %d chars)", i, MaxObserverLength)
	}

	if o.Entity == "" {
		return errs.ErrDataIntegrity.New(fmt.Sprintf("observation %d: missing %s", i, ds.EntityDimension))
	}
	if o.Timestamp.IsZero() {
		return errs.ErrDataIntegrity.New(fmt.Sprintf("observation %d: missing timestamp", i))
	}
	if o.GroupSize < 0 {
		return errs.ErrDataIntegrity.New(fmt.Sprintf("observation %d: negative group size", i))
	}

	for k, v := range o.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) {
			return errs.ErrDataIntegrity.New(fmt.Sprintf("observation %d: field %q is not a non-negative integer (%v)", i, k, v))
		}
	}

	// Ledge datasets derive their counts from statuses at load time
	if ds.LedgeTally {
		return nil
	}
	for _, f := range ds.Fields {
		if _, ok := o.Values[f]; !ok {
			return errs.ErrDataIntegrity.New(fmt.Sprintf("observation %d: missing field %q", i, f))
		}
	}
	return nil
}
