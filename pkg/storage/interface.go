package storage

import (
	"context"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/observation"
)

// Storage defines the interface for observation storage backends.
// Implementations: memory (testing), badger (production)
type Storage interface {
	// Write stores observations for a dataset. Writing an ID again replaces
	// the earlier observation.
	Write(ctx context.Context, dataset string, obs []observation.Observation) error

	// Query retrieves a dataset's observations in timestamp order
	Query(ctx context.Context, req QueryRequest) ([]observation.Observation, error)

	// Delete removes a dataset's observations older than the cutoff
	Delete(ctx context.Context, opts DeleteOptions) error

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// QueryRequest specifies what observations to retrieve
type QueryRequest struct {
	Dataset string

	// Time range, inclusive. Zero values leave that side open.
	Start time.Time
	End   time.Time

	// Filter by entity (optional)
	Entities []string

	// Limit number of results (0 = no limit)
	Limit int
}

// DeleteOptions selects observations to remove
type DeleteOptions struct {
	Dataset string
	Before  time.Time
}

// Stats provides storage health and usage info
type Stats struct {
	// Total observations stored
	TotalObservations uint64 `json:"total_observations"`

	// Observations per dataset
	Datasets map[string]uint64 `json:"datasets"`

	// Storage size in bytes
	SizeBytes uint64 `json:"size_bytes"`

	// Oldest observation timestamp
	OldestObservation time.Time `json:"oldest_observation"`

	// Newest observation timestamp
	NewestObservation time.Time `json:"newest_observation"`
}

// InRange reports whether ts falls within the request's time range
func (r QueryRequest) InRange(ts time.Time) bool {
	if !r.Start.IsZero() && ts.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && ts.After(r.End) {
		return false
	}
	return true
}

// Matches reports whether o passes the request's time and entity filters
func (r QueryRequest) Matches(o observation.Observation) bool {
	if !r.InRange(o.Timestamp) {
		return false
	}
	if len(r.Entities) == 0 {
		return true
	}
	for _, e := range r.Entities {
		if o.Entity == e {
			return true
		}
	}
	return false
}
