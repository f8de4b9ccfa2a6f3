package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/storage"
)

// Storage stores observations in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	datasets map[string]*dataset
	mu       sync.RWMutex
}

type dataset struct {
	rows []observation.Observation
	byID map[string]int
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		datasets: make(map[string]*dataset),
	}
}

// Write stores observations in memory
func (s *Storage) Write(ctx context.Context, name string, obs []observation.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, o := range obs {
		if o.ID == "" {
			return fmt.Errorf("observation %d has no ID", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.datasets[name]
	if !ok {
		ds = &dataset{byID: make(map[string]int)}
		s.datasets[name] = ds
	}

	for _, o := range obs {
		c := o.Clone()
		if i, exists := ds.byID[c.ID]; exists {
			ds.rows[i] = c
			continue
		}
		ds.byID[c.ID] = len(ds.rows)
		ds.rows = append(ds.rows, c)
	}
	return nil
}

// Query retrieves observations matching the request, oldest first
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]observation.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[req.Dataset]
	if !ok {
		return nil, nil
	}

	var results []observation.Observation
	for _, o := range ds.rows {
		if req.Matches(o) {
			results = append(results, o.Clone())
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// Delete removes a dataset's observations older than the given time
func (s *Storage) Delete(ctx context.Context, opts storage.DeleteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.datasets[opts.Dataset]
	if !ok {
		return nil
	}

	filtered := &dataset{
		rows: make([]observation.Observation, 0, len(ds.rows)),
		byID: make(map[string]int, len(ds.byID)),
	}
	for _, o := range ds.rows {
		if o.Timestamp.Before(opts.Before) {
			continue
		}
		filtered.byID[o.ID] = len(filtered.rows)
		filtered.rows = append(filtered.rows, o)
	}

	s.datasets[opts.Dataset] = filtered
	return nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		Datasets: make(map[string]uint64, len(s.datasets)),
	}

	var oldest, newest time.Time
	for name, ds := range s.datasets {
		stats.Datasets[name] = uint64(len(ds.rows))
		stats.TotalObservations += uint64(len(ds.rows))

		for _, o := range ds.rows {
			if oldest.IsZero() || o.Timestamp.Before(oldest) {
				oldest = o.Timestamp
			}
			if newest.IsZero() || o.Timestamp.After(newest) {
				newest = o.Timestamp
			}
		}
	}

	stats.OldestObservation = oldest
	stats.NewestObservation = newest

	// Rough size estimate (each observation ~200 bytes)
	stats.SizeBytes = stats.TotalObservations * 200

	return stats, nil
}
