package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/ledge"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/storage"
)

// Loader produces a finished observation table for a dataset
type Loader interface {
	Load(ctx context.Context, dataset string) (*observation.Table, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context, dataset string) (*observation.Table, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context, dataset string) (*observation.Table, error) {
	return f(ctx, dataset)
}

// Registry holds the current snapshot of every configured dataset.
// Snapshots are replaced whole, never patched.
type Registry struct {
	loader Loader
	names  []string

	mu       sync.RWMutex
	datasets map[string]*Dataset

	// generations counts invalidations per dataset. A load only installs its
	// snapshot if no invalidation happened while it ran.
	generations map[string]uint64
}

// NewRegistry creates a registry for the named datasets. Nothing is loaded
// until first use or Refresh.
func NewRegistry(loader Loader, names []string) *Registry {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return &Registry{
		loader:      loader,
		names:       sorted,
		datasets:    make(map[string]*Dataset, len(names)),
		generations: make(map[string]uint64, len(names)),
	}
}

// Names returns the configured dataset names, sorted
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) known(name string) bool {
	i := sort.SearchStrings(r.names, name)
	return i < len(r.names) && r.names[i] == name
}

// Get returns the current snapshot of name, loading it if needed
func (r *Registry) Get(ctx context.Context, name string) (*Dataset, error) {
	if !r.known(name) {
		return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("unknown dataset %q", name))
	}

	r.mu.RLock()
	d, ok := r.datasets[name]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}
	return r.Refresh(ctx, name)
}

// Refresh reloads name and swaps in the new snapshot. On failure the previous
// snapshot, if any, stays in place. A snapshot read before a concurrent
// Invalidate is returned to the caller but not installed.
func (r *Registry) Refresh(ctx context.Context, name string) (*Dataset, error) {
	if !r.known(name) {
		return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("unknown dataset %q", name))
	}

	r.mu.RLock()
	gen := r.generations[name]
	r.mu.RUnlock()

	start := time.Now()
	table, err := r.loader.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", name, err)
	}
	d := NewDataset(table)

	r.mu.Lock()
	stale := r.generations[name] != gen
	if !stale {
		r.datasets[name] = d
	}
	r.mu.Unlock()

	if stale {
		log.Debug().Str("dataset", name).Msg("dataset invalidated during load, snapshot not kept")
		return d, nil
	}

	log.Debug().
		Str("dataset", name).
		Int("observations", table.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("dataset loaded")
	return d, nil
}

// RefreshAll reloads every dataset and reports all failures together
func (r *Registry) RefreshAll(ctx context.Context) error {
	var failures []error
	for _, name := range r.names {
		if _, err := r.Refresh(ctx, name); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

// Invalidate drops the snapshot of name; the next Get reloads it
func (r *Registry) Invalidate(name string) {
	r.mu.Lock()
	delete(r.datasets, name)
	r.generations[name]++
	r.mu.Unlock()
}

// Loaded returns the load time of every dataset currently held
func (r *Registry) Loaded() map[string]time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]time.Time, len(r.datasets))
	for name, d := range r.datasets {
		out[name] = d.LoadedAt()
	}
	return out
}

// StoreLoader builds tables from observations in a storage backend
type StoreLoader struct {
	Store    storage.Storage
	Datasets config.Datasets
}

// Load reads every observation of dataset, applies entity aliases and the
// ledge tally where configured, and builds the table.
func (l *StoreLoader) Load(ctx context.Context, dataset string) (*observation.Table, error) {
	cfg, ok := l.Datasets.Lookup(dataset)
	if !ok {
		return nil, errs.ErrInvalidParameter.New(fmt.Sprintf("unknown dataset %q", dataset))
	}

	rows, err := l.Store.Query(ctx, storage.QueryRequest{Dataset: dataset})
	if err != nil {
		return nil, fmt.Errorf("query storage: %w", err)
	}

	for i := range rows {
		rows[i].Entity = cfg.Canonical(rows[i].Entity)
	}
	if cfg.LedgeTally {
		rows = ledge.Augment(rows, cfg.CountAON())
	}

	return observation.NewTable(cfg.Schema(), rows)
}
