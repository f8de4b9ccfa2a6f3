package ingest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/MELR22/rissa-plotter/pkg/config"
)

// MaxEntitiesPerDataset caps distinct entities a dataset accepts through
// ingest. Every entity becomes a matrix column, so a typo-heavy client would
// otherwise widen every query result.
const MaxEntitiesPerDataset = 1000

// ErrEntityLimit is returned when a new entity would exceed MaxEntitiesPerDataset
var ErrEntityLimit = fmt.Errorf("entity limit exceeded (max %d per dataset)", MaxEntitiesPerDataset)

// EntityTracker tracks distinct entities per dataset to enforce the entity limit.
// Configured catalogue entities are always accepted and count toward the limit.
type EntityTracker struct {
	mu   sync.RWMutex
	seen map[string]map[string]struct{}
}

// NewEntityTracker creates a tracker seeded with each dataset's catalogue
func NewEntityTracker(datasets config.Datasets) *EntityTracker {
	t := &EntityTracker{seen: make(map[string]map[string]struct{})}
	for _, ds := range datasets.Datasets {
		set := make(map[string]struct{}, len(ds.Catalogue))
		for _, e := range ds.Catalogue {
			set[e] = struct{}{}
		}
		t.seen[ds.Name] = set
	}
	return t
}

// Check reports whether accepting entities would exceed the dataset's limit
func (t *EntityTracker) Check(dataset string, entities []string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := t.seen[dataset]
	fresh := make(map[string]struct{})
	for _, e := range entities {
		if _, ok := set[e]; ok {
			continue
		}
		fresh[e] = struct{}{}
	}
	if len(set)+len(fresh) > MaxEntitiesPerDataset {
		return ErrEntityLimit
	}
	return nil
}

// Record marks entities as seen. Call after Check passes and the write succeeds.
func (t *EntityTracker) Record(dataset string, entities []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.seen[dataset]
	if !ok {
		set = make(map[string]struct{})
		t.seen[dataset] = set
	}
	for _, e := range entities {
		set[e] = struct{}{}
	}
}

// EntityStats provides entity usage for one dataset
type EntityStats struct {
	Dataset        string  `json:"dataset"`
	Entities       int     `json:"entities"`
	Limit          int     `json:"limit"`
	UtilizationPct float64 `json:"utilization_percent"`
}

// Stats returns entity usage per dataset, sorted by dataset name
func (t *EntityTracker) Stats() []EntityStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]EntityStats, 0, len(t.seen))
	for name, set := range t.seen {
		out = append(out, EntityStats{
			Dataset:        name,
			Entities:       len(set),
			Limit:          MaxEntitiesPerDataset,
			UtilizationPct: float64(len(set)) / float64(MaxEntitiesPerDataset) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dataset < out[j].Dataset })
	return out
}
