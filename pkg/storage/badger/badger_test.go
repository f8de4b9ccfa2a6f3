package badger

import (
	"context"
	"testing"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/storage"
)

func newStore(t *testing.T) *Storage {
	t.Helper()

	// Use in-memory mode for tests
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func obs(id, entity string, ts time.Time, n float64) observation.Observation {
	return observation.Observation{
		ID:        id,
		Entity:    entity,
		Timestamp: ts,
		Values:    map[string]float64{"adultCount": n},
	}
}

func TestBadgerStorage_WriteAndQuery(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

	err := store.Write(ctx, "city", []observation.Observation{
		obs("b", "KIT02", base.Add(time.Hour), 3),
		obs("a", "KIT01", base, 5),
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	results, err := store.Query(ctx, storage.QueryRequest{Dataset: "city"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("Expected oldest observation first, got %q", results[0].ID)
	}
	if results[0].Values["adultCount"] != 5 {
		t.Errorf("Expected adultCount 5, got %v", results[0].Values["adultCount"])
	}

	other, err := store.Query(ctx, storage.QueryRequest{Dataset: "cit"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected dataset prefixes not to overlap, got %d rows", len(other))
	}
}

func TestBadgerStorage_QueryFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	rows := []observation.Observation{
		obs("1", "KIT01", base, 1),
		obs("2", "KIT02", base.AddDate(0, 0, 1), 2),
		obs("3", "KIT01", base.AddDate(0, 0, 2), 3),
		obs("4", "KIT03", base.AddDate(0, 0, 3), 4),
	}
	if err := store.Write(ctx, "city", rows); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	tests := []struct {
		name string
		req  storage.QueryRequest
		want int
	}{
		{"entity", storage.QueryRequest{Dataset: "city", Entities: []string{"KIT01"}}, 2},
		{"range", storage.QueryRequest{Dataset: "city", Start: base.AddDate(0, 0, 1), End: base.AddDate(0, 0, 2)}, 2},
		{"open end", storage.QueryRequest{Dataset: "city", Start: base.AddDate(0, 0, 2)}, 2},
		{"limit", storage.QueryRequest{Dataset: "city", Limit: 3}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Query(ctx, tt.req)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("Expected %d observations, got %d", tt.want, len(results))
			}
		})
	}
}

func TestBadgerStorage_PreEpochOrdering(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	early := time.Date(1965, time.June, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Write(ctx, "city", []observation.Observation{obs("late", "KIT01", late, 1), obs("early", "KIT01", early, 1)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	results, err := store.Query(ctx, storage.QueryRequest{Dataset: "city"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 || results[0].ID != "early" {
		t.Fatalf("Expected pre-1970 observation first, got %+v", results)
	}
}

func TestBadgerStorage_RewriteMovesTimestamp(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Write(ctx, "city", []observation.Observation{obs("x", "KIT01", base, 1)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Write(ctx, "city", []observation.Observation{obs("x", "KIT01", base.AddDate(0, 0, 3), 2)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	results, err := store.Query(ctx, storage.QueryRequest{Dataset: "city"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected rewrite to replace, got %d observations", len(results))
	}
	if !results[0].Timestamp.Equal(base.AddDate(0, 0, 3)) {
		t.Errorf("Expected new timestamp, got %v", results[0].Timestamp)
	}
}

func TestBadgerStorage_Delete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Write(ctx, "city", []observation.Observation{
		obs("old", "KIT01", base.AddDate(-1, 0, 0), 1),
		obs("new", "KIT01", base, 2),
	}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Write(ctx, "hotels", []observation.Observation{obs("h", "Hotel A", base.AddDate(-1, 0, 0), 1)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := store.Delete(ctx, storage.DeleteOptions{Dataset: "city", Before: base}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	results, _ := store.Query(ctx, storage.QueryRequest{Dataset: "city"})
	if len(results) != 1 || results[0].ID != "new" {
		t.Fatalf("Expected only the new observation, got %+v", results)
	}

	hotels, _ := store.Query(ctx, storage.QueryRequest{Dataset: "hotels"})
	if len(hotels) != 1 {
		t.Errorf("Expected other dataset untouched, got %d", len(hotels))
	}

	// the deleted ID can be written again as a fresh row
	if err := store.Write(ctx, "city", []observation.Observation{obs("old", "KIT01", base.AddDate(0, 0, 1), 1)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	results, _ = store.Query(ctx, storage.QueryRequest{Dataset: "city"})
	if len(results) != 2 {
		t.Errorf("Expected 2 observations, got %d", len(results))
	}
}

func TestBadgerStorage_Stats(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Write(ctx, "city", []observation.Observation{obs("1", "KIT01", last, 1), obs("2", "KIT02", first, 1)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Write(ctx, "hotels", []observation.Observation{obs("3", "Hotel A", first.AddDate(0, 1, 0), 1)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalObservations != 3 {
		t.Errorf("Expected 3 observations, got %d", stats.TotalObservations)
	}
	if stats.Datasets["city"] != 2 || stats.Datasets["hotels"] != 1 {
		t.Errorf("Unexpected per-dataset counts: %v", stats.Datasets)
	}
	if !stats.OldestObservation.Equal(first) || !stats.NewestObservation.Equal(last) {
		t.Errorf("Unexpected span: %v .. %v", stats.OldestObservation, stats.NewestObservation)
	}
}

func TestBadgerStorage_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ts := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	store, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := store.Write(ctx, "city", []observation.Observation{obs("p", "KIT01", ts, 4)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer reopened.Close()

	results, err := reopened.Query(ctx, storage.QueryRequest{Dataset: "city"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].Values["adultCount"] != 4 {
		t.Errorf("Expected persisted observation, got %+v", results)
	}
}

func TestBadgerStorage_RejectsBadInput(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "", []observation.Observation{obs("1", "KIT01", time.Now(), 1)}); err == nil {
		t.Error("Expected error for empty dataset")
	}
	if err := store.Write(ctx, "city", []observation.Observation{obs("", "KIT01", time.Now(), 1)}); err == nil {
		t.Error("Expected error for missing ID")
	}
}
