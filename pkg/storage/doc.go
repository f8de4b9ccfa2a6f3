/*
Package storage provides the pluggable store for raw field observations.

# Storage Interface

Observations are kept per dataset ("city", "hotels", ...). Two backends
implement the same interface:
  - memory: in-memory storage for tests and throwaway runs
  - badger: BadgerDB (LSM tree + Snappy compression) for persistent storage

	type Storage interface {
	    Write(ctx context.Context, dataset string, obs []observation.Observation) error
	    Query(ctx context.Context, req QueryRequest) ([]observation.Observation, error)
	    Delete(ctx context.Context, opts DeleteOptions) error
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

The store is the source the engine loads its in-memory tables from. It
performs no aggregation and knows nothing about grids or percentiles.

# Identity

Every observation carries an ID (assigned at ingest). Writing the same ID
twice replaces the earlier row, so re-importing a full export is safe.

# Usage Example

	store, err := badger.New(badger.Config{Path: "./data"})
	if err != nil {
	    log.Fatal().Err(err).Msg("open storage")
	}
	defer store.Close()

	err = store.Write(ctx, "city", []observation.Observation{
	    {ID: uuid.NewString(), Entity: "KIT01", Timestamp: ts, Values: map[string]float64{"adultCount": 12}},
	})

	// Whole dataset, oldest first
	rows, err := store.Query(ctx, storage.QueryRequest{Dataset: "city"})

	// One season for two stations
	rows, err = store.Query(ctx, storage.QueryRequest{
	    Dataset:  "city",
	    Start:    time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	    End:      time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
	    Entities: []string{"KIT01", "KIT02"},
	})

# Retention

	// Drop everything before the 2020 season
	store.Delete(ctx, storage.DeleteOptions{Dataset: "city", Before: cutoff})

# Best Practices

1. Always call Close() when done to flush pending writes
2. Use context.WithTimeout() to prevent hung queries
3. Batch writes when possible
*/
package storage
