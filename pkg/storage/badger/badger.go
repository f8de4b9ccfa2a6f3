package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/rs/zerolog/log"

	"github.com/MELR22/rissa-plotter/pkg/logging"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/storage"
)

// slowQuery is the duration after which a query is logged as slow
const slowQuery = 5 * time.Second

// Storage implements storage.Storage using BadgerDB (LSM tree)
type Storage struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = use defaults based on environment)
	// Recommended: 64-128 MB for local dev, 256-512 MB for production
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(logging.Badger())

	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	// Default: laptop-friendly, 16 MB memtable is the minimum for decent
	// performance. Below that badger flushes to disk constantly.
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	// Block and index caches grow without bound unless capped
	blockCacheSize := memTableSize / 2
	indexCacheSize := memTableSize / 4

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Storage{db: db}, nil
}

// Write stores observations in BadgerDB.
// Enforces context timeout/cancellation to prevent indefinite blocking.
func (s *Storage) Write(ctx context.Context, dataset string, obs []observation.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validDataset(dataset); err != nil {
		return err
	}
	for i, o := range obs {
		if o.ID == "" {
			return fmt.Errorf("observation %d has no ID", i)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			for i, o := range obs {
				// Check context periodically (every 100 observations)
				if i%100 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				value, err := json.Marshal(o)
				if err != nil {
					return fmt.Errorf("failed to encode observation: %w", err)
				}

				// A rewritten ID may carry a new timestamp, so its old key
				// has to go first.
				idKey := makeIDKey(dataset, o.ID)
				prev, err := txn.Get(idKey)
				switch {
				case err == nil:
					old, err := prev.ValueCopy(nil)
					if err != nil {
						return err
					}
					if err := txn.Delete(old); err != nil {
						return fmt.Errorf("failed to replace observation: %w", err)
					}
				case !errors.Is(err, badger.ErrKeyNotFound):
					return err
				}

				key := makeKey(dataset, o.Timestamp, o.ID)
				if err := txn.Set(key, value); err != nil {
					return fmt.Errorf("failed to write observation: %w", err)
				}
				if err := txn.Set(idKey, key); err != nil {
					return fmt.Errorf("failed to index observation: %w", err)
				}
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write operation cancelled: %w", ctx.Err())
	}
}

// Query retrieves a dataset's observations in timestamp order.
// Enforces context timeout/cancellation to prevent indefinite blocking.
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]observation.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validDataset(req.Dataset); err != nil {
		return nil, err
	}

	type queryResult struct {
		results []observation.Observation
		err     error
	}
	done := make(chan queryResult, 1)

	go func() {
		var res queryResult
		startTime := time.Now()
		var iterCount int

		res.err = s.db.View(func(txn *badger.Txn) error {
			prefix := dataPrefix(req.Dataset)
			opts := badger.DefaultIteratorOptions
			opts.PrefetchSize = 100
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			seek := prefix
			if !req.Start.IsZero() {
				seek = append(append([]byte(nil), prefix...), encodeTime(req.Start)...)
			}

			for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
				iterCount++

				// Check for context cancellation every 1000 iterations
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				item := it.Item()
				_, ts := parseKey(item.Key())
				if !req.End.IsZero() && ts.After(req.End) {
					break
				}

				var o observation.Observation
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &o)
				}); err != nil {
					return fmt.Errorf("failed to decode observation: %w", err)
				}

				if !req.Matches(o) {
					continue
				}
				res.results = append(res.results, o)

				if req.Limit > 0 && len(res.results) >= req.Limit {
					break
				}
			}
			return nil
		})

		if elapsed := time.Since(startTime); elapsed > slowQuery {
			log.Warn().
				Str("dataset", req.Dataset).
				Dur("elapsed", elapsed).
				Int("iterations", iterCount).
				Int("results", len(res.results)).
				Msg("slow query")
		}

		done <- res
	}()

	select {
	case res := <-done:
		return res.results, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("query operation cancelled: %w", ctx.Err())
	}
}

// Delete removes a dataset's observations older than the cutoff.
// Enforces context timeout/cancellation to prevent indefinite blocking.
func (s *Storage) Delete(ctx context.Context, opts storage.DeleteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validDataset(opts.Dataset); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		var keysToDelete [][]byte

		err := s.db.View(func(txn *badger.Txn) error {
			prefix := dataPrefix(opts.Dataset)
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix

			it := txn.NewIterator(iterOpts)
			defer it.Close()

			var iterCount int
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				item := it.Item()

				// Keys are time ordered within a dataset
				_, ts := parseKey(item.Key())
				if !ts.Before(opts.Before) {
					break
				}

				var o observation.Observation
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &o)
				}); err != nil {
					return fmt.Errorf("failed to decode observation: %w", err)
				}

				keysToDelete = append(keysToDelete, item.KeyCopy(nil), makeIDKey(opts.Dataset, o.ID))
			}
			return nil
		})
		if err != nil {
			done <- err
			return
		}

		// A write batch splits large deletes across transactions
		wb := s.db.NewWriteBatch()
		defer wb.Cancel()
		for _, key := range keysToDelete {
			if err := wb.Delete(key); err != nil {
				done <- err
				return
			}
		}
		done <- wb.Flush()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("delete operation cancelled: %w", ctx.Err())
	}
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection.
// discardRatio: run GC if this fraction of a file can be discarded (0.5 = 50%).
// badger.ErrNoRewrite means there was nothing to collect.
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics.
// Enforces context timeout/cancellation to prevent indefinite blocking.
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type statsResult struct {
		stats *storage.Stats
		err   error
	}
	done := make(chan statsResult, 1)

	go func() {
		var res statsResult
		stats := &storage.Stats{Datasets: make(map[string]uint64)}

		res.err = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = []byte{dataTag}

			it := txn.NewIterator(opts)
			defer it.Close()

			var iterCount int
			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				dataset, ts := parseKey(it.Item().Key())
				stats.TotalObservations++
				stats.Datasets[dataset]++

				if stats.OldestObservation.IsZero() || ts.Before(stats.OldestObservation) {
					stats.OldestObservation = ts
				}
				if stats.NewestObservation.IsZero() || ts.After(stats.NewestObservation) {
					stats.NewestObservation = ts
				}
			}
			return nil
		})

		if res.err == nil {
			lsmSize, vlogSize := s.db.Size()
			stats.SizeBytes = uint64(lsmSize + vlogSize)
		}

		res.stats = stats
		done <- res
	}()

	select {
	case res := <-done:
		return res.stats, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("stats operation cancelled: %w", ctx.Err())
	}
}

// Key layout
//
//	data: 'd' dataset 0x00 [timestamp (8 bytes)][xxhash(id) (8 bytes)] -> observation JSON
//	id:   'i' dataset 0x00 id                                          -> data key
//
// Timestamps are stored with the sign bit flipped so pre-1970 dates still
// sort before later ones.
const (
	dataTag = 'd'
	idTag   = 'i'
)

func validDataset(name string) error {
	if name == "" {
		return fmt.Errorf("dataset name is empty")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("dataset name %q contains a NUL byte", name)
	}
	return nil
}

func dataPrefix(dataset string) []byte {
	p := make([]byte, 0, len(dataset)+2)
	p = append(p, dataTag)
	p = append(p, dataset...)
	return append(p, 0)
}

func makeKey(dataset string, ts time.Time, id string) []byte {
	key := dataPrefix(dataset)
	key = append(key, encodeTime(ts)...)
	return binary.BigEndian.AppendUint64(key, xxhash.Sum64String(id))
}

func makeIDKey(dataset, id string) []byte {
	key := make([]byte, 0, len(dataset)+len(id)+2)
	key = append(key, idTag)
	key = append(key, dataset...)
	key = append(key, 0)
	return append(key, id...)
}

// parseKey extracts the dataset name and timestamp from a data key
func parseKey(key []byte) (string, time.Time) {
	sep := bytes.IndexByte(key, 0)
	dataset := string(key[1:sep])
	raw := binary.BigEndian.Uint64(key[sep+1 : sep+9])
	return dataset, time.Unix(0, int64(raw^(1<<63))).UTC()
}

func encodeTime(ts time.Time) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(ts.UnixNano())^(1<<63))
}
