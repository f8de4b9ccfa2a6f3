package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/engine"
	"github.com/MELR22/rissa-plotter/pkg/server/monitor"
	"github.com/MELR22/rissa-plotter/pkg/storage"
	"github.com/MELR22/rissa-plotter/pkg/storage/badger"
)

// storageWarnRatio is the usage fraction above which the storage monitor warns
const storageWarnRatio = 0.9

// RunRefresh rebuilds every dataset snapshot from storage on a schedule.
// A failed refresh keeps serving the previous snapshot.
func RunRefresh(registry *engine.Registry, monitor *monitor.RefreshMonitor, interval time.Duration, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Refresh with retry and exponential backoff
	runWithRetry := func(isInitial bool) {
		for attempt := 0; attempt < config.RefreshMaxAttempts; attempt++ {
			if attempt > 0 {
				delay := config.RefreshBaseBackoff * time.Duration(1<<(attempt-1))
				log.Info().Dur("delay", delay).Int("attempt", attempt+1).Msg("retrying dataset refresh")
				select {
				case <-time.After(delay):
				case <-stop:
					return
				}
			}

			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), config.RefreshTimeout)
			err := registry.RefreshAll(ctx)
			cancel()

			if err == nil {
				monitor.RecordSuccess()
				log.Info().
					Bool("initial", isInitial).
					Dur("took", time.Since(start).Round(time.Millisecond)).
					Msg("datasets refreshed")
				return
			}

			monitor.RecordFailure(err)
			log.Error().Err(err).Int("attempt", attempt+1).Int("max_attempts", config.RefreshMaxAttempts).Msg("dataset refresh failed")

			if status := monitor.Status(); status.ConsecutiveErrors > 3 {
				log.Warn().Int("consecutive_errors", status.ConsecutiveErrors).Msg("ALERT: dataset refresh keeps failing")
			}
		}

		log.Warn().Int("attempts", config.RefreshMaxAttempts).Msg("dataset refresh gave up, will retry on next schedule")
	}

	// Load once on startup so the first query does not pay for it
	go runWithRetry(true)

	for {
		select {
		case <-ticker.C:
			log.Info().Msg("scheduled dataset refresh started")
			runWithRetry(false)
		case <-stop:
			log.Info().Msg("stopping dataset refresh scheduler")
			return
		}
	}
}

// RunBadgerGC runs BadgerDB garbage collection periodically to reclaim disk space.
// Rewritten observations leave stale values in the value log until GC runs.
func RunBadgerGC(store storage.Storage, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		log.Info().Msg("storage is not BadgerDB, skipping GC")
		return
	}

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", config.BadgerGCInterval).Msg("BadgerDB GC scheduler started")

	for {
		select {
		case <-ticker.C:
			start := time.Now()

			// Reclaim a value log file if at least half of it is garbage
			err := badgerStore.RunGC(0.5)
			took := time.Since(start).Round(time.Millisecond)
			if err != nil {
				// ErrNoRewrite is the common case
				log.Debug().Err(err).Dur("took", took).Msg("GC finished without rewrite")
			} else {
				log.Info().Dur("took", took).Msg("GC reclaimed disk space")
			}
		case <-stop:
			log.Info().Msg("stopping BadgerDB GC scheduler")
			return
		}
	}
}

// RunStorageMonitor logs a warning while storage usage is close to the limit.
// Ingest itself is refused by the storage checker once the limit is reached.
func RunStorageMonitor(sm *monitor.StorageMonitor, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.StorageCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			used, err := sm.GetUsage()
			if err != nil {
				log.Error().Err(err).Msg("failed to measure storage usage")
				continue
			}
			limit := sm.GetLimit()
			if limit > 0 && float64(used) >= storageWarnRatio*float64(limit) {
				log.Warn().Int64("used_bytes", used).Int64("max_bytes", limit).Msg("storage nearly full")
			}
		case <-stop:
			return
		}
	}
}
