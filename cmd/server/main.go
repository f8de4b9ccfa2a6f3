package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/MELR22/rissa-plotter/pkg/server"
	"github.com/MELR22/rissa-plotter/pkg/server/monitor"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 60 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	store, err := server.InitializeStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	registry := server.InitializeRegistry(store, cfg.Datasets)
	storageMonitor := monitor.NewStorageMonitor(cfg.StorageDir(), cfg.MaxStorageBytes())
	refreshMonitor := monitor.NewRefreshMonitor(cfg.Refresh)

	ingestHandler, queryHandler, exportHandler := server.InitializeHandlers(store, cfg.Datasets, registry, storageMonitor)

	router := mux.NewRouter()
	server.SetupRoutes(router, ingestHandler, queryHandler, exportHandler,
		cfg.Datasets, registry, storageMonitor, refreshMonitor, cfg.Port)

	// Background tasks
	var wg sync.WaitGroup
	stopRefresh := make(chan bool)
	stopGC := make(chan bool)
	stopStorage := make(chan bool)

	wg.Add(3)
	go server.RunRefresh(registry, refreshMonitor, cfg.Refresh, stopRefresh, &wg)
	go server.RunBadgerGC(store, stopGC, &wg)
	go server.RunStorageMonitor(storageMonitor, stopStorage, &wg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Strs("datasets", cfg.Datasets.Names()).
			Dur("refresh", cfg.Refresh).
			Bool("in_memory", cfg.InMemory).
			Msg("server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, stopping background tasks")
	close(stopRefresh)
	close(stopGC)
	close(stopStorage)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}

	// Background tasks may be mid-retry; do not wait past the shutdown deadline
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("timed out waiting for background tasks")
	}

	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close storage")
	}
	log.Info().Msg("server stopped")
}
