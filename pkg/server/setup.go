package server

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/engine"
	"github.com/MELR22/rissa-plotter/pkg/export"
	"github.com/MELR22/rissa-plotter/pkg/ingest"
	"github.com/MELR22/rissa-plotter/pkg/logging"
	"github.com/MELR22/rissa-plotter/pkg/query"
	"github.com/MELR22/rissa-plotter/pkg/server/monitor"
	"github.com/MELR22/rissa-plotter/pkg/storage"
	"github.com/MELR22/rissa-plotter/pkg/storage/badger"
	"github.com/MELR22/rissa-plotter/pkg/storage/memory"
)

// Config holds server configuration.
type Config struct {
	config.Env
	Datasets config.Datasets
}

// LoadConfig loads configuration from environment variables and the
// datasets file, and sets up logging.
func LoadConfig() (Config, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return Config{}, err
	}
	logging.Setup(env.LogLevel, env.LogConsole)

	datasets, err := config.LoadDatasets(env.DatasetsFile)
	if err != nil {
		return Config{}, err
	}

	if !env.InMemory {
		// Ensure data directory exists
		if err := os.MkdirAll(env.DataDir, 0755); err != nil {
			return Config{}, fmt.Errorf("create data directory: %w", err)
		}
	}

	return Config{Env: env, Datasets: datasets}, nil
}

// MaxStorageBytes returns the storage limit in bytes
func (c Config) MaxStorageBytes() int64 {
	return c.MaxStorageGB * 1024 * 1024 * 1024
}

// StorageDir returns the directory the storage monitor should measure.
// In-memory storage has none.
func (c Config) StorageDir() string {
	if c.InMemory {
		return ""
	}
	return c.DataDir
}

// InitializeStorage opens the configured storage backend.
func InitializeStorage(cfg Config) (storage.Storage, error) {
	if cfg.InMemory {
		log.Warn().Msg("using in-memory storage; observations are lost on restart")
		return memory.New(), nil
	}

	log.Info().Str("dir", cfg.DataDir).Msg("initializing BadgerDB storage with Snappy compression")
	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Msg("BadgerDB storage initialized successfully")
	return store, nil
}

// InitializeRegistry creates the dataset registry over store.
// Datasets load lazily on first query.
func InitializeRegistry(store storage.Storage, datasets config.Datasets) *engine.Registry {
	reg := engine.NewRegistry(&engine.StoreLoader{Store: store, Datasets: datasets}, datasets.Names())
	log.Info().Strs("datasets", reg.Names()).Msg("dataset registry ready")
	return reg
}

// InitializeHandlers creates and configures all request handlers.
func InitializeHandlers(
	store storage.Storage,
	datasets config.Datasets,
	registry *engine.Registry,
	storageMonitor *monitor.StorageMonitor,
) (
	*ingest.Handler,
	*query.Handler,
	*export.Handler,
) {
	ingestHandler := ingest.NewHandler(store, datasets, registry)
	ingestHandler.SetStorageChecker(storageMonitor)
	log.Debug().Msg("ingest handler created with entity limits & storage limits")

	queryHandler := query.NewHandler(registry, datasets)
	log.Debug().Msg("query handler created")

	exportHandler := export.NewHandler(registry, store, datasets, registry)
	log.Debug().Msg("export/import handler created (CSV & JSON)")

	return ingestHandler, queryHandler, exportHandler
}
