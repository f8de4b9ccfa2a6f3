package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env is the process configuration read from RISSA_* environment variables
type Env struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	DataDir      string        `env:"RISSA_DATA_DIR" envDefault:"./data/rissa"`
	MaxStorageGB int64         `env:"RISSA_MAX_STORAGE_GB" envDefault:"1"`
	MaxMemoryMB  int64         `env:"RISSA_MAX_MEMORY_MB" envDefault:"48"`
	InMemory     bool          `env:"RISSA_IN_MEMORY" envDefault:"false"`
	DatasetsFile string        `env:"RISSA_DATASETS_FILE"`
	LogLevel     string        `env:"RISSA_LOG_LEVEL" envDefault:"info"`
	LogConsole   bool          `env:"RISSA_LOG_CONSOLE" envDefault:"true"`
	Refresh      time.Duration `env:"RISSA_REFRESH_INTERVAL" envDefault:"24h"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses Env and rejects values no server could run with
func LoadEnv() (Env, error) {
	var cfg Env
	if err := ParseEnv(&cfg); err != nil {
		return Env{}, err
	}
	if cfg.MaxStorageGB <= 0 {
		return Env{}, fmt.Errorf("RISSA_MAX_STORAGE_GB must be positive, got %d", cfg.MaxStorageGB)
	}
	if cfg.MaxMemoryMB < 0 {
		return Env{}, fmt.Errorf("RISSA_MAX_MEMORY_MB must not be negative, got %d", cfg.MaxMemoryMB)
	}
	if cfg.Refresh <= 0 {
		return Env{}, fmt.Errorf("RISSA_REFRESH_INTERVAL must be positive, got %s", cfg.Refresh)
	}
	return cfg, nil
}
