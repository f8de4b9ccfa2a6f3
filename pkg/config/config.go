package config

import "time"

// Server defaults
const (
	DefaultPort         = "8080"
	DefaultDataDir      = "./data/rissa"
	DefaultMaxStorageGB = 1
	DefaultMaxMemoryMB  = 48
	DefaultLogLevel     = "info"
)

// Background task intervals
const (
	RefreshInterval  = 24 * time.Hour
	BadgerGCInterval = 10 * time.Minute
	StorageCheck     = 1 * time.Minute
)

// Refresh retry policy
const (
	RefreshTimeout     = 2 * time.Minute
	RefreshMaxAttempts = 3
	RefreshBaseBackoff = 5 * time.Second
)

// Query timeouts and defaults
const (
	QueryTimeout          = 30 * time.Second
	QueryDefaultFrequency = "SME"
	QueryMaxEntities      = 500
)

// Ingest timeouts and limits
const (
	IngestTimeout         = 5 * time.Second
	IngestStatsTimeout    = 5 * time.Second
	IngestMaxObservations = 1000
	IngestMaxBodyBytes    = 5 << 20
	IngestMaxFields       = 32
	IngestMaxStatuses     = 200
	IngestMaxEntityLength = 128
)

// Import/export limits
const (
	ImportTimeout      = 60 * time.Second
	ImportMaxBodyBytes = 100 << 20
	ImportBatchSize    = 500
	ExportTimeout      = 30 * time.Second
)
