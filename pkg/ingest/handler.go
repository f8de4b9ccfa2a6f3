package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/httpx"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/storage"
)

// StorageChecker reports whether there is room for more data
type StorageChecker interface {
	CheckLimit() error
}

// Invalidator drops cached snapshots of a dataset after a write
type Invalidator interface {
	Invalidate(dataset string)
}

// Handler handles observation ingestion
type Handler struct {
	storage  storage.Storage
	datasets config.Datasets
	checker  StorageChecker
	cache    Invalidator
	entities *EntityTracker
}

// NewHandler creates a new ingest handler
func NewHandler(store storage.Storage, datasets config.Datasets, cache Invalidator) *Handler {
	return &Handler{
		storage:  store,
		datasets: datasets,
		cache:    cache,
		entities: NewEntityTracker(datasets),
	}
}

// SetStorageChecker enables the storage limit check before writes
func (h *Handler) SetStorageChecker(c StorageChecker) {
	h.checker = c
}

// IngestRequest represents the request payload
type IngestRequest struct {
	Observations []observation.Observation `json:"observations"`
}

// IngestResponse represents the response payload
type IngestResponse struct {
	Status  string   `json:"status"`
	Count   int      `json:"count"`
	IDs     []string `json:"ids"`
	Message string   `json:"message,omitempty"`
}

// HandleIngest handles POST /v1/datasets/{dataset}/observations
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["dataset"]
	ds, ok := h.datasets.Lookup(name)
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("unknown dataset %q", name))
		return
	}

	if h.checker != nil {
		if err := h.checker.CheckLimit(); err != nil {
			ingestRejected.WithLabelValues(name, "storage_full").Inc()
			httpx.RespondError(w, http.StatusInsufficientStorage, err)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.IngestMaxBodyBytes)
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ingestRejected.WithLabelValues(name, "decode").Inc()
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	if len(req.Observations) == 0 {
		ingestRejected.WithLabelValues(name, "empty").Inc()
		httpx.RespondError(w, http.StatusBadRequest, ErrNoObservations)
		return
	}
	if len(req.Observations) > MaxObservationsPerRequest {
		ingestRejected.WithLabelValues(name, "too_many").Inc()
		httpx.RespondError(w, http.StatusBadRequest, ErrTooManyObservations)
		return
	}

	ids := make([]string, len(req.Observations))
	names := make([]string, len(req.Observations))
	for i := range req.Observations {
		o := &req.Observations[i]
		if err := ValidateObservation(ds, i, *o); err != nil {
			ingestRejected.WithLabelValues(name, "invalid").Inc()
			status := httpx.StatusFor(err)
			if status == http.StatusInternalServerError {
				status = http.StatusBadRequest
			}
			httpx.RespondError(w, status, fmt.Errorf("invalid observation: %w", err))
			return
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		ids[i] = o.ID
		names[i] = ds.Canonical(o.Entity)
	}

	if err := h.entities.Check(name, names); err != nil {
		ingestRejected.WithLabelValues(name, "entity_limit").Inc()
		httpx.RespondError(w, http.StatusTooManyRequests, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	if err := h.storage.Write(ctx, name, req.Observations); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			httpx.RespondError(w, http.StatusGatewayTimeout, fmt.Errorf("write timed out: %w", err))
			return
		}
		log.Error().Err(err).Str("dataset", name).Msg("failed to store observations")
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("failed to store observations: %w", err))
		return
	}

	h.entities.Record(name, names)
	if h.cache != nil {
		h.cache.Invalidate(name)
	}
	observationsIngested.WithLabelValues(name).Add(float64(len(req.Observations)))

	httpx.RespondJSON(w, http.StatusAccepted, IngestResponse{
		Status: "success",
		Count:  len(req.Observations),
		IDs:    ids,
	})
}

// StatsResponse is the payload of HandleStats
type StatsResponse struct {
	*storage.Stats
	Configured []string      `json:"configured_datasets"`
	Entities   []EntityStats `json:"entities"`
}

// HandleStats handles GET /v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.IngestStatsTimeout)
	defer cancel()

	stats, err := h.storage.Stats(ctx)
	if err != nil {
		httpx.RespondFailure(w, r, fmt.Errorf("failed to get stats: %w", err))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, StatsResponse{
		Stats:      stats,
		Configured: h.datasets.Names(),
		Entities:   h.entities.Stats(),
	})
}
