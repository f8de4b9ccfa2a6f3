package export

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/httpx"
	"github.com/MELR22/rissa-plotter/pkg/query"
	"github.com/MELR22/rissa-plotter/pkg/storage"
)

// Invalidator drops cached snapshots of a dataset after an import
type Invalidator interface {
	Invalidate(dataset string)
}

// Handler handles export/import HTTP endpoints
type Handler struct {
	datasets config.Datasets
	exporter *Exporter
	importer *Importer
	cache    Invalidator
}

// NewHandler creates a new export/import handler
func NewHandler(source query.DatasetSource, store storage.Storage, datasets config.Datasets, cache Invalidator) *Handler {
	return &Handler{
		datasets: datasets,
		exporter: NewExporter(source, store),
		importer: NewImporter(store),
		cache:    cache,
	}
}

// HandleExport handles GET /v1/datasets/{dataset}/export
// Query params:
//   - format: "json" or "csv" (default: csv)
//   - field, frequency, percentile, entity, year: as for /aggregate
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["dataset"]

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Invalid format. Must be 'json' or 'csv'")
		return
	}

	q, err := query.ParseAggregateQuery(r.URL.Query())
	if err != nil {
		httpx.RespondFailure(w, r, err)
		return
	}
	if cfg, ok := h.datasets.Lookup(name); ok {
		query.ApplyDefaults(&q, cfg)
	}
	if q.Field == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "field parameter is required")
		return
	}

	opts := ExportOptions{
		Dataset:    name,
		Field:      q.Field,
		Frequency:  q.Frequency,
		Percentile: q.Percentile,
		Entities:   q.Entities,
		Year:       q.Year,
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ExportTimeout)
	defer cancel()

	// Render fully before writing so failures still get a JSON error
	var buf bytes.Buffer
	var result *ExportResult
	if format == "json" {
		result, err = h.exporter.ExportToJSON(ctx, &buf, opts)
	} else {
		result, err = h.exporter.ExportToCSV(ctx, &buf, opts)
	}
	if err != nil {
		httpx.RespondFailure(w, r, fmt.Errorf("export failed: %w", err))
		return
	}

	timestamp := time.Now().Format("20060102-150405")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/csv")
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=rissa-%s-%s-%s.%s", name, result.Field, timestamp, format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error().Err(err).Str("dataset", name).Msg("failed to write export")
		return
	}

	log.Info().
		Str("dataset", name).
		Str("field", result.Field).
		Str("frequency", result.Frequency).
		Int("rows", result.Rows).
		Int("entities", result.Entities).
		Msg("exported matrix")
}

// HandleBackup handles GET /v1/datasets/{dataset}/backup, a JSON dump of
// the raw observations that HandleImport accepts back
func (h *Handler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["dataset"]
	if _, ok := h.datasets.Lookup(name); !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("unknown dataset %q", name))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ExportTimeout)
	defer cancel()

	var buf bytes.Buffer
	n, err := h.exporter.ExportObservations(ctx, &buf, name)
	if err != nil {
		httpx.RespondFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=rissa-%s-backup-%s.json", name, time.Now().Format("20060102-150405")))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error().Err(err).Str("dataset", name).Msg("failed to write backup")
		return
	}
	log.Info().Str("dataset", name).Int("observations", n).Msg("exported observations")
}

// HandleImport handles POST /v1/datasets/{dataset}/import.
// The body is CSV (text/csv) or a JSON backup (application/json).
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["dataset"]
	ds, ok := h.datasets.Lookup(name)
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("unknown dataset %q", name))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.ImportMaxBodyBytes)

	ctx, cancel := context.WithTimeout(r.Context(), config.ImportTimeout)
	defer cancel()

	var result *ImportResult
	var err error
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "text/csv"):
		result, err = h.importer.ImportFromCSV(ctx, ds, r.Body)
	case strings.HasPrefix(contentType, "application/json"):
		result, err = h.importer.ImportFromJSON(ctx, ds, r.Body)
	default:
		httpx.RespondErrorString(w, http.StatusUnsupportedMediaType, "Content-Type must be text/csv or application/json")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("dataset", name).Msg("import failed")
		httpx.RespondFailure(w, r, fmt.Errorf("import failed: %w", err))
		return
	}

	if h.cache != nil && result.ObservationsImported > 0 {
		h.cache.Invalidate(name)
	}

	log.Info().
		Str("dataset", name).
		Int("observations", result.ObservationsImported).
		Int("batches", result.BatchesWritten).
		Str("range", result.TimeRange).
		Msg("imported observations")

	httpx.RespondJSON(w, http.StatusOK, result)
}
