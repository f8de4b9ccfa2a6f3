package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/engine"
	"github.com/MELR22/rissa-plotter/pkg/export"
	"github.com/MELR22/rissa-plotter/pkg/httpx"
	"github.com/MELR22/rissa-plotter/pkg/ingest"
	"github.com/MELR22/rissa-plotter/pkg/query"
	"github.com/MELR22/rissa-plotter/pkg/resample"
	"github.com/MELR22/rissa-plotter/pkg/server/monitor"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

var startTime = time.Now()

// StorageUsage represents current storage usage stats.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string                `json:"status"`
	Version  string                `json:"version"`
	Uptime   string                `json:"uptime"`
	Refresh  monitor.RefreshStatus `json:"refresh"`
	Datasets map[string]time.Time  `json:"datasets_loaded"`
}

// DatasetInfo describes one configured dataset
type DatasetInfo struct {
	Name            string    `json:"name"`
	EntityDimension string    `json:"entity_dimension"`
	Fields          []string  `json:"fields"`
	Frequency       string    `json:"default_frequency"`
	Percentile      float64   `json:"default_percentile"`
	LedgeTally      bool      `json:"ledge_tally,omitempty"`
	Entities        []string  `json:"entities,omitempty"`
	Years           []int     `json:"years,omitempty"`
	Observations    int       `json:"observations"`
	LoadedAt        time.Time `json:"loaded_at,omitempty"`
}

// handleHealth returns service health status.
func handleHealth(registry *engine.Registry, refreshMonitor *monitor.RefreshMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := refreshMonitor.Status()
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !status.Healthy {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:   overallStatus,
			Version:  Version,
			Uptime:   time.Since(startTime).String(),
			Refresh:  status,
			Datasets: registry.Loaded(),
		}

		httpx.RespondJSON(w, statusCode, response)
	}
}

// handleStorageUsage returns current storage usage.
func handleStorageUsage(monitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usedBytes, err := monitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		usage := StorageUsage{
			UsedBytes: usedBytes,
			MaxBytes:  monitor.GetLimit(),
		}

		httpx.RespondJSON(w, http.StatusOK, usage)
	}
}

// handleDatasets lists configured datasets with their catalogues. Loading a
// dataset here is what a first query would do anyway.
func handleDatasets(datasets config.Datasets, registry *engine.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make([]DatasetInfo, 0, len(datasets.Datasets))
		for _, ds := range datasets.Datasets {
			info := DatasetInfo{
				Name:            ds.Name,
				EntityDimension: ds.EntityDimension,
				Fields:          ds.Fields,
				Frequency:       ds.DefaultFrequency(),
				Percentile:      ds.DefaultPercentile(resample.DefaultPercentile),
				LedgeTally:      ds.LedgeTally,
				Entities:        ds.Catalogue,
				Years:           ds.Years,
			}
			if d, err := registry.Get(r.Context(), ds.Name); err == nil {
				info.Entities = d.Table().Catalogue()
				info.Years = d.Table().Years()
				info.Observations = d.Table().Len()
				info.LoadedAt = d.LoadedAt()
			}
			out = append(out, info)
		}
		httpx.RespondJSON(w, http.StatusOK, out)
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(
	router *mux.Router,
	ingestHandler *ingest.Handler,
	queryHandler *query.Handler,
	exportHandler *export.Handler,
	datasets config.Datasets,
	registry *engine.Registry,
	storageMonitor *monitor.StorageMonitor,
	refreshMonitor *monitor.RefreshMonitor,
	port string,
) {
	// CORS middleware for API access
	router.Use(corsMiddleware(port))
	router.Use(httpx.Metrics)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := router.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/health", handleHealth(registry, refreshMonitor)).Methods("GET")
	api.HandleFunc("/storage", handleStorageUsage(storageMonitor)).Methods("GET")
	api.HandleFunc("/stats", ingestHandler.HandleStats).Methods("GET")
	api.HandleFunc("/datasets", handleDatasets(datasets, registry)).Methods("GET")

	ds := api.PathPrefix("/datasets/{dataset}").Subrouter()

	// Ingestion
	ds.HandleFunc("/observations", ingestHandler.HandleIngest).Methods("POST")

	// Queries
	ds.HandleFunc("/aggregate", queryHandler.HandleAggregate).Methods("GET")
	ds.HandleFunc("/submissions/yearly", queryHandler.HandleYearly).Methods("GET")
	ds.HandleFunc("/submissions/daily", queryHandler.HandleDaily).Methods("GET")
	ds.HandleFunc("/submissions/bin", queryHandler.HandleBin).Methods("GET")
	ds.HandleFunc("/peaks", queryHandler.HandlePeaks).Methods("GET")

	// Export/import
	ds.HandleFunc("/export", exportHandler.HandleExport).Methods("GET")
	ds.HandleFunc("/backup", exportHandler.HandleBackup).Methods("GET")
	ds.HandleFunc("/import", exportHandler.HandleImport).Methods("POST")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
		// local plotting dashboards
		"http://localhost:8501": true,
		"http://127.0.0.1:8501": true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Only set CORS headers for allowed origins
			if allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
