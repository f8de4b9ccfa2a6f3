package query

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/engine"
	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/httpx"
	"github.com/MELR22/rissa-plotter/pkg/ledge"
)

// DatasetSource resolves a dataset snapshot by name
type DatasetSource interface {
	Get(ctx context.Context, name string) (*engine.Dataset, error)
}

// Handler serves aggregate and submission queries
type Handler struct {
	source   DatasetSource
	datasets config.Datasets
}

// NewHandler creates a new query handler
func NewHandler(source DatasetSource, datasets config.Datasets) *Handler {
	return &Handler{source: source, datasets: datasets}
}

// datasetConfig returns the configuration of the {dataset} route variable. An
// unknown name yields the zero Dataset, whose defaults are the global ones.
func (h *Handler) datasetConfig(r *http.Request) config.Dataset {
	cfg, _ := h.datasets.Lookup(mux.Vars(r)["dataset"])
	return cfg
}

// dataset resolves the {dataset} route variable. On failure the error
// response has already been written.
func (h *Handler) dataset(w http.ResponseWriter, r *http.Request, endpoint string) (string, *engine.Dataset, bool) {
	name := mux.Vars(r)["dataset"]

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	ds, err := h.source.Get(ctx, name)
	if err != nil {
		h.fail(w, r, endpoint, err)
		return name, nil, false
	}
	return name, ds, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	kind := "internal"
	if k := errs.KindOf(err); k != nil {
		kind = errs.Name(k)
	}
	queryErrors.WithLabelValues(endpoint, kind).Inc()
	httpx.RespondFailure(w, r, err)
}

func observe(endpoint string, start time.Time) {
	queryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// HandleAggregate handles GET /v1/datasets/{dataset}/aggregate.
// Several field parameters are aggregated concurrently.
func (h *Handler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	const endpoint = "aggregate"
	defer observe(endpoint, time.Now())

	q, err := ParseAggregateQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	ApplyDefaults(&q, h.datasetConfig(r))

	fill, err := parseFill(r.URL.Query().Get("fill"))
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	fields := r.URL.Query()["field"]
	if len(fields) == 0 {
		h.fail(w, r, endpoint, errs.ErrInvalidParameter.New("field is required"))
		return
	}

	name, ds, ok := h.dataset(w, r, endpoint)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	results, err := ds.AggregateFields(ctx, fields, q)
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}

	resp := AggregateResponse{
		Dataset:    name,
		Frequency:  results[0].Frequency,
		Percentile: results[0].Percentile,
		Results:    make([]FieldResult, len(results)),
	}
	for i, res := range results {
		resp.Results[i] = fieldResult(res, fill)
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

func fieldResult(res *engine.Result, fill bool) FieldResult {
	out := FieldResult{Field: res.Field}
	if res.Series != nil {
		out.Series = res.Series.Points()
		if fill {
			out.Series = res.Series.Filled()
		}
		return out
	}
	out.Columns = make([]Column, 0, len(res.Matrix.Entities()))
	for _, e := range res.Matrix.Entities() {
		col := res.Matrix.Column(e)
		points := col.Points()
		if fill {
			points = col.Filled()
		}
		out.Columns = append(out.Columns, Column{Entity: e, Points: points})
	}
	return out
}

// HandleYearly handles GET /v1/datasets/{dataset}/submissions/yearly
func (h *Handler) HandleYearly(w http.ResponseWriter, r *http.Request) {
	const endpoint = "submissions_yearly"
	defer observe(endpoint, time.Now())

	name, ds, ok := h.dataset(w, r, endpoint)
	if !ok {
		return
	}

	counts := ds.YearlySubmissionCounts()
	totals := make([]int, len(counts.Years))
	for i, y := range counts.Years {
		totals[i] = counts.Total(y)
	}
	httpx.RespondJSON(w, http.StatusOK, YearlyResponse{Dataset: name, YearlyCounts: counts, Totals: totals})
}

// HandleDaily handles GET /v1/datasets/{dataset}/submissions/daily
func (h *Handler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	const endpoint = "submissions_daily"
	defer observe(endpoint, time.Now())

	name, ds, ok := h.dataset(w, r, endpoint)
	if !ok {
		return
	}
	httpx.RespondJSON(w, http.StatusOK, DailyResponse{Dataset: name, Days: ds.DailySubmissionCounts()})
}

// HandleBin handles GET /v1/datasets/{dataset}/submissions/bin?date=&frequency=
func (h *Handler) HandleBin(w http.ResponseWriter, r *http.Request) {
	const endpoint = "submissions_bin"
	defer observe(endpoint, time.Now())

	date, err := ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	freq := r.URL.Query().Get("frequency")
	if freq == "" {
		freq = h.datasetConfig(r).DefaultFrequency()
	}

	name, ds, ok := h.dataset(w, r, endpoint)
	if !ok {
		return
	}

	counts, err := ds.SubmissionsInBin(freq, date)
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, BinResponse{Dataset: name, BinCounts: counts})
}

// HandlePeaks handles GET /v1/datasets/{dataset}/peaks?entity=&month=
func (h *Handler) HandlePeaks(w http.ResponseWriter, r *http.Request) {
	const endpoint = "peaks"
	defer observe(endpoint, time.Now())

	entity := r.URL.Query().Get("entity")
	if entity == "" {
		h.fail(w, r, endpoint, errs.ErrInvalidParameter.New("entity is required"))
		return
	}
	month, err := ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}

	name, ds, ok := h.dataset(w, r, endpoint)
	if !ok {
		return
	}

	peaks, err := ds.Peaks(entity, month)
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	if peaks == nil {
		peaks = []ledge.YearPeak{}
	}
	httpx.RespondJSON(w, http.StatusOK, PeaksResponse{Dataset: name, Entity: entity, Month: month, Peaks: peaks})
}
