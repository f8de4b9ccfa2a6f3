package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/engine"
	"github.com/MELR22/rissa-plotter/pkg/ledge"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/storage/memory"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cityRow(id, station string, ts time.Time, adults float64) observation.Observation {
	return observation.Observation{
		ID:        id,
		Entity:    station,
		Timestamp: ts,
		Values:    map[string]float64{"adultCount": adults, "aonCount": 1},
	}
}

// SME grid over the city rows: Apr30, May15, May31, Jun15, Jun30
func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.Write(ctx, "city", []observation.Observation{
		cityRow("c1", "X", date(2024, time.May, 20), 2),
		cityRow("c2", "X", date(2024, time.May, 14), 5),
		cityRow("c3", "X", date(2024, time.May, 16), 3),
		cityRow("c4", "Y", date(2024, time.May, 15), 4),
		cityRow("c5", "Y", date(2024, time.June, 1), 0),
		cityRow("c6", "X", date(2024, time.June, 20), 7),
	}))
	require.NoError(t, store.Write(ctx, "hotels", []observation.Observation{
		{ID: "h1", Entity: "Hotel 1", Timestamp: date(2024, time.June, 2),
			Statuses: map[string]string{"1": ledge.StatusOneChick, "2": ledge.StatusOneChick}},
		{ID: "h2", Entity: "Hotel 1", Timestamp: date(2024, time.June, 9),
			Statuses: map[string]string{"1": ledge.StatusTwoChicks}},
	}))

	datasets := config.DefaultDatasets()
	reg := engine.NewRegistry(&engine.StoreLoader{Store: store, Datasets: datasets}, datasets.Names())
	h := NewHandler(reg, datasets)

	r := mux.NewRouter()
	r.HandleFunc("/v1/datasets/{dataset}/aggregate", h.HandleAggregate)
	r.HandleFunc("/v1/datasets/{dataset}/submissions/yearly", h.HandleYearly)
	r.HandleFunc("/v1/datasets/{dataset}/submissions/daily", h.HandleDaily)
	r.HandleFunc("/v1/datasets/{dataset}/submissions/bin", h.HandleBin)
	r.HandleFunc("/v1/datasets/{dataset}/peaks", h.HandlePeaks)
	return r
}

func get(t *testing.T, r http.Handler, url string, out any) int {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr.Code
}

func values(points []matrixPoint) []*float64 {
	out := make([]*float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

type matrixPoint struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

type aggregateBody struct {
	Dataset    string  `json:"dataset"`
	Frequency  string  `json:"frequency"`
	Percentile float64 `json:"percentile"`
	Results    []struct {
		Field   string        `json:"field"`
		Series  []matrixPoint `json:"series"`
		Columns []struct {
			Entity string        `json:"entity"`
			Points []matrixPoint `json:"points"`
		} `json:"columns"`
	} `json:"results"`
}

func f(v float64) *float64 { return &v }

func TestHandleAggregate_Summed(t *testing.T) {
	r := newRouter(t)

	var body aggregateBody
	code := get(t, r, "/v1/datasets/city/aggregate?field=adultCount&percentile=1", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "city", body.Dataset)
	require.Equal(t, "SME", body.Frequency)
	require.Equal(t, 1.0, body.Percentile)
	require.Len(t, body.Results, 1)

	s := body.Results[0].Series
	require.Len(t, s, 5)
	require.Equal(t, date(2024, time.April, 30), s[0].Time)
	require.Equal(t, []*float64{nil, f(9), f(0), f(7), nil}, values(s))
}

func TestHandleAggregate_FieldsAndFill(t *testing.T) {
	r := newRouter(t)

	var body aggregateBody
	code := get(t, r, "/v1/datasets/city/aggregate?field=adultCount&field=aonCount&percentile=0&fill=true", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Results, 2)
	require.Equal(t, "adultCount", body.Results[0].Field)
	require.Equal(t, "aonCount", body.Results[1].Field)

	// min per bin; bins with no observed station stay empty even with fill
	require.Equal(t, []*float64{nil, f(6), f(0), f(7), nil}, values(body.Results[0].Series))
	require.Equal(t, []*float64{nil, f(2), f(1), f(1), nil}, values(body.Results[1].Series))
}

func TestHandleAggregate_FillPerEntity(t *testing.T) {
	r := newRouter(t)

	var body aggregateBody
	code := get(t, r, "/v1/datasets/city/aggregate?field=adultCount&percentile=1&per_entity=true&entity=Y&fill=true", &body)
	require.Equal(t, http.StatusOK, code)

	cols := body.Results[0].Columns
	require.Len(t, cols, 1)
	require.Equal(t, []*float64{f(0), f(4), f(0), f(0), f(0)}, values(cols[0].Points))

	// the sum over a selection with no observation in a bin is never 0
	code = get(t, r, "/v1/datasets/city/aggregate?field=adultCount&percentile=1&entity=Y&fill=true", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []*float64{nil, f(4), f(0), nil, nil}, values(body.Results[0].Series))
}

func TestHandleAggregate_PerEntity(t *testing.T) {
	r := newRouter(t)

	var body aggregateBody
	code := get(t, r, "/v1/datasets/city/aggregate?field=adultCount&percentile=1&per_entity=true&entity=Y&year=2024", &body)
	require.Equal(t, http.StatusOK, code)

	cols := body.Results[0].Columns
	require.Len(t, cols, 1)
	require.Equal(t, "Y", cols[0].Entity)
	require.Equal(t, []*float64{nil, f(4), f(0), nil, nil}, values(cols[0].Points))
}

func TestHandleAggregate_Errors(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name string
		url  string
		code int
		kind string
	}{
		{"percentile out of range", "/v1/datasets/city/aggregate?field=adultCount&percentile=1.5", http.StatusBadRequest, "invalid_parameter"},
		{"percentile not a number", "/v1/datasets/city/aggregate?field=adultCount&percentile=high", http.StatusBadRequest, "invalid_parameter"},
		{"missing field", "/v1/datasets/city/aggregate", http.StatusBadRequest, "invalid_parameter"},
		{"unknown field", "/v1/datasets/city/aggregate?field=wingspan", http.StatusBadRequest, "invalid_parameter"},
		{"unknown entity", "/v1/datasets/city/aggregate?field=adultCount&entity=Q", http.StatusBadRequest, "invalid_parameter"},
		{"unknown year", "/v1/datasets/city/aggregate?field=adultCount&year=1999", http.StatusBadRequest, "invalid_parameter"},
		{"unknown frequency", "/v1/datasets/city/aggregate?field=adultCount&frequency=hourly", http.StatusBadRequest, "configuration"},
		{"unknown dataset", "/v1/datasets/harbour/aggregate?field=adultCount", http.StatusBadRequest, "invalid_parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp map[string]string
			require.Equal(t, tt.code, get(t, r, tt.url, &resp))
			require.Equal(t, tt.kind, resp["kind"])
		})
	}
}

func TestHandleYearly(t *testing.T) {
	r := newRouter(t)

	var body struct {
		Years    []int    `json:"years"`
		Entities []string `json:"entities"`
		Counts   [][]int  `json:"counts"`
		Totals   []int    `json:"totals"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/v1/datasets/city/submissions/yearly", &body))
	require.Equal(t, []int{2023, 2024, 2025}, body.Years)
	require.Equal(t, []string{"X", "Y"}, body.Entities)
	require.Equal(t, []int{0, 6, 0}, body.Totals)
}

func TestHandleDaily(t *testing.T) {
	r := newRouter(t)

	var body DailyResponse
	require.Equal(t, http.StatusOK, get(t, r, "/v1/datasets/city/submissions/daily", &body))
	require.Len(t, body.Days, 6)
	require.Equal(t, 6, body.Days[len(body.Days)-1].Cumulative)
}

func TestHandleBin(t *testing.T) {
	r := newRouter(t)

	var body struct {
		Bin      time.Time `json:"bin"`
		Entities []string  `json:"entities"`
		Counts   []int     `json:"counts"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/v1/datasets/city/submissions/bin?date=2024-05-17", &body))
	require.Equal(t, date(2024, time.May, 15), body.Bin)
	require.Equal(t, []string{"X", "Y"}, body.Entities)
	require.Equal(t, []int{3, 1}, body.Counts)

	var resp map[string]string
	require.Equal(t, http.StatusBadRequest, get(t, r, "/v1/datasets/city/submissions/bin?date=2020-01-01", &resp))
	require.Equal(t, http.StatusBadRequest, get(t, r, "/v1/datasets/city/submissions/bin", &resp))
}

func TestHandlePeaks(t *testing.T) {
	r := newRouter(t)

	var body PeaksResponse
	require.Equal(t, http.StatusOK, get(t, r, "/v1/datasets/hotels/peaks?entity=Hotel%201&month=6", &body))
	require.Len(t, body.Peaks, 1)
	require.Equal(t, "h1", body.Peaks[0].ObservationID)
	require.Equal(t, 2, body.Peaks[0].Counts.Nests)

	var resp map[string]string
	require.Equal(t, http.StatusBadRequest, get(t, r, "/v1/datasets/hotels/peaks?entity=Hotel%201&month=12", &resp))
	require.Equal(t, http.StatusBadRequest, get(t, r, "/v1/datasets/hotels/peaks", &resp))

	// city rows carry no ledge tally
	require.Equal(t, http.StatusUnprocessableEntity, get(t, r, "/v1/datasets/city/peaks?entity=X", &resp))
	require.Equal(t, "data_integrity", resp["kind"])
}
