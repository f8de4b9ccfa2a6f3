package query

import (
	"github.com/MELR22/rissa-plotter/pkg/ledge"
	"github.com/MELR22/rissa-plotter/pkg/matrix"
	"github.com/MELR22/rissa-plotter/pkg/submissions"
)

// AggregateResponse is the payload of GET /v1/datasets/{dataset}/aggregate
type AggregateResponse struct {
	Dataset    string        `json:"dataset"`
	Frequency  string        `json:"frequency"`
	Percentile float64       `json:"percentile"`
	Results    []FieldResult `json:"results"`
}

// FieldResult holds one field's aggregate. Series is set for summed
// queries, Columns for per-entity queries. A nil value means no data.
type FieldResult struct {
	Field   string         `json:"field"`
	Series  []matrix.Point `json:"series,omitempty"`
	Columns []Column       `json:"columns,omitempty"`
}

// Column is one entity's series in a per-entity result
type Column struct {
	Entity string         `json:"entity"`
	Points []matrix.Point `json:"points"`
}

// YearlyResponse is the payload of GET /v1/datasets/{dataset}/submissions/yearly
type YearlyResponse struct {
	Dataset string `json:"dataset"`
	*submissions.YearlyCounts
	Totals []int `json:"totals"`
}

// DailyResponse is the payload of GET /v1/datasets/{dataset}/submissions/daily
type DailyResponse struct {
	Dataset string                   `json:"dataset"`
	Days    []submissions.DailyCount `json:"days"`
}

// BinResponse is the payload of GET /v1/datasets/{dataset}/submissions/bin
type BinResponse struct {
	Dataset string `json:"dataset"`
	*submissions.BinCounts
}

// PeaksResponse is the payload of GET /v1/datasets/{dataset}/peaks
type PeaksResponse struct {
	Dataset string           `json:"dataset"`
	Entity  string           `json:"entity"`
	Month   int              `json:"month,omitempty"`
	Peaks   []ledge.YearPeak `json:"peaks"`
}
