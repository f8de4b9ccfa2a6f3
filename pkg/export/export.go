package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/engine"
	"github.com/MELR22/rissa-plotter/pkg/matrix"
	"github.com/MELR22/rissa-plotter/pkg/query"
	"github.com/MELR22/rissa-plotter/pkg/storage"
)

// Version of the JSON export documents
const Version = "1.0"

// Exporter writes aggregate matrices and raw observations to files
type Exporter struct {
	source  query.DatasetSource
	storage storage.Storage
}

// NewExporter creates a new exporter
func NewExporter(source query.DatasetSource, store storage.Storage) *Exporter {
	return &Exporter{source: source, storage: store}
}

// ExportOptions configures a matrix export
type ExportOptions struct {
	Dataset    string
	Field      string
	Frequency  string
	Percentile *float64
	Entities   []string
	Year       int
}

// ExportResult contains stats about the export
type ExportResult struct {
	Dataset    string    `json:"dataset"`
	Field      string    `json:"field"`
	Frequency  string    `json:"frequency"`
	Percentile float64   `json:"percentile"`
	Rows       int       `json:"rows"`
	Entities   int       `json:"entities"`
	Format     string    `json:"format"`
	ExportedAt time.Time `json:"exported_at"`
}

// MatrixDocument is the JSON form of an exported matrix. Missing cells are null.
type MatrixDocument struct {
	Metadata ExportResult `json:"metadata"`
	Entities []string     `json:"entities"`
	Rows     []MatrixRow  `json:"rows"`
}

// MatrixRow is one time point of an exported matrix
type MatrixRow struct {
	Time   time.Time  `json:"time"`
	Values []*float64 `json:"values"`
	Total  *float64   `json:"total"`
}

func (e *Exporter) aggregate(ctx context.Context, opts ExportOptions) (*engine.Result, error) {
	ds, err := e.source.Get(ctx, opts.Dataset)
	if err != nil {
		return nil, err
	}
	return ds.Aggregate(engine.AggregateQuery{
		Field:      opts.Field,
		Frequency:  opts.Frequency,
		Percentile: opts.Percentile,
		Entities:   opts.Entities,
		Year:       opts.Year,
		PerEntity:  true,
	})
}

func cellPtr(c matrix.Cell) *float64 {
	if !c.Present {
		return nil
	}
	v := c.Value
	return &v
}

// ExportToJSON writes the per-entity matrix plus the summed total as JSON
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	res, err := e.aggregate(ctx, opts)
	if err != nil {
		return nil, err
	}

	m := res.Matrix
	total := matrix.SumOverEntities(m)
	doc := MatrixDocument{
		Metadata: newResult(opts.Dataset, res, "json"),
		Entities: m.Entities(),
		Rows:     make([]MatrixRow, 0, m.Len()),
	}
	for i, row := range m.Rows() {
		out := MatrixRow{Time: row.Time, Values: make([]*float64, len(row.Cells)), Total: cellPtr(total.At(i))}
		for j, c := range row.Cells {
			out.Values[j] = cellPtr(c)
		}
		doc.Rows = append(doc.Rows, out)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return &doc.Metadata, nil
}

// ExportToCSV writes one row per grid point: timestamp, one column per
// entity, then the total. Missing cells are empty.
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	res, err := e.aggregate(ctx, opts)
	if err != nil {
		return nil, err
	}

	m := res.Matrix
	total := matrix.SumOverEntities(m)

	writer := csv.NewWriter(w)
	header := append([]string{"timestamp"}, m.Entities()...)
	header = append(header, "total")
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, row := range m.Rows() {
		record := make([]string, 0, len(row.Cells)+2)
		record = append(record, row.Time.Format(time.RFC3339))
		for _, c := range row.Cells {
			record = append(record, formatCell(c))
		}
		record = append(record, formatCell(total.At(i)))
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	result := newResult(opts.Dataset, res, "csv")
	return &result, nil
}

func formatCell(c matrix.Cell) string {
	if !c.Present {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

func newResult(dataset string, res *engine.Result, format string) ExportResult {
	return ExportResult{
		Dataset:    dataset,
		Field:      res.Field,
		Frequency:  res.Frequency,
		Percentile: res.Percentile,
		Rows:       res.Matrix.Len(),
		Entities:   len(res.Matrix.Entities()),
		Format:     format,
		ExportedAt: time.Now(),
	}
}

// ExportObservations writes a dataset's raw stored observations in the
// format ImportFromJSON reads
func (e *Exporter) ExportObservations(ctx context.Context, w io.Writer, dataset string) (int, error) {
	rows, err := e.storage.Query(ctx, storage.QueryRequest{Dataset: dataset})
	if err != nil {
		return 0, fmt.Errorf("failed to query observations: %w", err)
	}

	var doc ImportData
	doc.Metadata.Dataset = dataset
	doc.Metadata.ExportedAt = time.Now()
	doc.Metadata.ObservationCount = len(rows)
	doc.Metadata.Version = Version
	doc.Observations = rows

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return 0, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return len(rows), nil
}
