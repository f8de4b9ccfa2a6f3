package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/storage"
)

// Column names recognised in CSV imports besides the entity dimension and
// the dataset's numeric fields
const (
	ColumnID        = "id"
	ColumnTimestamp = "timestamp"
	ColumnObserver  = "displayName"
	ColumnGroupSize = "groupSize"
	ColumnStatuses  = "ledgeStatuses"
)

// timestampLayouts are tried in order; submissions arrive in mixed formats
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Importer loads observations from CSV or JSON files into storage
type Importer struct {
	storage storage.Storage
}

// NewImporter creates a new importer
func NewImporter(store storage.Storage) *Importer {
	return &Importer{storage: store}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	Dataset              string    `json:"dataset"`
	ObservationsImported int       `json:"observations_imported"`
	BatchesWritten       int       `json:"batches_written"`
	TimeRange            string    `json:"time_range"`
	ImportedAt           time.Time `json:"imported_at"`
}

// ImportData is the JSON import document. It is also what ExportObservations
// produces, so a dataset can be round-tripped.
type ImportData struct {
	Metadata struct {
		Dataset          string    `json:"dataset"`
		ExportedAt       time.Time `json:"exported_at"`
		ObservationCount int       `json:"observation_count"`
		Version          string    `json:"version"`
	} `json:"metadata"`
	Observations []observation.Observation `json:"observations"`
}

// ImportFromJSON imports observations from a JSON document
func (im *Importer) ImportFromJSON(ctx context.Context, ds config.Dataset, r io.Reader) (*ImportResult, error) {
	var data ImportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("decode JSON import: %v", err))
	}

	for i, o := range data.Observations {
		if err := checkImported(ds, i, o); err != nil {
			return nil, err
		}
	}
	return im.write(ctx, ds, data.Observations)
}

// ImportFromCSV imports observations from a CSV file with a header row.
// The entity column is named after the dataset's entity dimension; "entity"
// is accepted as well.
func (im *Importer) ImportFromCSV(ctx context.Context, ds config.Dataset, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.ErrDataIntegrity.New("CSV import is empty")
		}
		return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("read CSV header: %v", err))
	}

	cols, err := mapColumns(ds, header)
	if err != nil {
		return nil, err
	}

	var rows []observation.Observation
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("read CSV line %d: %v", line, err))
		}

		o, err := cols.parse(ds, record, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, o)
	}
	return im.write(ctx, ds, rows)
}

// write stores rows in batches. A single badger transaction cannot hold an
// arbitrarily large import.
func (im *Importer) write(ctx context.Context, ds config.Dataset, rows []observation.Observation) (*ImportResult, error) {
	result := &ImportResult{Dataset: ds.Name, TimeRange: "empty"}

	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
	}

	for i := 0; i < len(rows); i += config.ImportBatchSize {
		end := i + config.ImportBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := im.storage.Write(ctx, ds.Name, rows[i:end]); err != nil {
			return nil, fmt.Errorf("failed to write batch %d: %w", result.BatchesWritten, err)
		}
		result.BatchesWritten++
	}

	if len(rows) > 0 {
		minTime, maxTime := rows[0].Timestamp, rows[0].Timestamp
		for _, o := range rows {
			if o.Timestamp.Before(minTime) {
				minTime = o.Timestamp
			}
			if o.Timestamp.After(maxTime) {
				maxTime = o.Timestamp
			}
		}
		result.TimeRange = fmt.Sprintf("%s to %s", minTime.Format(time.RFC3339), maxTime.Format(time.RFC3339))
	}

	result.ObservationsImported = len(rows)
	result.ImportedAt = time.Now()
	return result, nil
}

// checkImported applies the same rules the engine applies when building a
// table, so bad rows are rejected at the door rather than on the next refresh.
func checkImported(ds config.Dataset, i int, o observation.Observation) error {
	if o.Entity == "" {
		return errs.ErrDataIntegrity.New(fmt.Sprintf("row %d: missing %s", i, ds.EntityDimension))
	}
	if o.Timestamp.IsZero() {
		return errs.ErrDataIntegrity.New(fmt.Sprintf("row %d: missing timestamp", i))
	}
	if ds.LedgeTally {
		return nil
	}
	for _, f := range ds.Fields {
		v, ok := o.Values[f]
		if !ok {
			return errs.ErrDataIntegrity.New(fmt.Sprintf("row %d: missing field %q", i, f))
		}
		if v < 0 || v != float64(int64(v)) {
			return errs.ErrDataIntegrity.New(fmt.Sprintf("row %d: field %q is not a non-negative integer (%v)", i, f, v))
		}
	}
	return nil
}

type columns struct {
	id, entity, timestamp, observer, groupSize, statuses int
	fields                                               map[string]int
}

func mapColumns(ds config.Dataset, header []string) (*columns, error) {
	c := &columns{id: -1, entity: -1, timestamp: -1, observer: -1, groupSize: -1, statuses: -1, fields: make(map[string]int)}

	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case name == ColumnID:
			c.id = i
		case name == ds.EntityDimension, name == "entity" && c.entity < 0:
			c.entity = i
		case name == ColumnTimestamp:
			c.timestamp = i
		case name == ColumnObserver:
			c.observer = i
		case name == ColumnGroupSize:
			c.groupSize = i
		case name == ColumnStatuses:
			c.statuses = i
		case ds.Schema().HasField(name):
			c.fields[name] = i
		}
	}

	if c.entity < 0 {
		return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("CSV has no %q column", ds.EntityDimension))
	}
	if c.timestamp < 0 {
		return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("CSV has no %q column", ColumnTimestamp))
	}
	if ds.LedgeTally {
		if c.statuses < 0 {
			return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("CSV has no %q column", ColumnStatuses))
		}
		return c, nil
	}
	for _, f := range ds.Fields {
		if _, ok := c.fields[f]; !ok {
			return nil, errs.ErrDataIntegrity.New(fmt.Sprintf("CSV has no %q column", f))
		}
	}
	return c, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c *columns) parse(ds config.Dataset, record []string, line int) (observation.Observation, error) {
	o := observation.Observation{
		ID:       cell(record, c.id),
		Entity:   cell(record, c.entity),
		Observer: cell(record, c.observer),
	}
	if o.Entity == "" {
		return o, errs.ErrDataIntegrity.New(fmt.Sprintf("line %d: missing %s", line, ds.EntityDimension))
	}

	ts, err := parseTimestamp(cell(record, c.timestamp))
	if err != nil {
		return o, errs.ErrDataIntegrity.New(fmt.Sprintf("line %d: %v", line, err))
	}
	o.Timestamp = ts

	// Group size is optional metadata; anything unparseable means a lone observer
	o.GroupSize = 1
	if n, err := strconv.Atoi(cell(record, c.groupSize)); err == nil && n > 0 {
		o.GroupSize = n
	}

	if len(c.fields) > 0 {
		o.Values = make(map[string]float64, len(c.fields))
	}
	for f, i := range c.fields {
		raw := cell(record, i)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if raw == "" && ds.LedgeTally {
				continue
			}
			return o, errs.ErrDataIntegrity.New(fmt.Sprintf("line %d: field %q: cannot coerce %q to a number", line, f, raw))
		}
		if v < 0 || v != float64(int64(v)) {
			return o, errs.ErrDataIntegrity.New(fmt.Sprintf("line %d: field %q is not a non-negative integer (%v)", line, f, v))
		}
		o.Values[f] = v
	}

	if raw := cell(record, c.statuses); raw != "" {
		if err := json.Unmarshal([]byte(raw), &o.Statuses); err != nil {
			return o, errs.ErrDataIntegrity.New(fmt.Sprintf("line %d: %s is not a JSON object: %v", line, ColumnStatuses, err))
		}
	}
	return o, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", raw)
}
