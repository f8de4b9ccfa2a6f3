// Package export moves observation data in and out of the service.
//
// # Overview
//
// Three flows are supported:
//   - Matrix export: an aggregate matrix (time × entity for one field) as
//     CSV or JSON, for analysis in spreadsheets or notebooks
//   - Backup: every stored observation of a dataset as JSON
//   - Import: CSV field sheets or JSON backups written back into storage
//
// # Matrix Export
//
// GET /v1/datasets/{dataset}/export
//
// Query parameters follow /aggregate: field (required), frequency,
// percentile, entity (repeatable), year, plus format ("csv" or "json").
//
// CSV has one row per grid point: timestamp, one column per entity, and a
// trailing total. A cell with no observations is empty, which is not the
// same as 0. JSON uses null for the same cells.
//
//	curl "http://localhost:8080/v1/datasets/city/export?field=adultCount&percentile=0.75" \
//	  -o city-adults.csv
//
// # Import
//
// POST /v1/datasets/{dataset}/import
//
// CSV imports need a header row naming the entity dimension (or "entity"),
// "timestamp" and every numeric field of the dataset. Ledge datasets need a
// "ledgeStatuses" column holding a JSON object instead. Optional columns:
// "id", "displayName", "groupSize".
//
// Numeric fields are coerced strictly: a value that is not a non-negative
// integer rejects the whole file with a data integrity error. Group size is
// lenient and falls back to 1. Rows without an id get a fresh UUID, and rows
// with a known id replace the stored row, so re-importing a backup is safe.
//
//	curl -X POST -H "Content-Type: text/csv" \
//	  --data-binary @city.csv http://localhost:8080/v1/datasets/city/import
//
// Writes are split into batches of config.ImportBatchSize so a large file
// never exceeds a single storage transaction.
package export
