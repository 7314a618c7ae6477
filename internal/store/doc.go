// Package store provides the SQLite-backed record store the engine reads and
// writes through.
//
// Records are generic typed attribute bags keyed by (type, id):
//
//	records(type, id, created_on, attributes)
//	option_labels(record_type, attribute, code, label)
//
// attributes holds the canonical tagged JSON produced by ir.Attributes, so
// queries compiled by internal/querysql address values with json_extract on
// the variant tag ("$.customerid.ref.id", "$.name.text").
//
// # Ordering
//
// Every query ends with "id COLLATE BINARY ASC". created_on is stored as
// Unix nanoseconds so "earliest" comparisons are integer comparisons.
//
// # Schema
//
// The schema is managed with golang-migrate from migrations embedded in the
// binary and applied on Open.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - a single connection: SQLite has one writer anyway
//
// # Errors
//
// Every failure to reach or change the database is a *DataAccessError. A
// missing option label is a *MetadataError. ErrNotFound is wrapped inside a
// DataAccessError when a retrieved, updated or deleted record does not exist.
package store
