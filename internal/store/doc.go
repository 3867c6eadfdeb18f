// Package store provides the SQLite-backed record store adapter.
//
// Every collection lives in one table of JSON documents:
//
//	records(seq, collection, id, body, created_at)
//
// # Critical Patterns
//
// Ordering: reads ORDER BY seq ASC. seq is assigned on insert and never
// reused, so results come back in insertion order regardless of wall time.
//
// Filters: equality predicates compile to json_extract/json_type clauses.
// Field names are validated against a plain identifier pattern before they
// reach SQL; values are always bound parameters.
//
// Updates: read-merge-write inside a single transaction per call. There is
// no transaction spanning calls (see record.Store).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: SQLite has a single writer
//
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, cgo,
// default) and "sqlite" (modernc.org/sqlite, pure Go).
package store
