// Package queue persists archival items in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, duplicate
// detection at insertion, stats queries, stuck-item recovery, and the status
// transitions the scheduler and stages rely on. Items capture the source URL,
// resolved media metadata, the remote provider reference, and encoding
// progress so stages can coordinate without additional state. Application
// settings (API keys, download directory, upload behavior) live in the same
// database and are saved as a whole.
//
// Schema changes bump the version in schema.go; databases written by the
// legacy key-value layout are migrated in one step at open.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or item fields, update schema.sql and bump
// schemaVersion.
package queue
