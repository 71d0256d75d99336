// Package database implements the persistent file index over SQLite.
//
// The index is a cache of the authoritative on-disk media tree, never the
// source of truth. One table holds one row per indexed file, keyed by an
// identity derived from the file's absolute path. A schema version stamp is
// kept in PRAGMA user_version; on mismatch the table is dropped and the
// caller rebuilds it with a full reconciliation pass.
//
// Reconciliation passes batch their writes through BeginBatch/EndBatch so
// that a pass commits atomically: readers never observe a half-applied
// delta.
package database
