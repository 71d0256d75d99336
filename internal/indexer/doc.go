// Package indexer implements the index synchronization engine: it
// reconciles the authoritative on-disk media tree against the SQLite index
// and the thumbnail cache.
//
// Reconciliation is pull-based. A pass lists live files, diffs them
// against the stored paths, and computes three disjoint sets:
//   - insert: on disk, not in the index
//   - update: in both, but the disk modification time is newer
//   - delete: in the index, gone from disk
//
// Only insert and update files are probed and thumbnailed; the whole delta
// commits in one transaction, so readers never observe a half-applied
// pass. Modification time is the sole staleness signal: a file whose
// content changes without touching its mtime is not re-probed.
//
// Two modes share the delta logic:
//   - Full: the entire folder topology, refreshed wholesale first. Runs at
//     startup, on a timer, and on manual trigger.
//   - Scoped: one folder's direct children, run synchronously before a
//     folder view is served. Concurrent requests for the same folder share
//     one pass via singleflight.
//
// Passes are idempotent: the delta is a pure function of disk state versus
// store state, and an aborted pass leaves the store at its pre-pass state.
package indexer
