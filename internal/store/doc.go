// Package store provides SQLite-backed storage for compiled plans: the
// aggregation pipelines and collection validators produced from a catalog.
//
// # Identity
//
// A pipeline row is identified by the fingerprint of its model name, sorted
// view modes and canonical stages. Saving the same plan twice is a no-op that
// returns the existing row. Validators are keyed by model and dialect; saving
// a changed validator bumps its revision.
//
// # Ordering
//
// Listings are ordered by seq, then fingerprint (COLLATE BINARY), so
// results are identical across runs regardless of wall time.
//
// # Connection Settings
//
//   - journal_mode=WAL
//   - synchronous=NORMAL
//   - busy_timeout=5000 (milliseconds)
//
// Stages and validator documents are stored as canonical relaxed Extended
// JSON (see internal/document), which keeps stage key order and ObjectID or
// UUID values intact on the way back out.
package store
