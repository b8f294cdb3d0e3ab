// Package storage persists tickd frame history.
//
// It currently supports:
//   - Frame rows (per-tick dispatch accounting, batched by the app)
//   - Summary rows (periodic reporter snapshots)
//
// Retention is bounded: old frame rows are pruned opportunistically so the
// database cannot grow without limit.
package storage
