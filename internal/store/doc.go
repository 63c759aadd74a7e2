// Package store provides the SQLite-backed persistence service for
// annotations.
//
// Each annotation is stored flat: one row per entity, group, location and
// tie holding only canonical fields as canonical JSON, plus the three id
// counters. Change-sets are merged into the rows with field-level
// last-write-wins and appended to a per-annotation log:
//   - a DELETE entry removes the row
//   - an upsert merges its fields into the stored row, creating it if absent
//   - counters present in the change-set overwrite the stored ones
//
// Log entries are keyed by their content-addressed id
// (record.ChangeSetID), so a retried change-set is a no-op even after later
// change-sets were applied. The log starts with an import (or fork) entry
// that recreates the whole record, so Replay can rebuild any annotation
// from its log alone.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
