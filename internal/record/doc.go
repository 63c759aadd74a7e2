// Package record defines the flat, persisted shape of an annotation and the
// change-sets that describe edits to it.
//
// This package contains value types only. The live annotation graph lives in
// internal/annotation; record is what crosses process boundaries (SQLite rows,
// HTTP PATCH bodies, imported files). record imports nothing internal.
//
// Key constraints:
//   - A persisted row only carries canonical fields, never back-references
//   - A tie endpoint names exactly one of location_id or entity_id
//   - A change-set entry is either a partial field update or the DELETE marker
//   - All JSON tags use snake_case
package record
