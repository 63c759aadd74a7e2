// Package annotation holds the live annotation graph for one annotation
// instance and the only code allowed to change it.
//
// A Store owns four canonical maps (entities, groups, locations, ties), the
// three id counters, and the derived back-reference indexes:
//   - group -> member entities
//   - entity -> locations mentioning it
//   - entity -> ties bound to it directly (ByEntity endpoints)
//   - location -> ties bound to it (ByLocation endpoints)
//
// The indexes are built once by Initialize and maintained incrementally by
// Editor operations afterwards. Readers get value copies through the Store
// accessors or a View; nothing outside this package can write to a Store.
//
// Every Editor operation validates its whole input before touching state, so
// an error means nothing changed. On success it returns the change-set that
// brings a persisted copy of the record to the same state.
package annotation
