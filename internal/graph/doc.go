// Package graph projects an annotation into a group-level node/edge graph
// for visualization and export.
//
// Nodes are alias groups. Each tie becomes an edge between the groups its
// endpoints resolve to; ties that share a key are collapsed under a merge
// method. The projection is read-only and can be recomputed at any time from
// the store's canonical state.
package graph
