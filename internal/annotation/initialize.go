package annotation

import (
	"fmt"

	"github.com/roach88/annotie/internal/record"
)

// Initialize builds a store from a flat record and links the derived
// indexes in a single pass:
//   - each entity joins its group's member map
//   - each location joins its entity's location set
//   - each tie joins the tie set of the location or entity each endpoint
//     is bound to
//
// Any dangling reference (group_id, entity_id, tie endpoint), invalid span,
// or empty group fails with a MALFORMED_ANNOTATION error and no store is
// returned. Missing counters are derived from the largest numeric id.
func Initialize(rec record.Record) (*Store, error) {
	s := New()

	for _, id := range record.SortIDs(keysOfRecord(rec.Groups)) {
		s.groups[id] = newGroupNode(id, rec.Groups[id].Name)
	}

	for _, id := range record.SortIDs(keysOfRecord(rec.Entities)) {
		row := rec.Entities[id]
		g, ok := s.groups[row.GroupID]
		if !ok {
			return nil, malformed("entities", id, fmt.Sprintf("group_id %q does not exist", row.GroupID), nil)
		}
		e := newEntityNode(id, row.Name, row.GroupID)
		s.entities[id] = e
		g.entities[id] = e
	}

	for id, g := range s.groups {
		if len(g.entities) == 0 {
			return nil, malformed("groups", id, "group has no members", nil)
		}
	}

	for _, id := range record.SortIDs(keysOfRecord(rec.Locations)) {
		row := rec.Locations[id]
		if err := checkSpan(row.Start, row.End); err != nil {
			return nil, malformed("locations", id, "invalid span", err)
		}
		e, ok := s.entities[row.EntityID]
		if !ok {
			return nil, malformed("locations", id, fmt.Sprintf("entity_id %q does not exist", row.EntityID), nil)
		}
		s.locations[id] = newLocationNode(id, row.Start, row.End, row.EntityID)
		e.locations[id] = struct{}{}
	}

	for _, id := range record.SortIDs(keysOfRecord(rec.Ties)) {
		row := rec.Ties[id]
		if err := checkSpan(row.Start, row.End); err != nil {
			return nil, malformed("ties", id, "invalid span", err)
		}
		if _, err := s.resolve(row.SourceEntity); err != nil {
			return nil, malformed("ties", id, "source_entity does not resolve", err)
		}
		if _, err := s.resolve(row.TargetEntity); err != nil {
			return nil, malformed("ties", id, "target_entity does not resolve", err)
		}
		t := &tieNode{
			id:       id,
			start:    row.Start,
			end:      row.End,
			source:   row.SourceEntity,
			target:   row.TargetEntity,
			label:    row.Label,
			weight:   row.Weight,
			directed: row.Directed,
		}
		s.ties[id] = t
		s.linkTie(t)
	}

	s.lastEntityID = max(rec.LastEntityID, maxNumericID(rec.Entities))
	s.lastGroupID = max(rec.LastGroupID, maxNumericID(rec.Groups))
	s.lastTieID = max(rec.LastTieID, maxNumericID(rec.Ties))

	return s, nil
}

func checkSpan(start, end int) error {
	if start < 0 || end < 0 || start > end {
		return invalidSpan(start, end)
	}
	return nil
}

func keysOfRecord[V any](m map[string]V) []string {
	return keys(m)
}

func maxNumericID[V any](m map[string]V) int64 {
	var out int64
	for id := range m {
		if n, ok := record.NumericID(id); ok && n > out {
			out = n
		}
	}
	return out
}
