package annotation

import (
	"errors"
	"fmt"

	"github.com/roach88/annotie/internal/record"
)

// Check verifies every structural invariant of the store and returns all
// violations joined, or nil. It never modifies the store.
//
// Invariants:
//   - every entity's group exists and lists the entity; every group has a member
//   - every location's entity exists and lists the location
//   - every tie endpoint resolves to a live entity
//   - the tie back-reference sets hold exactly the ties bound there
//   - no id exceeds its counter
func (s *Store) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for id, e := range s.entities {
		g, ok := s.groups[e.groupID]
		if !ok {
			fail("entity %q: group %q does not exist", id, e.groupID)
			continue
		}
		if g.entities[id] != e {
			fail("entity %q: not a member of its group %q", id, e.groupID)
		}
		for locID := range e.locations {
			if l, ok := s.locations[locID]; !ok || l.entityID != id {
				fail("entity %q: stale location %q", id, locID)
			}
		}
	}

	for id, g := range s.groups {
		if len(g.entities) == 0 {
			fail("group %q: no members", id)
		}
		for entityID, e := range g.entities {
			if s.entities[entityID] != e || e.groupID != id {
				fail("group %q: stale member %q", id, entityID)
			}
		}
	}

	for id, l := range s.locations {
		if err := checkSpan(l.start, l.end); err != nil {
			fail("location %q: %v", id, err)
		}
		e, ok := s.entities[l.entityID]
		if !ok {
			fail("location %q: entity %q does not exist", id, l.entityID)
			continue
		}
		if _, ok := e.locations[id]; !ok {
			fail("location %q: missing from entity %q", id, l.entityID)
		}
	}

	wantEntityTies := map[string]map[string]struct{}{}
	wantLocationTies := map[string]map[string]struct{}{}
	for id, t := range s.ties {
		for _, ep := range t.endpoints() {
			if _, err := s.resolve(ep); err != nil {
				fail("tie %q: %v", id, err)
				continue
			}
			want := wantEntityTies
			if ep.Kind() == record.EndpointLocation {
				want = wantLocationTies
			}
			if want[ep.ID()] == nil {
				want[ep.ID()] = map[string]struct{}{}
			}
			want[ep.ID()][id] = struct{}{}
		}
	}
	for id, e := range s.entities {
		if !sameSet(e.ties, wantEntityTies[id]) {
			fail("entity %q: tie index %v, want %v", id, record.SortIDs(keys(e.ties)), record.SortIDs(keys(wantEntityTies[id])))
		}
	}
	for id, l := range s.locations {
		if !sameSet(l.ties, wantLocationTies[id]) {
			fail("location %q: tie index %v, want %v", id, record.SortIDs(keys(l.ties)), record.SortIDs(keys(wantLocationTies[id])))
		}
	}

	if n := maxNumericID(s.entities); n > s.lastEntityID {
		fail("entity id %d exceeds last_entity_id %d", n, s.lastEntityID)
	}
	if n := maxNumericID(s.groups); n > s.lastGroupID {
		fail("group id %d exceeds last_group_id %d", n, s.lastGroupID)
	}
	if n := maxNumericID(s.ties); n > s.lastTieID {
		fail("tie id %d exceeds last_tie_id %d", n, s.lastTieID)
	}

	return errors.Join(errs...)
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
