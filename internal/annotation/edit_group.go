package annotation

import (
	"github.com/roach88/annotie/internal/record"
)

// GroupEntities puts the selected entities into one group.
//
// A group is fully selected when every one of its members is in ids.
//  1. Exactly one group is fully selected and holds nothing else: no-op.
//  2. No group is fully selected: a new group named after the first
//     selected entity receives every selected entity.
//  3. Otherwise the first fully selected group, in the order its members
//     appear in ids, receives every other selected entity, and the other
//     fully selected groups are deleted as they empty.
func (ed *Editor) GroupEntities(ids []string) (record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	ents, err := s.lookupEntities(ids)
	if err != nil || len(ents) == 0 {
		return cs, err
	}

	selected := make(map[string]struct{}, len(ents))
	for _, e := range ents {
		selected[e.id] = struct{}{}
	}
	var full []*groupNode
	seen := map[string]struct{}{}
	for _, e := range ents {
		if _, ok := seen[e.groupID]; ok {
			continue
		}
		seen[e.groupID] = struct{}{}
		g := s.groups[e.groupID]
		if coversGroup(g, selected) {
			full = append(full, g)
		}
	}

	switch {
	case len(full) == 1 && len(full[0].entities) == len(ents):
		return cs, nil
	case len(full) == 0:
		target := s.createGroup(ents[0].name, &cs)
		for _, e := range ents {
			s.moveEntity(e, target, &cs)
		}
	default:
		target := full[0]
		for _, e := range ents {
			s.moveEntity(e, target, &cs)
		}
	}
	return cs, nil
}

func coversGroup(g *groupNode, selected map[string]struct{}) bool {
	for id := range g.entities {
		if _, ok := selected[id]; !ok {
			return false
		}
	}
	return true
}

// MoveEntitiesToGroup moves entities into an existing group, deleting any
// source group the move empties.
func (ed *Editor) MoveEntitiesToGroup(ids []string, groupID string) (record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	target, ok := s.groups[groupID]
	if !ok {
		return cs, notFound("groups", groupID)
	}
	ents, err := s.lookupEntities(ids)
	if err != nil {
		return cs, err
	}
	for _, e := range ents {
		s.moveEntity(e, target, &cs)
	}
	return cs, nil
}

// CreateGroup creates a group holding the given entities and returns its id.
// An empty name takes the name of the first entity. At least one entity is
// required since groups never exist without members.
func (ed *Editor) CreateGroup(name string, ids []string) (string, record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	ents, err := s.lookupEntities(ids)
	if err != nil {
		return "", cs, err
	}
	if len(ents) == 0 {
		return "", cs, &Error{Code: ErrCodeEmptyGroup, Kind: "groups", Message: "a group needs at least one entity"}
	}
	if name == "" {
		name = ents[0].name
	}
	g := s.createGroup(name, &cs)
	for _, e := range ents {
		s.moveEntity(e, g, &cs)
	}
	return g.id, cs, nil
}

// RenameGroup changes a group's display name.
func (ed *Editor) RenameGroup(id, name string) (record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	g, ok := s.groups[id]
	if !ok {
		return cs, notFound("groups", id)
	}
	if g.name != name {
		g.name = name
		cs.Upsert(record.KindGroup, id, record.Fields{"name": name})
	}
	return cs, nil
}
