package annotation

import (
	"github.com/roach88/annotie/internal/record"
)

// AddEntity creates an entity and returns its id.
//
// With groupID empty, a new group named after the entity is created. With a
// span, a mention of the new entity is created too. The change-set carries
// the entity, last_entity_id, and the new group and location if any.
func (ed *Editor) AddEntity(name string, span *Span, groupID string) (string, record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	if span != nil {
		if err := checkSpan(span.Start, span.End); err != nil {
			return "", cs, err
		}
		if locID := record.LocationID(span.Start, span.End); s.locations[locID] != nil {
			return "", cs, &Error{Code: ErrCodeConflict, Kind: "locations", ID: locID, Message: "span is already annotated"}
		}
	}
	var g *groupNode
	if groupID != "" {
		var ok bool
		if g, ok = s.groups[groupID]; !ok {
			return "", cs, notFound("groups", groupID)
		}
	}

	id := s.allocEntityID(&cs)
	if g == nil {
		g = s.createGroup(name, &cs)
	}
	e := newEntityNode(id, name, g.id)
	s.entities[id] = e
	g.entities[id] = e
	cs.Upsert(record.KindEntity, id, record.Fields{"name": name, "group_id": g.id})

	if span != nil {
		s.addLocation(e, *span, &cs)
	}
	return id, cs, nil
}

// RemoveEntities deletes a batch of entities. For each entity its ties (direct
// and through its mentions) are deleted outright, then its mentions, then the
// entity, then its group if no member is left. Repeated ids are ignored; an
// unknown id fails the whole batch.
func (ed *Editor) RemoveEntities(ids []string) (record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	ents, err := s.lookupEntities(ids)
	if err != nil {
		return record.ChangeSet{}, err
	}
	for _, e := range ents {
		s.deleteEntity(e, &cs)
	}
	return cs, nil
}

// EntityUpdate lists the entity fields to change; nil fields are kept.
type EntityUpdate struct {
	Name    *string
	GroupID *string
}

// UpdateEntity renames and/or regroups an entity. Leaving a group empty
// deletes it.
func (ed *Editor) UpdateEntity(id string, upd EntityUpdate) (record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	e, ok := s.entities[id]
	if !ok {
		return cs, notFound("entities", id)
	}
	var target *groupNode
	if upd.GroupID != nil {
		if target, ok = s.groups[*upd.GroupID]; !ok {
			return cs, notFound("groups", *upd.GroupID)
		}
	}

	if upd.Name != nil && *upd.Name != e.name {
		e.name = *upd.Name
		cs.Upsert(record.KindEntity, id, record.Fields{"name": e.name})
	}
	if target != nil {
		s.moveEntity(e, target, &cs)
	}
	return cs, nil
}
