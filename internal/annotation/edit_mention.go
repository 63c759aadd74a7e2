package annotation

import (
	"github.com/roach88/annotie/internal/record"
)

func (s *Store) addLocation(e *entityNode, span Span, cs *record.ChangeSet) string {
	id := record.LocationID(span.Start, span.End)
	s.locations[id] = newLocationNode(id, span.Start, span.End, e.id)
	e.locations[id] = struct{}{}
	cs.Upsert(record.KindLocation, id, record.Fields{
		"start":     span.Start,
		"end":       span.End,
		"entity_id": e.id,
	})
	return id
}

// AddMention records that entityID is mentioned at span and returns the
// location id ("{start}_{end}"). A span can carry only one mention.
func (ed *Editor) AddMention(entityID string, span Span) (string, record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	if err := checkSpan(span.Start, span.End); err != nil {
		return "", cs, err
	}
	e, ok := s.entities[entityID]
	if !ok {
		return "", cs, notFound("entities", entityID)
	}
	if id := record.LocationID(span.Start, span.End); s.locations[id] != nil {
		return "", cs, &Error{Code: ErrCodeConflict, Kind: "locations", ID: id, Message: "span is already annotated"}
	}
	return s.addLocation(e, span, &cs), cs, nil
}

// RemoveMention deletes a mention and every tie bound to it.
func (ed *Editor) RemoveMention(id string) (record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	l, ok := s.locations[id]
	if !ok {
		return cs, notFound("locations", id)
	}
	s.deleteLocation(l, &cs)
	return cs, nil
}

// MentionUpdate lists the mention fields to change. The span is the
// location's identity and cannot be changed; remove and re-add instead.
type MentionUpdate struct {
	EntityID *string
}

// UpdateMention reassigns a mention to another entity. Ties bound to the
// mention follow it, since they resolve through the location.
func (ed *Editor) UpdateMention(id string, upd MentionUpdate) (record.ChangeSet, error) {
	s := ed.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs record.ChangeSet
	l, ok := s.locations[id]
	if !ok {
		return cs, notFound("locations", id)
	}
	if upd.EntityID == nil || *upd.EntityID == l.entityID {
		return cs, nil
	}
	next, ok := s.entities[*upd.EntityID]
	if !ok {
		return cs, notFound("entities", *upd.EntityID)
	}
	if prev, ok := s.entities[l.entityID]; ok {
		delete(prev.locations, id)
	}
	next.locations[id] = struct{}{}
	l.entityID = next.id
	cs.Upsert(record.KindLocation, id, record.Fields{"entity_id": next.id})
	return cs, nil
}
