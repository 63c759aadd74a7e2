package annotation

import (
	"github.com/roach88/annotie/internal/record"
)

// Editor is the mutation engine: the only write path into a Store.
//
// Each method takes the store's write lock for its whole duration, checks
// every precondition, and only then mutates. A returned error therefore
// means the store is unchanged. A nil error comes with the change-set that
// reproduces the mutation on a persisted copy; an operation that turns out
// to be a no-op returns an empty change-set.
type Editor struct {
	s *Store
}

// NewEditor returns the editor for a store.
func NewEditor(s *Store) *Editor {
	return &Editor{s: s}
}

// Store returns the store being edited, for reads.
func (ed *Editor) Store() *Store {
	return ed.s
}

// Span is an inclusive token range.
type Span struct {
	Start int
	End   int
}

func (s *Store) allocEntityID(cs *record.ChangeSet) string {
	s.lastEntityID++
	cs.SetLastEntityID(s.lastEntityID)
	return record.FormatID(s.lastEntityID)
}

func (s *Store) allocGroupID(cs *record.ChangeSet) string {
	s.lastGroupID++
	cs.SetLastGroupID(s.lastGroupID)
	return record.FormatID(s.lastGroupID)
}

func (s *Store) allocTieID(cs *record.ChangeSet) string {
	s.lastTieID++
	cs.SetLastTieID(s.lastTieID)
	return record.FormatID(s.lastTieID)
}

// lookupEntities resolves ids in input order, dropping repeats.
func (s *Store) lookupEntities(ids []string) ([]*entityNode, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]*entityNode, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		e, ok := s.entities[id]
		if !ok {
			return nil, notFound("entities", id)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) lookupTies(ids []string) ([]*tieNode, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]*tieNode, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		t, ok := s.ties[id]
		if !ok {
			return nil, notFound("ties", id)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) createGroup(name string, cs *record.ChangeSet) *groupNode {
	g := newGroupNode(s.allocGroupID(cs), name)
	s.groups[g.id] = g
	cs.Upsert(record.KindGroup, g.id, record.Fields{"name": name})
	return g
}

// moveEntity reassigns an entity to target, deleting its old group if the
// move leaves it empty.
func (s *Store) moveEntity(e *entityNode, target *groupNode, cs *record.ChangeSet) {
	if e.groupID == target.id {
		return
	}
	old := s.groups[e.groupID]
	delete(old.entities, e.id)
	if len(old.entities) == 0 {
		delete(s.groups, old.id)
		cs.Delete(record.KindGroup, old.id)
	}
	e.groupID = target.id
	target.entities[e.id] = e
	cs.Upsert(record.KindEntity, e.id, record.Fields{"group_id": target.id})
}

func (s *Store) deleteTie(t *tieNode, cs *record.ChangeSet) {
	s.unlinkTie(t)
	delete(s.ties, t.id)
	cs.Delete(record.KindTie, t.id)
}

// deleteLocation removes a mention and every tie bound to it.
func (s *Store) deleteLocation(l *locationNode, cs *record.ChangeSet) {
	for _, tieID := range record.SortIDs(keys(l.ties)) {
		if t, ok := s.ties[tieID]; ok {
			s.deleteTie(t, cs)
		}
	}
	if e, ok := s.entities[l.entityID]; ok {
		delete(e.locations, l.id)
	}
	delete(s.locations, l.id)
	cs.Delete(record.KindLocation, l.id)
}

// deleteEntity removes an entity with its ties, its mentions, and its group
// when the entity was the last member.
func (s *Store) deleteEntity(e *entityNode, cs *record.ChangeSet) {
	for _, tieID := range record.SortIDs(keys(e.ties)) {
		if t, ok := s.ties[tieID]; ok {
			s.deleteTie(t, cs)
		}
	}
	for _, locID := range record.SortIDs(keys(e.locations)) {
		if l, ok := s.locations[locID]; ok {
			s.deleteLocation(l, cs)
		}
	}
	if g, ok := s.groups[e.groupID]; ok {
		delete(g.entities, e.id)
		if len(g.entities) == 0 {
			delete(s.groups, g.id)
			cs.Delete(record.KindGroup, g.id)
		}
	}
	delete(s.entities, e.id)
	cs.Delete(record.KindEntity, e.id)
}
