package annotation

import (
	"sync"

	"github.com/roach88/annotie/internal/record"
)

type entityNode struct {
	id        string
	name      string
	groupID   string
	locations map[string]struct{}
	ties      map[string]struct{}
}

type groupNode struct {
	id       string
	name     string
	entities map[string]*entityNode
}

type locationNode struct {
	id       string
	start    int
	end      int
	entityID string
	ties     map[string]struct{}
}

type tieNode struct {
	id       string
	start    int
	end      int
	source   record.Endpoint
	target   record.Endpoint
	label    string
	weight   float64
	directed bool
}

func (t *tieNode) endpoints() [2]record.Endpoint {
	return [2]record.Endpoint{t.source, t.target}
}

// Store is the in-memory annotation graph of one annotation instance.
//
// Thread-safety: reads are safe from any goroutine; writes happen only
// through an Editor, which holds the write lock for a whole operation.
type Store struct {
	mu sync.RWMutex

	entities  map[string]*entityNode
	groups    map[string]*groupNode
	locations map[string]*locationNode
	ties      map[string]*tieNode

	lastEntityID int64
	lastGroupID  int64
	lastTieID    int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entities:  map[string]*entityNode{},
		groups:    map[string]*groupNode{},
		locations: map[string]*locationNode{},
		ties:      map[string]*tieNode{},
	}
}

// View runs fn with a consistent read-only view of the store.
func (s *Store) View(fn func(v View) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(View{s: s})
}

func (s *Store) view() View { return View{s: s} }

// ResolveEndpoint returns the id of the entity an endpoint refers to.
func (s *Store) ResolveEndpoint(ep record.Endpoint) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolve(ep)
}

// Entity returns a copy of one entity.
func (s *Store) Entity(id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Entity(id)
}

// Group returns a copy of one group.
func (s *Store) Group(id string) (Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Group(id)
}

// Location returns a copy of one location.
func (s *Store) Location(id string) (Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Location(id)
}

// Tie returns a copy of one tie.
func (s *Store) Tie(id string) (Tie, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Tie(id)
}

// Entities returns copies of all entities in id order.
func (s *Store) Entities() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Entities()
}

// Groups returns copies of all groups in id order.
func (s *Store) Groups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Groups()
}

// Locations returns copies of all locations in id order.
func (s *Store) Locations() []Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Locations()
}

// Ties returns copies of all ties in id order.
func (s *Store) Ties() []Tie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Ties()
}

// Counters returns the last allocated entity, group and tie ids.
func (s *Store) Counters() (entity, group, tie int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastEntityID, s.lastGroupID, s.lastTieID
}

// Snapshot serializes the canonical state into the flat persisted form.
// Derived indexes are not part of the output; Initialize rebuilds them.
func (s *Store) Snapshot() record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := record.NewRecord()
	for id, e := range s.entities {
		rec.Entities[id] = record.Entity{Name: e.name, GroupID: e.groupID}
	}
	for id, g := range s.groups {
		rec.Groups[id] = record.Group{Name: g.name}
	}
	for id, l := range s.locations {
		rec.Locations[id] = record.Location{Start: l.start, End: l.end, EntityID: l.entityID}
	}
	for id, t := range s.ties {
		rec.Ties[id] = t.row()
	}
	rec.LastEntityID = s.lastEntityID
	rec.LastGroupID = s.lastGroupID
	rec.LastTieID = s.lastTieID
	return rec
}

func (t *tieNode) row() record.Tie {
	return record.Tie{
		Start:        t.start,
		End:          t.end,
		SourceEntity: t.source,
		TargetEntity: t.target,
		Label:        t.label,
		Weight:       t.weight,
		Directed:     t.directed,
	}
}

// resolve follows a tie endpoint to its entity. Caller holds the lock.
func (s *Store) resolve(ep record.Endpoint) (string, error) {
	if !ep.Valid() {
		return "", &Error{Code: ErrCodeUnresolvable, Message: "endpoint must name exactly one of location_id or entity_id"}
	}
	switch ep.Kind() {
	case record.EndpointLocation:
		loc, ok := s.locations[ep.ID()]
		if !ok {
			return "", &Error{Code: ErrCodeUnresolvable, Kind: "locations", ID: ep.ID(), Message: "endpoint references a missing location"}
		}
		if _, ok := s.entities[loc.entityID]; !ok {
			return "", &Error{Code: ErrCodeUnresolvable, Kind: "entities", ID: loc.entityID, Message: "endpoint location references a missing entity"}
		}
		return loc.entityID, nil
	case record.EndpointEntity:
		if _, ok := s.entities[ep.ID()]; !ok {
			return "", &Error{Code: ErrCodeUnresolvable, Kind: "entities", ID: ep.ID(), Message: "endpoint references a missing entity"}
		}
		return ep.ID(), nil
	}
	return "", &Error{Code: ErrCodeUnresolvable, Message: "unknown endpoint kind"}
}

// linkTie adds the tie to the back-reference set of whatever each endpoint
// is bound to. Endpoints must resolve.
func (s *Store) linkTie(t *tieNode) {
	for _, ep := range t.endpoints() {
		s.linkEndpoint(t.id, ep)
	}
}

func (s *Store) linkEndpoint(tieID string, ep record.Endpoint) {
	switch ep.Kind() {
	case record.EndpointLocation:
		if loc, ok := s.locations[ep.ID()]; ok {
			loc.ties[tieID] = struct{}{}
		}
	case record.EndpointEntity:
		if ent, ok := s.entities[ep.ID()]; ok {
			ent.ties[tieID] = struct{}{}
		}
	}
}

// unlinkEndpoint removes a tie from the back-reference set of one endpoint,
// looking up the endpoint's current binding rather than assuming its form.
func (s *Store) unlinkEndpoint(tieID string, ep record.Endpoint) {
	switch ep.Kind() {
	case record.EndpointLocation:
		if loc, ok := s.locations[ep.ID()]; ok {
			delete(loc.ties, tieID)
		}
	case record.EndpointEntity:
		if ent, ok := s.entities[ep.ID()]; ok {
			delete(ent.ties, tieID)
		}
	}
}

func (s *Store) unlinkTie(t *tieNode) {
	for _, ep := range t.endpoints() {
		s.unlinkEndpoint(t.id, ep)
	}
}

func newEntityNode(id, name, groupID string) *entityNode {
	return &entityNode{
		id:        id,
		name:      name,
		groupID:   groupID,
		locations: map[string]struct{}{},
		ties:      map[string]struct{}{},
	}
}

func newGroupNode(id, name string) *groupNode {
	return &groupNode{id: id, name: name, entities: map[string]*entityNode{}}
}

func newLocationNode(id string, start, end int, entityID string) *locationNode {
	return &locationNode{id: id, start: start, end: end, entityID: entityID, ties: map[string]struct{}{}}
}
