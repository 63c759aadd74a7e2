package annotation

import (
	"github.com/roach88/annotie/internal/record"
)

// Entity is a read-only copy of an entity and its derived indexes.
type Entity struct {
	ID      string
	Name    string
	GroupID string

	// Locations lists the mentions of this entity.
	Locations []string

	// Ties lists the ties bound to this entity directly, not through one of
	// its locations. See View.TiesOf for both.
	Ties []string
}

// Group is a read-only copy of an alias group.
type Group struct {
	ID       string
	Name     string
	Entities []string
}

// Location is a read-only copy of a mention.
type Location struct {
	ID       string
	Start    int
	End      int
	EntityID string

	// Ties lists the ties bound to this location.
	Ties []string
}

// Tie is a read-only copy of a tie.
type Tie struct {
	ID       string
	Start    int
	End      int
	Source   record.Endpoint
	Target   record.Endpoint
	Label    string
	Weight   float64
	Directed bool
}

// View reads a store without locking. It is only valid inside Store.View.
type View struct {
	s *Store
}

// ResolveEndpoint returns the id of the entity an endpoint refers to.
func (v View) ResolveEndpoint(ep record.Endpoint) (string, error) {
	return v.s.resolve(ep)
}

// ResolveGroup returns the group id of the entity an endpoint refers to.
func (v View) ResolveGroup(ep record.Endpoint) (string, error) {
	entityID, err := v.s.resolve(ep)
	if err != nil {
		return "", err
	}
	return v.s.entities[entityID].groupID, nil
}

// Entity returns a copy of one entity.
func (v View) Entity(id string) (Entity, bool) {
	e, ok := v.s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return copyEntity(e), true
}

// Group returns a copy of one group.
func (v View) Group(id string) (Group, bool) {
	g, ok := v.s.groups[id]
	if !ok {
		return Group{}, false
	}
	return copyGroup(g), true
}

// Location returns a copy of one location.
func (v View) Location(id string) (Location, bool) {
	l, ok := v.s.locations[id]
	if !ok {
		return Location{}, false
	}
	return copyLocation(l), true
}

// Tie returns a copy of one tie.
func (v View) Tie(id string) (Tie, bool) {
	t, ok := v.s.ties[id]
	if !ok {
		return Tie{}, false
	}
	return copyTie(t), true
}

// Entities returns copies of all entities in id order.
func (v View) Entities() []Entity {
	out := make([]Entity, 0, len(v.s.entities))
	for _, id := range sortedKeys(v.s.entities) {
		out = append(out, copyEntity(v.s.entities[id]))
	}
	return out
}

// Groups returns copies of all groups in id order.
func (v View) Groups() []Group {
	out := make([]Group, 0, len(v.s.groups))
	for _, id := range sortedKeys(v.s.groups) {
		out = append(out, copyGroup(v.s.groups[id]))
	}
	return out
}

// Locations returns copies of all locations in id order.
func (v View) Locations() []Location {
	out := make([]Location, 0, len(v.s.locations))
	for _, id := range sortedKeys(v.s.locations) {
		out = append(out, copyLocation(v.s.locations[id]))
	}
	return out
}

// Ties returns copies of all ties in id order.
func (v View) Ties() []Tie {
	out := make([]Tie, 0, len(v.s.ties))
	for _, id := range sortedKeys(v.s.ties) {
		out = append(out, copyTie(v.s.ties[id]))
	}
	return out
}

// TiesOf returns every tie that resolves to the entity, whether bound to it
// directly or through one of its locations.
func (v View) TiesOf(entityID string) []string {
	e, ok := v.s.entities[entityID]
	if !ok {
		return nil
	}
	return record.SortIDs(keys(v.s.tiesOf(e)))
}

// tiesOf collects direct and location-bound ties of an entity.
func (s *Store) tiesOf(e *entityNode) map[string]struct{} {
	out := make(map[string]struct{}, len(e.ties))
	for id := range e.ties {
		out[id] = struct{}{}
	}
	for locID := range e.locations {
		for id := range s.locations[locID].ties {
			out[id] = struct{}{}
		}
	}
	return out
}

func copyEntity(e *entityNode) Entity {
	return Entity{
		ID:        e.id,
		Name:      e.name,
		GroupID:   e.groupID,
		Locations: record.SortIDs(keys(e.locations)),
		Ties:      record.SortIDs(keys(e.ties)),
	}
}

func copyGroup(g *groupNode) Group {
	return Group{ID: g.id, Name: g.name, Entities: sortedKeys(g.entities)}
}

func copyLocation(l *locationNode) Location {
	return Location{
		ID:       l.id,
		Start:    l.start,
		End:      l.end,
		EntityID: l.entityID,
		Ties:     record.SortIDs(keys(l.ties)),
	}
}

func copyTie(t *tieNode) Tie {
	return Tie{
		ID:       t.id,
		Start:    t.start,
		End:      t.end,
		Source:   t.source,
		Target:   t.target,
		Label:    t.label,
		Weight:   t.weight,
		Directed: t.directed,
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return record.SortIDs(keys(m))
}
