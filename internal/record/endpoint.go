package record

import (
	"encoding/json"
	"fmt"
)

// EndpointKind tags the variant of a tie endpoint.
type EndpointKind int

const (
	// EndpointInvalid is the zero value and the kind of an endpoint that
	// named neither or both of its keys.
	EndpointInvalid EndpointKind = iota
	// EndpointLocation binds a tie to one specific mention.
	EndpointLocation
	// EndpointEntity binds a tie to an entity in the abstract.
	EndpointEntity
)

func (k EndpointKind) String() string {
	switch k {
	case EndpointLocation:
		return "location"
	case EndpointEntity:
		return "entity"
	}
	return "invalid"
}

// Endpoint is one side of a tie: either ByLocation(id) or ByEntity(id).
//
// On the wire it is an object holding exactly one of location_id or
// entity_id. Decoding never fails on a bad shape; it yields an endpoint of
// kind EndpointInvalid so the loader can report which tie is broken.
type Endpoint struct {
	kind EndpointKind
	id   string
}

// ByLocation returns an endpoint bound to a mention.
func ByLocation(locationID string) Endpoint {
	return Endpoint{kind: EndpointLocation, id: locationID}
}

// ByEntity returns an endpoint bound to an entity.
func ByEntity(entityID string) Endpoint {
	return Endpoint{kind: EndpointEntity, id: entityID}
}

// Kind returns the variant.
func (e Endpoint) Kind() EndpointKind { return e.kind }

// ID returns the referenced location or entity id.
func (e Endpoint) ID() string { return e.id }

// Valid reports whether the endpoint names exactly one non-empty reference.
func (e Endpoint) Valid() bool {
	return e.kind != EndpointInvalid && e.id != ""
}

func (e Endpoint) String() string {
	if !e.Valid() {
		return "invalid"
	}
	return e.kind.String() + ":" + e.id
}

type endpointWire struct {
	LocationID *string `json:"location_id,omitempty"`
	EntityID   *string `json:"entity_id,omitempty"`
}

// MarshalJSON encodes the endpoint as {"location_id": id} or {"entity_id": id}.
func (e Endpoint) MarshalJSON() ([]byte, error) {
	id := e.id
	switch e.kind {
	case EndpointLocation:
		return json.Marshal(endpointWire{LocationID: &id})
	case EndpointEntity:
		return json.Marshal(endpointWire{EntityID: &id})
	}
	return nil, fmt.Errorf("marshal endpoint: neither location_id nor entity_id set")
}

// UnmarshalJSON decodes either variant. Numeric ids are accepted and kept
// in their decimal form.
func (e *Endpoint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal endpoint: %w", err)
	}
	loc, hasLoc := raw["location_id"]
	ent, hasEnt := raw["entity_id"]
	*e = Endpoint{}
	switch {
	case hasLoc && !hasEnt:
		id, err := decodeID(loc)
		if err != nil {
			return fmt.Errorf("unmarshal endpoint location_id: %w", err)
		}
		*e = ByLocation(id)
	case hasEnt && !hasLoc:
		id, err := decodeID(ent)
		if err != nil {
			return fmt.Errorf("unmarshal endpoint entity_id: %w", err)
		}
		*e = ByEntity(id)
	}
	return nil
}

// decodeID accepts a JSON string or number as an opaque id.
func decodeID(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
