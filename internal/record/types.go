package record

import (
	"encoding/json"
	"fmt"
)

// Kind names one of the four canonical maps of an annotation.
type Kind string

const (
	KindEntity   Kind = "entities"
	KindGroup    Kind = "groups"
	KindLocation Kind = "locations"
	KindTie      Kind = "ties"
)

// Kinds lists every kind in the order rows are written and applied.
var Kinds = []Kind{KindGroup, KindEntity, KindLocation, KindTie}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEntity, KindGroup, KindLocation, KindTie:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// Entity is the persisted form of an entity.
type Entity struct {
	Name    string `json:"name"`
	GroupID string `json:"group_id"`
}

// Group is the persisted form of an alias group.
type Group struct {
	Name string `json:"name"`
}

// Location is the persisted form of a mention span. Start and End are
// inclusive token offsets.
type Location struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	EntityID string `json:"entity_id"`
}

// DefaultTieWeight is the weight of a tie that does not carry one.
const DefaultTieWeight = 1.0

// Tie is the persisted form of a relation between two endpoints.
type Tie struct {
	Start        int      `json:"start"`
	End          int      `json:"end"`
	SourceEntity Endpoint `json:"source_entity"`
	TargetEntity Endpoint `json:"target_entity"`
	Label        string   `json:"label"`
	Weight       float64  `json:"weight"`
	Directed     bool     `json:"directed"`
}

// UnmarshalJSON applies the weight default for rows that omit it. A null
// label decodes as the empty string.
func (t *Tie) UnmarshalJSON(data []byte) error {
	type plain Tie
	var raw struct {
		plain
		Label  *string  `json:"label"`
		Weight *float64 `json:"weight"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Tie(raw.plain)
	t.Label = ""
	if raw.Label != nil {
		t.Label = *raw.Label
	}
	t.Weight = DefaultTieWeight
	if raw.Weight != nil {
		t.Weight = *raw.Weight
	}
	return nil
}

// Record is the flat annotation as stored by the persistence service and as
// produced by the tokenizer/automatic annotation pipeline.
//
// The counters are optional on input; a missing counter is derived from the
// largest numeric id of its kind when the record is loaded.
type Record struct {
	Entities     map[string]Entity   `json:"entities"`
	Groups       map[string]Group    `json:"groups"`
	Locations    map[string]Location `json:"locations"`
	Ties         map[string]Tie      `json:"ties"`
	LastEntityID int64               `json:"last_entity_id,omitempty"`
	LastGroupID  int64               `json:"last_group_id,omitempty"`
	LastTieID    int64               `json:"last_tie_id,omitempty"`
}

// NewRecord returns an empty record with all maps allocated.
func NewRecord() Record {
	return Record{
		Entities:  map[string]Entity{},
		Groups:    map[string]Group{},
		Locations: map[string]Location{},
		Ties:      map[string]Tie{},
	}
}

// Normalize allocates any nil maps so callers can write into the record.
func (r *Record) Normalize() {
	if r.Entities == nil {
		r.Entities = map[string]Entity{}
	}
	if r.Groups == nil {
		r.Groups = map[string]Group{}
	}
	if r.Locations == nil {
		r.Locations = map[string]Location{}
	}
	if r.Ties == nil {
		r.Ties = map[string]Tie{}
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := NewRecord()
	for k, v := range r.Entities {
		out.Entities[k] = v
	}
	for k, v := range r.Groups {
		out.Groups[k] = v
	}
	for k, v := range r.Locations {
		out.Locations[k] = v
	}
	for k, v := range r.Ties {
		out.Ties[k] = v
	}
	out.LastEntityID = r.LastEntityID
	out.LastGroupID = r.LastGroupID
	out.LastTieID = r.LastTieID
	return out
}

// Len reports the number of rows of the given kind.
func (r Record) Len(kind Kind) int {
	switch kind {
	case KindEntity:
		return len(r.Entities)
	case KindGroup:
		return len(r.Groups)
	case KindLocation:
		return len(r.Locations)
	case KindTie:
		return len(r.Ties)
	}
	return 0
}

// LocationID is the conventional id of the location covering [start, end].
func LocationID(start, end int) string {
	return fmt.Sprintf("%d_%d", start, end)
}
