package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DeleteMarker is the wire form of a deletion entry.
const DeleteMarker = "DELETE"

// Fields is a partial row: only the listed fields are written when the entry
// is merged into a stored row.
type Fields map[string]any

// ChangeEntry is either Upsert(fields) or Delete.
type ChangeEntry struct {
	deleted bool
	fields  Fields
}

// Upsert returns an entry that merges fields into the stored row, creating
// the row if it does not exist.
func Upsert(fields Fields) ChangeEntry {
	cp := make(Fields, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return ChangeEntry{fields: cp}
}

// Delete returns the deletion entry.
func Delete() ChangeEntry {
	return ChangeEntry{deleted: true}
}

// IsDelete reports whether the entry removes the row.
func (c ChangeEntry) IsDelete() bool { return c.deleted }

// Fields returns the partial row of an upsert entry, nil for a deletion.
func (c ChangeEntry) Fields() Fields {
	if c.deleted {
		return nil
	}
	return c.fields
}

// MarshalJSON writes "DELETE" or the field object.
func (c ChangeEntry) MarshalJSON() ([]byte, error) {
	if c.deleted {
		return json.Marshal(DeleteMarker)
	}
	if c.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(c.fields))
}

// UnmarshalJSON reads "DELETE" or a field object. Numbers are kept as
// json.Number so integer offsets survive the round trip exactly.
func (c *ChangeEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != DeleteMarker {
			return fmt.Errorf("change entry: unexpected string %q", s)
		}
		*c = Delete()
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("change entry: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("change entry: null is not an entry")
	}
	*c = ChangeEntry{fields: fields}
	return nil
}

// ChangeSet is the diff produced by one mutation. Each map is keyed by row
// id; the counters are set only when the mutation allocated an id.
type ChangeSet struct {
	Entities     map[string]ChangeEntry `json:"entities,omitempty"`
	Groups       map[string]ChangeEntry `json:"groups,omitempty"`
	Locations    map[string]ChangeEntry `json:"locations,omitempty"`
	Ties         map[string]ChangeEntry `json:"ties,omitempty"`
	LastEntityID *int64                 `json:"last_entity_id,omitempty"`
	LastGroupID  *int64                 `json:"last_group_id,omitempty"`
	LastTieID    *int64                 `json:"last_tie_id,omitempty"`
}

func (cs *ChangeSet) entries(kind Kind) *map[string]ChangeEntry {
	switch kind {
	case KindEntity:
		return &cs.Entities
	case KindGroup:
		return &cs.Groups
	case KindLocation:
		return &cs.Locations
	case KindTie:
		return &cs.Ties
	}
	panic(fmt.Sprintf("record: unknown kind %q", kind))
}

// Entries returns the entries of one kind. The map may be nil.
func (cs ChangeSet) Entries(kind Kind) map[string]ChangeEntry {
	return *cs.entries(kind)
}

// Upsert records a field update for a row. Fields accumulate across calls
// for the same row; an upsert after a delete replaces the delete.
func (cs *ChangeSet) Upsert(kind Kind, id string, fields Fields) {
	m := cs.entries(kind)
	if *m == nil {
		*m = map[string]ChangeEntry{}
	}
	prev, ok := (*m)[id]
	if !ok || prev.deleted {
		(*m)[id] = Upsert(fields)
		return
	}
	for k, v := range fields {
		prev.fields[k] = v
	}
}

// Delete records a row deletion, discarding any earlier update of the row.
func (cs *ChangeSet) Delete(kind Kind, id string) {
	m := cs.entries(kind)
	if *m == nil {
		*m = map[string]ChangeEntry{}
	}
	(*m)[id] = Delete()
}

// SetLastEntityID records the entity counter.
func (cs *ChangeSet) SetLastEntityID(n int64) { cs.LastEntityID = &n }

// SetLastGroupID records the group counter.
func (cs *ChangeSet) SetLastGroupID(n int64) { cs.LastGroupID = &n }

// SetLastTieID records the tie counter.
func (cs *ChangeSet) SetLastTieID(n int64) { cs.LastTieID = &n }

// IsEmpty reports whether applying the change-set would change nothing.
func (cs ChangeSet) IsEmpty() bool {
	return len(cs.Entities) == 0 && len(cs.Groups) == 0 &&
		len(cs.Locations) == 0 && len(cs.Ties) == 0 &&
		cs.LastEntityID == nil && cs.LastGroupID == nil && cs.LastTieID == nil
}

// Len counts row entries across all kinds.
func (cs ChangeSet) Len() int {
	return len(cs.Entities) + len(cs.Groups) + len(cs.Locations) + len(cs.Ties)
}

// Envelope is the body sent to the persistence endpoint: the change-set is
// JSON-encoded into a string and tunnelled through a POST as a PATCH.
type Envelope struct {
	Method string `json:"_method"`
	Data   string `json:"data"`
}

// MethodPatch is the only method an envelope may carry.
const MethodPatch = "PATCH"

// Headers carrying the delivery stamp next to an envelope body.
const (
	HeaderSession   = "X-Annotie-Session"
	HeaderSeq       = "X-Annotie-Seq"
	HeaderChangeSet = "X-Annotie-Changeset"
)

// NewEnvelope encodes cs in canonical form.
func NewEnvelope(cs ChangeSet) (Envelope, error) {
	data, err := MarshalCanonical(cs)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: %w", err)
	}
	return Envelope{Method: MethodPatch, Data: string(data)}, nil
}

// ChangeSet decodes the envelope payload.
func (e Envelope) ChangeSet() (ChangeSet, error) {
	if e.Method != MethodPatch {
		return ChangeSet{}, fmt.Errorf("envelope: unsupported method %q", e.Method)
	}
	var cs ChangeSet
	if err := json.Unmarshal([]byte(e.Data), &cs); err != nil {
		return ChangeSet{}, fmt.Errorf("envelope: decode data: %w", err)
	}
	return cs, nil
}
