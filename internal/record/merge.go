package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MergeFields merges a partial update into a stored row and returns the
// merged row in canonical JSON. existing may be nil when the row does not
// exist yet. The result must decode as a row of the given kind, so a type
// mismatch (for example a string start offset) is rejected here rather than
// stored.
//
// Merging is field-level last-write-wins: fields present in the update
// replace stored fields wholesale, absent fields are kept.
func MergeFields(kind Kind, existing []byte, fields Fields) ([]byte, error) {
	row := map[string]any{}
	if len(existing) > 0 {
		dec := json.NewDecoder(bytes.NewReader(existing))
		dec.UseNumber()
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("merge %s: decode stored row: %w", kind, err)
		}
		if row == nil {
			row = map[string]any{}
		}
	}
	for k, v := range fields {
		row[k] = v
	}
	merged, err := MarshalCanonical(row)
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", kind, err)
	}
	if err := checkRow(kind, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func checkRow(kind Kind, data []byte) error {
	var err error
	switch kind {
	case KindEntity:
		err = json.Unmarshal(data, new(Entity))
	case KindGroup:
		err = json.Unmarshal(data, new(Group))
	case KindLocation:
		err = json.Unmarshal(data, new(Location))
	case KindTie:
		err = json.Unmarshal(data, new(Tie))
	default:
		err = fmt.Errorf("unknown kind")
	}
	if err != nil {
		return fmt.Errorf("merge %s: invalid row: %w", kind, err)
	}
	return nil
}

// Apply merges a change-set into a flat record using the persistence rules:
// DELETE removes the key, an upsert is merged field by field into the stored
// row (creating it if absent), and counters are overwritten when present.
//
// Apply is all-or-nothing: every row is merged before any is written back.
// Applying the same change-set twice leaves the record as applying it once.
func Apply(rec *Record, cs ChangeSet) error {
	rec.Normalize()

	type pending struct {
		kind   Kind
		id     string
		delete bool
		row    []byte
	}
	var writes []pending
	for _, kind := range Kinds {
		for _, id := range SortIDs(keysOf(cs.Entries(kind))) {
			entry := cs.Entries(kind)[id]
			if entry.IsDelete() {
				writes = append(writes, pending{kind: kind, id: id, delete: true})
				continue
			}
			existing, err := rowJSON(rec, kind, id)
			if err != nil {
				return err
			}
			merged, err := MergeFields(kind, existing, entry.Fields())
			if err != nil {
				return fmt.Errorf("apply %s[%s]: %w", kind, id, err)
			}
			writes = append(writes, pending{kind: kind, id: id, row: merged})
		}
	}

	for _, w := range writes {
		if w.delete {
			deleteRow(rec, w.kind, w.id)
			continue
		}
		if err := rec.SetRow(w.kind, w.id, w.row); err != nil {
			return err
		}
	}
	if cs.LastEntityID != nil {
		rec.LastEntityID = *cs.LastEntityID
	}
	if cs.LastGroupID != nil {
		rec.LastGroupID = *cs.LastGroupID
	}
	if cs.LastTieID != nil {
		rec.LastTieID = *cs.LastTieID
	}
	return nil
}

func rowJSON(rec *Record, kind Kind, id string) ([]byte, error) {
	var (
		v  any
		ok bool
	)
	switch kind {
	case KindEntity:
		v, ok = rec.Entities[id]
	case KindGroup:
		v, ok = rec.Groups[id]
	case KindLocation:
		v, ok = rec.Locations[id]
	case KindTie:
		v, ok = rec.Ties[id]
	}
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

// SetRow decodes a stored row of the given kind into the record.
func (r *Record) SetRow(kind Kind, id string, data []byte) error {
	r.Normalize()
	var err error
	switch kind {
	case KindEntity:
		var row Entity
		if err = json.Unmarshal(data, &row); err == nil {
			r.Entities[id] = row
		}
	case KindGroup:
		var row Group
		if err = json.Unmarshal(data, &row); err == nil {
			r.Groups[id] = row
		}
	case KindLocation:
		var row Location
		if err = json.Unmarshal(data, &row); err == nil {
			r.Locations[id] = row
		}
	case KindTie:
		var row Tie
		if err = json.Unmarshal(data, &row); err == nil {
			r.Ties[id] = row
		}
	default:
		err = fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("%s[%s]: %w", kind, id, err)
	}
	return nil
}

// RowJSON returns the canonical JSON of one row, or nil if it is absent.
func (r Record) RowJSON(kind Kind, id string) ([]byte, error) {
	data, err := rowJSON(&r, kind, id)
	if err != nil || data == nil {
		return nil, err
	}
	return MarshalCanonical(json.RawMessage(data))
}

// IDs returns the row ids of one kind in CompareIDs order.
func (r Record) IDs(kind Kind) []string {
	var ids []string
	switch kind {
	case KindEntity:
		ids = keysOf(r.Entities)
	case KindGroup:
		ids = keysOf(r.Groups)
	case KindLocation:
		ids = keysOf(r.Locations)
	case KindTie:
		ids = keysOf(r.Ties)
	}
	return SortIDs(ids)
}

// FromRecord returns the change-set that creates every row and counter of
// rec on an empty record.
func FromRecord(rec Record) (ChangeSet, error) {
	var cs ChangeSet
	for _, kind := range Kinds {
		for _, id := range rec.IDs(kind) {
			data, err := rowJSON(&rec, kind, id)
			if err != nil {
				return ChangeSet{}, err
			}
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			var fields Fields
			if err := dec.Decode(&fields); err != nil {
				return ChangeSet{}, fmt.Errorf("%s[%s]: %w", kind, id, err)
			}
			cs.Upsert(kind, id, fields)
		}
	}
	if rec.LastEntityID > 0 {
		cs.SetLastEntityID(rec.LastEntityID)
	}
	if rec.LastGroupID > 0 {
		cs.SetLastGroupID(rec.LastGroupID)
	}
	if rec.LastTieID > 0 {
		cs.SetLastTieID(rec.LastTieID)
	}
	return cs, nil
}

func deleteRow(rec *Record, kind Kind, id string) {
	switch kind {
	case KindEntity:
		delete(rec.Entities, id)
	case KindGroup:
		delete(rec.Groups, id)
	case KindLocation:
		delete(rec.Locations, id)
	case KindTie:
		delete(rec.Ties, id)
	}
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
