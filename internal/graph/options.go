package graph

import (
	"fmt"
	"strings"
)

// KeyField is one component of an edge key.
type KeyField string

const (
	FieldID     KeyField = "id"
	FieldSource KeyField = "source"
	FieldTarget KeyField = "target"
	FieldLabel  KeyField = "label"
	FieldWeight KeyField = "weight"
)

// DefaultKeyFields keys edges by tie id, so nothing is merged.
var DefaultKeyFields = []KeyField{FieldID}

// MergeMethod decides what happens when two ties produce the same edge key.
type MergeMethod string

const (
	// MergeNone expects no collisions. A collision keeps the first edge and
	// is reported as an inconsistency.
	MergeNone MergeMethod = ""
	// MergeFirst keeps the first edge and, like MergeNone, reports the
	// collision.
	MergeFirst MergeMethod = "first"
	// MergeLast keeps the last edge.
	MergeLast MergeMethod = "last"
	// MergeSum adds weights and keeps the first edge's id and label.
	MergeSum MergeMethod = "sum"
	// MergeMin keeps the edge with the strictly smallest weight.
	MergeMin MergeMethod = "min"
	// MergeMax keeps the edge with the strictly largest weight.
	MergeMax MergeMethod = "max"
)

// Options configures a projection. The directed flag is always appended to
// the key fields.
type Options struct {
	KeyFields []KeyField
	Merge     MergeMethod
}

func (o Options) keyFields() []KeyField {
	if len(o.KeyFields) == 0 {
		return DefaultKeyFields
	}
	return o.KeyFields
}

func (o Options) validate() error {
	for _, f := range o.KeyFields {
		switch f {
		case FieldID, FieldSource, FieldTarget, FieldLabel, FieldWeight:
		default:
			return fmt.Errorf("unknown key field %q", f)
		}
	}
	_, err := ParseMergeMethod(string(o.Merge))
	return err
}

// ParseKeyFields parses a comma-separated key field list such as
// "source,target". An empty string yields nil (the default key).
func ParseKeyFields(s string) ([]KeyField, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []KeyField
	for _, part := range strings.Split(s, ",") {
		f := KeyField(strings.TrimSpace(part))
		switch f {
		case FieldID, FieldSource, FieldTarget, FieldLabel, FieldWeight:
			out = append(out, f)
		default:
			return nil, fmt.Errorf("unknown key field %q (want id, source, target, label or weight)", part)
		}
	}
	return out, nil
}

// ParseMergeMethod parses a merge method name. "none" and "" both mean
// MergeNone.
func ParseMergeMethod(s string) (MergeMethod, error) {
	switch m := MergeMethod(strings.TrimSpace(s)); m {
	case MergeNone, MergeFirst, MergeLast, MergeSum, MergeMin, MergeMax:
		return m, nil
	case "none":
		return MergeNone, nil
	}
	return "", fmt.Errorf("unknown merge method %q (want first, last, sum, min or max)", s)
}
