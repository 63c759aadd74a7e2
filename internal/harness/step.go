package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/record"
)

// Step is one Editor operation. Which fields apply depends on Op.
//
// String ids may reference an earlier step's result as $name.
type Step struct {
	Op string `yaml:"op"`

	ID     string   `yaml:"id,omitempty"`
	IDs    []string `yaml:"ids,omitempty"`
	Name   *string  `yaml:"name,omitempty"`
	Group  *string  `yaml:"group,omitempty"`
	Entity *string  `yaml:"entity,omitempty"`

	Start *int `yaml:"start,omitempty"`
	End   *int `yaml:"end,omitempty"`

	Source   *Endpoint `yaml:"source,omitempty"`
	Target   *Endpoint `yaml:"target,omitempty"`
	Label    *string   `yaml:"label,omitempty"`
	Weight   *float64  `yaml:"weight,omitempty"`
	Directed *bool     `yaml:"directed,omitempty"`

	// As binds the id returned by add_entity, add_mention, create_group
	// or add_tie.
	As string `yaml:"as,omitempty"`

	// ExpectError is the annotation error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Endpoint is the YAML form of a tie endpoint.
type Endpoint struct {
	LocationID string `yaml:"location_id,omitempty"`
	EntityID   string `yaml:"entity_id,omitempty"`
}

// Editor operations.
const (
	OpAddEntity      = "add_entity"
	OpRemoveEntities = "remove_entities"
	OpUpdateEntity   = "update_entity"
	OpGroupEntities  = "group_entities"
	OpMoveEntities   = "move_entities"
	OpCreateGroup    = "create_group"
	OpRenameGroup    = "rename_group"
	OpAddMention     = "add_mention"
	OpRemoveMention  = "remove_mention"
	OpUpdateMention  = "update_mention"
	OpAddTie         = "add_tie"
	OpUpdateTie      = "update_tie"
	OpRemoveTie      = "remove_tie"
	OpRemoveTies     = "remove_ties"
)

var knownOps = map[string]bool{
	OpAddEntity: true, OpRemoveEntities: true, OpUpdateEntity: true,
	OpGroupEntities: true, OpMoveEntities: true, OpCreateGroup: true,
	OpRenameGroup: true, OpAddMention: true, OpRemoveMention: true,
	OpUpdateMention: true, OpAddTie: true, OpUpdateTie: true,
	OpRemoveTie: true, OpRemoveTies: true,
}

// Ops lists the supported operations in a stable order.
func Ops() []string {
	return []string{
		OpAddEntity, OpRemoveEntities, OpUpdateEntity, OpGroupEntities,
		OpMoveEntities, OpCreateGroup, OpRenameGroup, OpAddMention,
		OpRemoveMention, OpUpdateMention, OpAddTie, OpUpdateTie,
		OpRemoveTie, OpRemoveTies,
	}
}

// ErrUnboundVariable is returned for a $name no earlier step bound.
var ErrUnboundVariable = errors.New("unbound variable")

// ApplyStep runs one step on ed. vars maps bound names to ids; it is read,
// never written. It returns the new id for operations that create a row.
func ApplyStep(ed *annotation.Editor, step Step, vars map[string]string) (string, record.ChangeSet, error) {
	r := resolver{vars: vars}
	id := r.id(step.ID)
	ids := r.ids(step.IDs)
	group := r.ptr(step.Group)
	entity := r.ptr(step.Entity)
	source := r.endpoint(step.Source)
	target := r.endpoint(step.Target)
	if r.err != nil {
		return "", record.ChangeSet{}, fmt.Errorf("%s: %w", step.Op, r.err)
	}

	var (
		newID string
		cs    record.ChangeSet
		err   error
	)
	switch step.Op {
	case OpAddEntity:
		span, serr := optionalSpan(step)
		if serr != nil {
			return "", cs, serr
		}
		newID, cs, err = ed.AddEntity(deref(step.Name), span, deref(group))
	case OpRemoveEntities:
		cs, err = ed.RemoveEntities(ids)
	case OpUpdateEntity:
		cs, err = ed.UpdateEntity(id, annotation.EntityUpdate{Name: step.Name, GroupID: group})
	case OpGroupEntities:
		cs, err = ed.GroupEntities(ids)
	case OpMoveEntities:
		cs, err = ed.MoveEntitiesToGroup(ids, deref(group))
	case OpCreateGroup:
		newID, cs, err = ed.CreateGroup(deref(step.Name), ids)
	case OpRenameGroup:
		cs, err = ed.RenameGroup(id, deref(step.Name))
	case OpAddMention:
		span, serr := requiredSpan(step)
		if serr != nil {
			return "", cs, serr
		}
		newID, cs, err = ed.AddMention(deref(entity), span)
	case OpRemoveMention:
		cs, err = ed.RemoveMention(id)
	case OpUpdateMention:
		cs, err = ed.UpdateMention(id, annotation.MentionUpdate{EntityID: entity})
	case OpAddTie:
		span, serr := requiredSpan(step)
		if serr != nil {
			return "", cs, serr
		}
		if source == nil || target == nil {
			return "", cs, fmt.Errorf("%s: source and target are required", step.Op)
		}
		newID, cs, err = ed.AddTie(annotation.TieInput{
			Start:    span.Start,
			End:      span.End,
			Source:   *source,
			Target:   *target,
			Label:    deref(step.Label),
			Weight:   step.Weight,
			Directed: deref(step.Directed),
		})
	case OpUpdateTie:
		cs, err = ed.UpdateTie(id, annotation.TieUpdate{
			Start:    step.Start,
			End:      step.End,
			Source:   source,
			Target:   target,
			Label:    step.Label,
			Weight:   step.Weight,
			Directed: step.Directed,
		})
	case OpRemoveTie:
		cs, err = ed.RemoveTie(id)
	case OpRemoveTies:
		cs, err = ed.RemoveTies(ids)
	default:
		return "", cs, fmt.Errorf("unknown op %q", step.Op)
	}
	return newID, cs, err
}

func optionalSpan(step Step) (*annotation.Span, error) {
	if step.Start == nil && step.End == nil {
		return nil, nil
	}
	span, err := requiredSpan(step)
	if err != nil {
		return nil, err
	}
	return &span, nil
}

func requiredSpan(step Step) (annotation.Span, error) {
	if step.Start == nil || step.End == nil {
		return annotation.Span{}, fmt.Errorf("%s: start and end are required", step.Op)
	}
	return annotation.Span{Start: *step.Start, End: *step.End}, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// resolver substitutes $name references, remembering the first failure.
type resolver struct {
	vars map[string]string
	err  error
}

func (r *resolver) id(s string) string {
	name, ok := strings.CutPrefix(s, "$")
	if !ok {
		return s
	}
	v, bound := r.vars[name]
	if !bound && r.err == nil {
		r.err = fmt.Errorf("%w: %s", ErrUnboundVariable, s)
	}
	return v
}

func (r *resolver) ids(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = r.id(s)
	}
	return out
}

func (r *resolver) ptr(p *string) *string {
	if p == nil {
		return nil
	}
	v := r.id(*p)
	return &v
}

func (r *resolver) endpoint(ep *Endpoint) *record.Endpoint {
	if ep == nil {
		return nil
	}
	var out record.Endpoint
	switch {
	case ep.LocationID != "" && ep.EntityID != "":
		if r.err == nil {
			r.err = errors.New("endpoint names both location_id and entity_id")
		}
	case ep.LocationID != "":
		out = record.ByLocation(r.id(ep.LocationID))
	case ep.EntityID != "":
		out = record.ByEntity(r.id(ep.EntityID))
	}
	// An empty endpoint is passed through and rejected by the Editor.
	return &out
}
