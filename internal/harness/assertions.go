package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides what assertions read besides the result.
type AssertionContext struct {
	Ctx          context.Context
	Store        *store.Store
	AnnotationID string
	Local        *annotation.Store
	Vars         map[string]string
}

func (a *AssertionContext) resolve(id string) string {
	if name, ok := strings.CutPrefix(id, "$"); ok {
		return a.Vars[name]
	}
	return id
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertCount:
			err = assertCount(result.Final, assertion)
		case AssertExists, AssertAbsent:
			err = assertPresence(result.Final, assertion, actx)
		case AssertRow:
			err = assertRow(actx, assertion)
		case AssertGroupMembers:
			err = assertGroupMembers(actx, assertion)
		case AssertTiesOf:
			err = assertTiesOf(actx, assertion)
		case AssertEdgeCount:
			err = assertEdgeCount(result, assertion)
		case AssertEdge:
			err = assertEdge(result, assertion)
		default:
			err = fmt.Errorf("unknown assertion type: %s", assertion.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func assertCount(final record.Record, a Assertion) error {
	kind := record.Kind(a.Kind)
	if got := final.Len(kind); got != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d %s", a.Count, kind),
			Actual:   fmt.Sprintf("%d %s %v", got, kind, final.IDs(kind)),
		}
	}
	return nil
}

func assertPresence(final record.Record, a Assertion, actx *AssertionContext) error {
	kind := record.Kind(a.Kind)
	id := actx.resolve(a.ID)
	present := slices.Contains(final.IDs(kind), id)
	want := a.Type == AssertExists
	if present != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s[%s] present=%t", kind, id, want),
			Actual:   fmt.Sprintf("present=%t", present),
		}
	}
	return nil
}

// assertRow checks the persisted row, so it also covers what the syncer
// delivered.
func assertRow(actx *AssertionContext, a Assertion) error {
	kind := record.Kind(a.Kind)
	id := actx.resolve(a.ID)
	rec, err := actx.Store.LoadAnnotation(actx.Ctx, actx.AnnotationID)
	if err != nil {
		return err
	}
	data, err := rec.RowJSON(kind, id)
	if err != nil {
		return err
	}
	if data == nil {
		return &AssertionError{
			Type:     AssertRow,
			Expected: fmt.Sprintf("persisted %s[%s]", kind, id),
			Actual:   "row not found",
		}
	}
	var row map[string]any
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	if !matchFields(row, a.Expect) {
		return &AssertionError{
			Type:     AssertRow,
			Expected: fmt.Sprintf("%s[%s] with %v", kind, id, a.Expect),
			Actual:   string(data),
		}
	}
	return nil
}

func assertGroupMembers(actx *AssertionContext, a Assertion) error {
	id := actx.resolve(a.ID)
	g, ok := actx.Local.Group(id)
	if !ok {
		return &AssertionError{Type: AssertGroupMembers, Expected: "group " + id, Actual: "group not found"}
	}
	want := record.SortIDs(resolveAll(actx, a.IDs))
	if !slices.Equal(g.Entities, want) {
		return &AssertionError{
			Type:     AssertGroupMembers,
			Expected: fmt.Sprintf("group %s = %v", id, want),
			Actual:   fmt.Sprintf("%v", g.Entities),
		}
	}
	return nil
}

func assertTiesOf(actx *AssertionContext, a Assertion) error {
	id := actx.resolve(a.ID)
	var got []string
	_ = actx.Local.View(func(v annotation.View) error {
		got = v.TiesOf(id)
		return nil
	})
	want := record.SortIDs(resolveAll(actx, a.IDs))
	if len(got) == 0 && len(want) == 0 {
		return nil
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertTiesOf,
			Expected: fmt.Sprintf("ties of entity %s = %v", id, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertEdgeCount(result *Result, a Assertion) error {
	if got := len(result.Graph.Edges); got != a.Count {
		return &AssertionError{
			Type:     AssertEdgeCount,
			Expected: fmt.Sprintf("%d edges", a.Count),
			Actual:   fmt.Sprintf("%d edges", got),
		}
	}
	return nil
}

func assertEdge(result *Result, a Assertion) error {
	edge, ok := result.Graph.Edges[a.Key]
	if !ok {
		keys := make([]string, 0, len(result.Graph.Edges))
		for k := range result.Graph.Edges {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return &AssertionError{
			Type:     AssertEdge,
			Expected: "edge " + a.Key,
			Actual:   fmt.Sprintf("edges %v", keys),
		}
	}
	data, err := json.Marshal(edge)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if !matchFields(fields, a.Expect) {
		return &AssertionError{
			Type:     AssertEdge,
			Expected: fmt.Sprintf("edge %s with %v", a.Key, a.Expect),
			Actual:   string(data),
		}
	}
	return nil
}

func resolveAll(actx *AssertionContext, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = actx.resolve(id)
	}
	return out
}

// matchFields reports whether actual contains every expected field.
// Extra fields in actual are allowed (subset match).
func matchFields(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares a JSON-decoded value with a YAML-decoded one.
// Numbers compare by value since YAML yields ints where JSON yields floats.
func valuesEqual(actual, expected any) bool {
	if a, ok := toFloat(actual); ok {
		if e, ok := toFloat(expected); ok {
			return a == e
		}
		return false
	}
	if am, ok := actual.(map[string]any); ok {
		em, ok := expected.(map[string]any)
		return ok && len(am) == len(em) && matchFields(am, em)
	}
	return reflect.DeepEqual(actual, expected)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
