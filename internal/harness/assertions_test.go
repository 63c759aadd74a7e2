package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchFields(t *testing.T) {
	actual := map[string]any{
		"name":          "Apollo",
		"start":         20.0,
		"directed":      false,
		"source_entity": map[string]any{"entity_id": "5"},
	}

	tests := []struct {
		name     string
		expected map[string]any
		want     bool
	}{
		{"empty", nil, true},
		{"subset", map[string]any{"name": "Apollo"}, true},
		{"int vs float", map[string]any{"start": 20}, true},
		{"nested", map[string]any{"source_entity": map[string]any{"entity_id": "5"}}, true},
		{"nested extra key", map[string]any{"source_entity": map[string]any{"entity_id": "5", "location_id": "x"}}, false},
		{"wrong value", map[string]any{"directed": true}, false},
		{"number vs string", map[string]any{"start": "20"}, false},
		{"missing", map[string]any{"label": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchFields(actual, tt.expected))
		})
	}
}

func TestAssertionError(t *testing.T) {
	err := &AssertionError{Type: AssertEdgeCount, Expected: "3 edges", Actual: "2 edges"}
	assert.Equal(t, "Assertion failed: edge_count\n  Expected: 3 edges\n  Actual: 2 edges", err.Error())
}

func TestEvaluateAssertions_Edges(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/cascade_remove.yaml")
	if !assert.NoError(t, err) {
		return
	}
	result, err := Run(scenario)
	if !assert.NoError(t, err) {
		return
	}

	msgs := EvaluateAssertions(result, []Assertion{
		{Type: AssertEdgeCount, Count: 1},
		{Type: AssertEdge, Key: "2|false", Expect: map[string]any{"label": "wed to"}},
		{Type: AssertEdge, Key: "1|false"},
		{Type: AssertEdge, Key: "2|false", Expect: map[string]any{"weight": 3}},
	}, &AssertionContext{})
	assert.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "assertion 2")
	assert.Contains(t, msgs[1], "assertion 3")
}
