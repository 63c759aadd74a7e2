package harness

import (
	"encoding/json"

	"github.com/roach88/annotie/internal/graph"
	"github.com/roach88/annotie/internal/record"
)

// StepResult records what one step did.
type StepResult struct {
	Op string `json:"op"`
	// ID is the id created by the step, if any.
	ID string `json:"id,omitempty"`
	// Error is the annotation error code of a failed step.
	Error string `json:"error,omitempty"`
	// ChangeSet is the canonical change-set of a successful step.
	ChangeSet json.RawMessage `json:"changeset,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	Steps []StepResult `json:"steps"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the local record after the last step.
	Final record.Record `json:"final"`

	// Graph is the projection of Final with the scenario's options.
	Graph graph.Graph `json:"graph"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
