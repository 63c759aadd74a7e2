package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/graph"
	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/store"
	"github.com/roach88/annotie/internal/syncer"
	"github.com/roach88/annotie/internal/testutil"
)

// Harness holds the state of one scenario run.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	local    *annotation.Store
	editor   *annotation.Editor
	syncer   *syncer.Syncer
	vars     map[string]string
}

// Run executes a scenario and returns the result.
//
// An error is returned only when the scenario cannot run at all (bad
// record, store failure). Steps and assertions that do not hold are
// reported in Result.Errors.
//
// Execution flow:
// 1. Load the record and store it in a fresh in-memory database
// 2. Apply each step locally, check invariants, queue its change-set
// 3. Drain the syncer and compare the persisted record with the local one
// 4. Project the graph and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	rec, err := scenario.loadRecord()
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	local, err := annotation.Initialize(rec)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	annotationID := scenario.annotationID()
	if err := st.CreateAnnotation(ctx, annotationID, local.Snapshot()); err != nil {
		return nil, err
	}

	h := &Harness{
		scenario: scenario,
		store:    st,
		local:    local,
		editor:   annotation.NewEditor(local),
		syncer: syncer.New(syncer.StoreTransport{Store: st}, annotationID,
			syncer.WithSessionGenerator(testutil.NewFixedSessionGenerator(scenario.Session))),
		vars: map[string]string{},
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(i, step, result)
	}

	h.syncer.Close()
	if err := h.syncer.Run(ctx); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	if err := h.checkPersisted(ctx); err != nil {
		result.AddError(err.Error())
	}

	result.Final = local.Snapshot()
	opts, err := scenario.Graph.Options()
	if err != nil {
		return nil, err
	}
	if result.Graph, err = graph.Project(local, opts); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, AnnotationID: annotationID, Local: local, Vars: h.vars}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeStep(i int, step Step, result *Result) {
	before := h.local.Snapshot()
	id, cs, err := ApplyStep(h.editor, step, h.vars)

	sr := StepResult{Op: step.Op, ID: id}
	switch {
	case err != nil:
		code := string(annotation.CodeOf(err))
		sr.Error = code
		if code == "" {
			sr.Error = err.Error()
		}
		if step.ExpectError == "" {
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, err))
		} else if code != step.ExpectError {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %v", i, step.Op, step.ExpectError, err))
		}
		// A rejected operation leaves nothing behind.
		if !recordsEqual(before, h.local.Snapshot()) {
			result.AddError(fmt.Sprintf("steps[%d] %s: failed operation changed the annotation", i, step.Op))
		}
	case step.ExpectError != "":
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got success", i, step.Op, step.ExpectError))
		fallthrough
	default:
		if step.As != "" {
			h.vars[step.As] = id
		}
		data, merr := record.MarshalCanonical(cs)
		if merr != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Op, merr))
		}
		sr.ChangeSet = data
		if _, _, serr := h.syncer.Submit(cs); serr != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: submit: %v", i, step.Op, serr))
		}
	}

	if err := h.local.Check(); err != nil {
		result.AddError(fmt.Sprintf("steps[%d] %s: invariant violated: %v", i, step.Op, err))
	}
	slog.Debug("scenario step", "scenario", h.scenario.Name, "step", i, "op", step.Op, "error", sr.Error)
	result.Steps = append(result.Steps, sr)
}

// checkPersisted compares the store with the local annotation and replays
// the change-set log.
func (h *Harness) checkPersisted(ctx context.Context) error {
	persisted, err := h.store.LoadAnnotation(ctx, h.scenario.annotationID())
	if err != nil {
		return err
	}
	if !recordsEqual(persisted, h.local.Snapshot()) {
		a, _ := record.MarshalCanonical(persisted)
		b, _ := record.MarshalCanonical(h.local.Snapshot())
		return fmt.Errorf("persisted record diverged from local:\n  persisted: %s\n  local:     %s", a, b)
	}
	return h.store.VerifyReplay(ctx, h.scenario.annotationID())
}

func recordsEqual(a, b record.Record) bool {
	x, err1 := record.MarshalCanonical(a)
	y, err2 := record.MarshalCanonical(b)
	return err1 == nil && err2 == nil && string(x) == string(y)
}
