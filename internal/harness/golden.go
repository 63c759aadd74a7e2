package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/annotie/internal/record"
)

// Snapshot is the golden form of a run: the steps with their change-sets
// and the final projected graph.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Session  string       `json:"session,omitempty"`
	Steps    []StepResult `json:"steps"`
	Graph    any          `json:"graph"`
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, scenario.Session, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name, session string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, session, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// MarshalSnapshot returns the canonical JSON compared against golden files.
func MarshalSnapshot(name, session string, result *Result) ([]byte, error) {
	return record.MarshalCanonical(Snapshot{
		Scenario: name,
		Session:  session,
		Steps:    result.Steps,
		Graph:    result.Graph,
	})
}
