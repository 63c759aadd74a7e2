package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const iliad = "testdata/records/iliad.yaml"

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"regroup_apollo", "cascade_remove"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestScenario_InlineRecord(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/inline_record.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Steps, 5)
	assert.Equal(t, "3_4", result.Steps[0].ID)
	assert.Equal(t, "CONFLICT", result.Steps[1].Error)
	assert.Nil(t, result.Steps[1].ChangeSet)
	assert.Equal(t, "1", result.Final.Entities["2"].GroupID)
	assert.Equal(t, int64(1), result.Final.LastTieID)
}

func TestRun_UnexpectedError(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "unexpected",
		RecordFile: iliad,
		Steps:      []Step{{Op: OpRenameGroup, ID: "9", Name: strp("x")}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, "NOT_FOUND", result.Steps[0].Error)
}

func TestRun_ExpectedErrorButSucceeded(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "succeeds",
		RecordFile: iliad,
		Steps:      []Step{{Op: OpRenameGroup, ID: "1", Name: strp("Dias"), ExpectError: "NOT_FOUND"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "expected NOT_FOUND, got success")
	// The edit still happened and still reached the store.
	assert.Equal(t, "Dias", result.Final.Groups["1"].Name)
}

func TestRun_WrongErrorCode(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "wrong-code",
		RecordFile: iliad,
		Steps: []Step{{
			Op: OpAddMention, Entity: strp("1"), Start: intp(7), End: intp(3),
			ExpectError: "NOT_FOUND",
		}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "INVALID_SPAN", result.Steps[0].Error)
}

func TestRun_UnboundVariableFailsStep(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "unbound",
		RecordFile: iliad,
		Steps:      []Step{{Op: OpRemoveEntities, IDs: []string{"$nobody"}}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Steps[0].Error, "unbound variable")
}

func TestRun_FailedAssertion(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "bad-count",
		RecordFile: iliad,
		Steps:      []Step{{Op: OpRemoveTie, ID: "3"}},
		Assertions: []Assertion{
			{Type: AssertCount, Kind: "ties", Count: 3},
			{Type: AssertAbsent, Kind: "ties", ID: "3"},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertion 0")
}

func TestRun_BadRecord(t *testing.T) {
	_, err := Run(&Scenario{Name: "missing", RecordFile: "testdata/records/nope.yaml"})
	assert.Error(t, err)
}

func strp(s string) *string { return &s }

func intp(n int) *int { return &n }
