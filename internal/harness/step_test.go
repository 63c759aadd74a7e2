package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/testutil"
)

func newEditor(t *testing.T) *annotation.Editor {
	t.Helper()
	s, err := annotation.Initialize(testutil.SampleRecord())
	require.NoError(t, err)
	return annotation.NewEditor(s)
}

func TestApplyStep_AddEntity(t *testing.T) {
	ed := newEditor(t)

	id, cs, err := ApplyStep(ed, Step{Op: OpAddEntity, Name: strp("Ares"), Group: strp("1")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "5", id)
	assert.Nil(t, cs.Groups, "joining an existing group creates none")

	e, ok := ed.Store().Entity(id)
	require.True(t, ok)
	assert.Equal(t, "1", e.GroupID)
	assert.Empty(t, e.Locations)
}

func TestApplyStep_ResolvesVariables(t *testing.T) {
	ed := newEditor(t)
	vars := map[string]string{"ares": "5", "loc": "30_31"}

	_, _, err := ApplyStep(ed, Step{Op: OpAddEntity, Name: strp("Ares"), Start: intp(30), End: intp(31)}, vars)
	require.NoError(t, err)

	id, _, err := ApplyStep(ed, Step{
		Op:     OpAddTie,
		Start:  intp(30),
		End:    intp(31),
		Source: &Endpoint{LocationID: "$loc"},
		Target: &Endpoint{EntityID: "1"},
	}, vars)
	require.NoError(t, err)

	tie, ok := ed.Store().Tie(id)
	require.True(t, ok)
	assert.Equal(t, record.ByLocation("30_31"), tie.Source)
	assert.Equal(t, record.DefaultTieWeight, tie.Weight)

	_, _, err = ApplyStep(ed, Step{Op: OpUpdateEntity, ID: "$ares", Name: strp("Mars")}, vars)
	require.NoError(t, err)
	e, _ := ed.Store().Entity("5")
	assert.Equal(t, "Mars", e.Name)
}

func TestApplyStep_Errors(t *testing.T) {
	tests := []struct {
		name string
		step Step
		is   error
		code annotation.ErrorCode
	}{
		{
			name: "unbound variable",
			step: Step{Op: OpRemoveEntities, IDs: []string{"1", "$ghost"}},
			is:   ErrUnboundVariable,
		},
		{
			name: "mention without span",
			step: Step{Op: OpAddMention, Entity: strp("1"), Start: intp(1)},
		},
		{
			name: "tie without target",
			step: Step{Op: OpAddTie, Start: intp(0), End: intp(1), Source: &Endpoint{EntityID: "1"}},
		},
		{
			name: "endpoint naming both",
			step: Step{Op: OpUpdateTie, ID: "1", Source: &Endpoint{EntityID: "1", LocationID: "0_0"}},
		},
		{
			name: "empty endpoint",
			step: Step{Op: OpUpdateTie, ID: "1", Target: &Endpoint{}},
			code: annotation.ErrCodeUnresolvable,
		},
		{
			name: "unknown group",
			step: Step{Op: OpMoveEntities, IDs: []string{"1"}, Group: strp("77")},
			code: annotation.ErrCodeNotFound,
		},
		{
			name: "unknown op",
			step: Step{Op: "teleport"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ed := newEditor(t)
			before := ed.Store().Snapshot()

			_, _, err := ApplyStep(ed, tt.step, map[string]string{})
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.code != "" {
				assert.Equal(t, tt.code, annotation.CodeOf(err))
			}
			assert.Equal(t, before, ed.Store().Snapshot())
		})
	}
}

func TestOps_AllKnown(t *testing.T) {
	ops := Ops()
	assert.Len(t, ops, len(knownOps))
	for _, op := range ops {
		assert.True(t, knownOps[op], op)
	}
}
