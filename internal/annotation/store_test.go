package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/testutil"
)

func createSampleStore(t *testing.T) *Store {
	t.Helper()
	s, err := Initialize(testutil.SampleRecord())
	require.NoError(t, err)
	return s
}

func TestInitialize_LinksDerivedIndexes(t *testing.T) {
	s := createSampleStore(t)
	require.NoError(t, s.Check())

	g, ok := s.Group("1")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, g.Entities)

	zeus, ok := s.Entity("1")
	require.True(t, ok)
	assert.Equal(t, []string{"0_0"}, zeus.Locations)
	assert.Empty(t, zeus.Ties, "tie 1 reaches Zeus only through location 0_0")

	hera, _ := s.Entity("4")
	assert.Equal(t, []string{"2", "3"}, hera.Ties)

	loc, ok := s.Location("5_5")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "3"}, loc.Ties)

	err := s.View(func(v View) error {
		assert.Equal(t, []string{"1", "3"}, v.TiesOf("3"))
		assert.Equal(t, []string{"2"}, v.TiesOf("2"))
		assert.Nil(t, v.TiesOf("99"))
		return nil
	})
	require.NoError(t, err)
}

func TestInitialize_DerivesMissingCounters(t *testing.T) {
	s := createSampleStore(t)
	e, g, tie := s.Counters()
	assert.Equal(t, int64(4), e)
	assert.Equal(t, int64(3), g)
	assert.Equal(t, int64(3), tie)

	rec := testutil.SampleRecord()
	rec.LastEntityID = 40
	s, err := Initialize(rec)
	require.NoError(t, err)
	e, _, _ = s.Counters()
	assert.Equal(t, int64(40), e, "a stored counter above the largest id is kept")
}

func TestInitialize_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *record.Record)
		code   ErrorCode
	}{
		{
			name:   "dangling group_id",
			mutate: func(r *record.Record) { r.Entities["9"] = record.Entity{Name: "Ares", GroupID: "77"} },
		},
		{
			name:   "dangling location entity_id",
			mutate: func(r *record.Record) { r.Locations["30_30"] = record.Location{Start: 30, End: 30, EntityID: "77"} },
		},
		{
			name: "dangling endpoint location",
			mutate: func(r *record.Record) {
				tie := r.Ties["1"]
				tie.SourceEntity = record.ByLocation("77_77")
				r.Ties["1"] = tie
			},
			code: ErrCodeUnresolvable,
		},
		{
			name: "endpoint with neither key",
			mutate: func(r *record.Record) {
				tie := r.Ties["2"]
				tie.TargetEntity = record.Endpoint{}
				r.Ties["2"] = tie
			},
			code: ErrCodeUnresolvable,
		},
		{
			name:   "empty group",
			mutate: func(r *record.Record) { r.Groups["8"] = record.Group{Name: "Nobody"} },
		},
		{
			name:   "reversed span",
			mutate: func(r *record.Record) { r.Locations["7_6"] = record.Location{Start: 7, End: 6, EntityID: "1"} },
			code:   ErrCodeInvalidSpan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.SampleRecord()
			tt.mutate(&rec)

			s, err := Initialize(rec)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, IsMalformed(err), "got %v", err)
			assert.Equal(t, ErrCodeMalformed, CodeOf(err))
			if tt.code != "" {
				assert.ErrorIs(t, err, &Error{Code: tt.code})
			}
		})
	}
}

func TestResolveEndpoint(t *testing.T) {
	s := createSampleStore(t)

	id, err := s.ResolveEndpoint(record.ByLocation("9_10"))
	require.NoError(t, err)
	assert.Equal(t, "4", id)

	id, err = s.ResolveEndpoint(record.ByEntity("2"))
	require.NoError(t, err)
	assert.Equal(t, "2", id)

	for _, ep := range []record.Endpoint{{}, record.ByLocation("1_1"), record.ByEntity("99"), record.ByEntity("")} {
		_, err := s.ResolveEndpoint(ep)
		assert.True(t, IsUnresolvable(err), "endpoint %v: got %v", ep, err)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s := createSampleStore(t)
	snap := s.Snapshot()

	want := testutil.SampleRecord()
	want.LastEntityID, want.LastGroupID, want.LastTieID = 4, 3, 3
	assert.Equal(t, want, snap)

	again, err := Initialize(snap)
	require.NoError(t, err)
	assert.Equal(t, snap, again.Snapshot())
	assert.Equal(t, s.Entities(), again.Entities())
	assert.Equal(t, s.Locations(), again.Locations())
	assert.Equal(t, s.Groups(), again.Groups())
	assert.Equal(t, s.Ties(), again.Ties())
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := createSampleStore(t)
	snap := s.Snapshot()
	snap.Entities["1"] = record.Entity{Name: "changed", GroupID: "1"}

	e, _ := s.Entity("1")
	assert.Equal(t, "Zeus", e.Name)
}

func TestError_Matching(t *testing.T) {
	err := notFound("ties", "7")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidSpan)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, `NOT_FOUND: no such tie (ties "7")`, err.Error())

	wrapped := malformed("ties", "7", "source_entity does not resolve", &Error{Code: ErrCodeUnresolvable})
	assert.True(t, IsMalformed(wrapped))
	assert.True(t, IsUnresolvable(wrapped))
	assert.Equal(t, ErrCodeMalformed, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(assert.AnError))
}
