package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/annotie/internal/record"
)

func TestCreateAndLoadAnnotation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAnnotation(ctx, "doc-1", smallRecord()))

	got, err := s.LoadAnnotation(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, smallRecord(), got)

	err = s.CreateAnnotation(ctx, "doc-1", smallRecord())
	assert.ErrorIs(t, err, ErrAnnotationExists)

	_, err = s.LoadAnnotation(ctx, "nope")
	assert.ErrorIs(t, err, ErrAnnotationNotFound)

	log, err := s.ListChangeSets(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, ImportSession, log[0].Session)
	assert.Equal(t, int64(0), log[0].Seq)
	assert.Equal(t, 4, log[0].ChangeSet.Len())
}

func TestApplyChangeSet_MergesFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAnnotation(ctx, "doc-1", smallRecord()))

	var cs record.ChangeSet
	cs.Upsert(record.KindEntity, "1", record.Fields{"name": "Dias"})
	cs.Upsert(record.KindEntity, "2", record.Fields{"name": "Hera", "group_id": "2"})
	cs.Upsert(record.KindGroup, "2", record.Fields{"name": "Hera"})
	cs.Upsert(record.KindTie, "1", record.Fields{"weight": 2.5})
	cs.Delete(record.KindLocation, "0_0")
	cs.SetLastEntityID(2)
	cs.SetLastGroupID(2)

	applied, err := s.ApplyChangeSet(ctx, "doc-1", "", "s1", 1, cs)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := s.LoadAnnotation(ctx, "doc-1")
	require.NoError(t, err)

	want := smallRecord()
	require.NoError(t, record.Apply(&want, cs))
	assert.Equal(t, want, got)
	assert.Equal(t, "Dias", got.Entities["1"].Name)
	assert.Equal(t, "1", got.Entities["1"].GroupID, "unlisted field is kept")
	assert.Equal(t, "self", got.Ties["1"].Label)
	assert.Equal(t, 2.5, got.Ties["1"].Weight)
	assert.Equal(t, int64(1), got.LastTieID, "absent counter is kept")
}

func TestApplyChangeSet_RetryIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAnnotation(ctx, "doc-1", smallRecord()))

	var first record.ChangeSet
	first.Upsert(record.KindGroup, "1", record.Fields{"name": "Olympians"})
	id := record.MustChangeSetID("doc-1", "s1", 1, first)

	var second record.ChangeSet
	second.Upsert(record.KindGroup, "1", record.Fields{"name": "Gods"})

	applied, err := s.ApplyChangeSet(ctx, "doc-1", id, "s1", 1, first)
	require.NoError(t, err)
	assert.True(t, applied)
	_, err = s.ApplyChangeSet(ctx, "doc-1", "", "s1", 2, second)
	require.NoError(t, err)

	// A late retry of the first change-set must not undo the second.
	applied, err = s.ApplyChangeSet(ctx, "doc-1", id, "s1", 1, first)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.LoadAnnotation(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Gods", got.Groups["1"].Name)

	log, err := s.ListChangeSets(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, log, 3)
}

func TestApplyChangeSet_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAnnotation(ctx, "doc-1", smallRecord()))

	var cs record.ChangeSet
	cs.Upsert(record.KindGroup, "1", record.Fields{"name": "x"})
	_, err := s.ApplyChangeSet(ctx, "nope", "", "s1", 1, cs)
	assert.ErrorIs(t, err, ErrAnnotationNotFound)

	// A bad row rolls back the whole change-set, log entry included.
	var bad record.ChangeSet
	bad.Upsert(record.KindGroup, "1", record.Fields{"name": "fine"})
	bad.Upsert(record.KindLocation, "0_0", record.Fields{"start": "zero"})
	_, err = s.ApplyChangeSet(ctx, "doc-1", "", "s1", 1, bad)
	assert.ErrorIs(t, err, ErrInvalidRow)

	got, err := s.LoadAnnotation(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, smallRecord(), got)
	log, err := s.ListChangeSets(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestCrossSessionLastWriteWins(t *testing.T) {
	// Two sessions editing the same row are not reconciled: the change-set
	// applied last wins field by field. This is the persistence contract,
	// not something the store detects.
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAnnotation(ctx, "doc-1", smallRecord()))

	var fromA record.ChangeSet
	fromA.Upsert(record.KindTie, "1", record.Fields{"label": "parent of", "weight": 4})
	var fromB record.ChangeSet
	fromB.Upsert(record.KindTie, "1", record.Fields{"label": "child of"})

	_, err := s.ApplyChangeSet(ctx, "doc-1", "", "session-a", 1, fromA)
	require.NoError(t, err)
	_, err = s.ApplyChangeSet(ctx, "doc-1", "", "session-b", 1, fromB)
	require.NoError(t, err)

	got, err := s.LoadAnnotation(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "child of", got.Ties["1"].Label)
	assert.Equal(t, 4.0, got.Ties["1"].Weight, "session a's weight survives")
}

func TestReplay(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAnnotation(ctx, "doc-1", smallRecord()))

	for i, name := range []string{"a", "b", "c"} {
		var cs record.ChangeSet
		cs.Upsert(record.KindGroup, "1", record.Fields{"name": name})
		cs.Upsert(record.KindEntity, "1", record.Fields{"name": name})
		_, err := s.ApplyChangeSet(ctx, "doc-1", "", "s1", int64(i+1), cs)
		require.NoError(t, err)
	}

	replayed, err := s.Replay(ctx, "doc-1")
	require.NoError(t, err)
	stored, err := s.LoadAnnotation(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, stored, replayed)
	require.NoError(t, s.VerifyReplay(ctx, "doc-1"))

	// Writing around the log is detected.
	_, err = s.DB().Exec(`UPDATE annotation_rows SET fields = '{"name":"z"}' WHERE kind = 'groups'`)
	require.NoError(t, err)
	assert.Error(t, s.VerifyReplay(ctx, "doc-1"))
}

func TestFork(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAnnotation(ctx, "doc-1", smallRecord()))

	require.NoError(t, s.Fork(ctx, "doc-1", "doc-2"))
	require.NoError(t, s.Fork(ctx, "doc-2", "doc-3"))

	var cs record.ChangeSet
	cs.Upsert(record.KindGroup, "1", record.Fields{"name": "Dias"})
	_, err := s.ApplyChangeSet(ctx, "doc-2", "", "s1", 1, cs)
	require.NoError(t, err)

	parent, err := s.LoadAnnotation(ctx, "doc-1")
	require.NoError(t, err)
	child, err := s.LoadAnnotation(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, "Zeus", parent.Groups["1"].Name, "parent is unaffected by child edits")
	assert.Equal(t, "Dias", child.Groups["1"].Name)
	assert.Equal(t, parent.LastTieID, child.LastTieID)

	lineage, err := s.Lineage(ctx, "doc-3")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-3", "doc-2", "doc-1"}, lineage)

	require.NoError(t, s.VerifyReplay(ctx, "doc-2"))
	log, err := s.ListChangeSets(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, ForkSession, log[0].Session)

	assert.ErrorIs(t, s.Fork(ctx, "doc-1", "doc-2"), ErrAnnotationExists)
	assert.ErrorIs(t, s.Fork(ctx, "nope", "doc-9"), ErrAnnotationNotFound)

	infos, err := s.ListAnnotations(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, AnnotationInfo{ID: "doc-2", ParentID: "doc-1", Rows: 4, ChangeSets: 2}, infos[1])
}

func TestListAnnotations_BinaryIDOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "B", "a-2"} {
		require.NoError(t, s.CreateAnnotation(ctx, id, smallRecord()))
	}

	infos, err := s.ListAnnotations(ctx)
	require.NoError(t, err)
	var ids []string
	for _, info := range infos {
		ids = append(ids, info.ID)
	}
	assert.Equal(t, []string{"B", "a", "a-2", "b"}, ids)
}

func TestLoadAnnotation_ManyRowsPerKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := smallRecord()
	rec.Groups["10"] = record.Group{Name: "Hera"}
	rec.Groups["2"] = record.Group{Name: "Athena"}
	rec.Entities["10"] = record.Entity{Name: "Hera", GroupID: "10"}
	rec.Entities["2"] = record.Entity{Name: "Athena", GroupID: "2"}
	rec.LastEntityID, rec.LastGroupID = 10, 10
	require.NoError(t, s.CreateAnnotation(ctx, "doc-1", rec))

	got, err := s.LoadAnnotation(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestAppendChangeSet_AllocatesSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAnnotation(ctx, "doc-1", smallRecord()))

	last, err := s.LastSeq(ctx, "doc-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	// X, Y, X: the repeated payload is a new edit, not a retry.
	for i, name := range []string{"X", "Y", "X"} {
		var cs record.ChangeSet
		cs.Upsert(record.KindGroup, "1", record.Fields{"name": name})
		id, seq, err := s.AppendChangeSet(ctx, "doc-1", "s1", cs)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
		assert.Equal(t, record.MustChangeSetID("doc-1", "s1", seq, cs), id)
	}

	got, err := s.LoadAnnotation(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "X", got.Groups["1"].Name)

	last, err = s.LastSeq(ctx, "doc-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
	last, err = s.LastSeq(ctx, "doc-1", "other")
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	// Allocation continues after a sender-stamped entry.
	var stamped record.ChangeSet
	stamped.Upsert(record.KindGroup, "1", record.Fields{"name": "Z"})
	_, err = s.ApplyChangeSet(ctx, "doc-1", "", "s1", 7, stamped)
	require.NoError(t, err)
	_, seq, err := s.AppendChangeSet(ctx, "doc-1", "s1", stamped)
	require.NoError(t, err)
	assert.Equal(t, int64(8), seq)

	_, _, err = s.AppendChangeSet(ctx, "nope", "s1", stamped)
	assert.ErrorIs(t, err, ErrAnnotationNotFound)
	_, err = s.LastSeq(ctx, "nope", "s1")
	assert.ErrorIs(t, err, ErrAnnotationNotFound)
	require.NoError(t, s.VerifyReplay(ctx, "doc-1"))
}
