package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeSetID(t *testing.T) {
	var cs ChangeSet
	cs.Upsert(KindEntity, "1", Fields{"name": "Zeus", "group_id": "1"})

	id, err := ChangeSetID("doc-1", "s1", 1, cs)
	require.NoError(t, err)
	assert.Len(t, id, 64)
	assert.Equal(t, id, MustChangeSetID("doc-1", "s1", 1, cs), "deterministic")

	var same ChangeSet
	same.Upsert(KindEntity, "1", Fields{"group_id": "1"})
	same.Upsert(KindEntity, "1", Fields{"name": "Zeus"})
	assert.Equal(t, id, MustChangeSetID("doc-1", "s1", 1, same), "field order does not matter")

	assert.NotEqual(t, id, MustChangeSetID("doc-1", "s1", 2, cs))
	assert.NotEqual(t, id, MustChangeSetID("doc-1", "s2", 1, cs))
	assert.NotEqual(t, id, MustChangeSetID("doc-2", "s1", 1, cs))

	var bad ChangeSet
	bad.Upsert(KindTie, "1", Fields{"label": nil})
	_, err = ChangeSetID("doc-1", "s1", 1, bad)
	assert.Error(t, err)
	assert.Panics(t, func() { MustChangeSetID("doc-1", "s1", 1, bad) })
}
