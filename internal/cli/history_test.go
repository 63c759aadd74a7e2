package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/annotie/internal/store"
)

func TestHistory_ListAnnotations(t *testing.T) {
	db := importSample(t)
	_, err := execute(t, NewForkCommand(&RootOptions{Format: "text"}), "--db", db, "doc-1", "doc-2")
	require.NoError(t, err)

	out, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "doc-1: 14 rows, 1 change-set(s)\ndoc-2 (fork of doc-1): 14 rows, 1 change-set(s)\n", out)
}

func TestHistory_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	out, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No annotations found in database.\n", out)

	out, err = execute(t, NewHistoryCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":[]}`, out)
}

func TestHistory_Log(t *testing.T) {
	db := importSample(t)
	path := writeFile(t, t.TempDir(), "rename.json", `{"groups":{"1":{"name":"Dias"}}}`)
	_, err := execute(t, NewApplyCommand(&RootOptions{Format: "text"}), "--db", db, "-a", "doc-1", "--session", "s1", path)
	require.NoError(t, err)

	out, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db, "-a", "doc-1", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Lineage: doc-1\n")
	assert.Contains(t, out, "2 change-set(s):")
	assert.Contains(t, out, "session=import seq=0 rows=14")
	assert.Contains(t, out, "session=s1 seq=1 rows=1")
	assert.Contains(t, out, "✓ replay matches the stored rows")
}

func TestHistory_LogJSON(t *testing.T) {
	db := importSample(t)
	_, err := execute(t, NewForkCommand(&RootOptions{Format: "text"}), "--db", db, "doc-1", "doc-2")
	require.NoError(t, err)

	out, err := execute(t, NewHistoryCommand(&RootOptions{Format: "json"}), "--db", db, "-a", "doc-2")
	require.NoError(t, err)

	var resp struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"doc-2", "doc-1"}, resp.Data.Lineage)
	require.Len(t, resp.Data.ChangeSets, 1)
	assert.Equal(t, store.ForkSession, resp.Data.ChangeSets[0].Session)
	assert.False(t, resp.Data.Verified)
}

func TestHistory_VerifyFails(t *testing.T) {
	db := importSample(t)
	withStore(t, db, func(st *store.Store) {
		_, err := st.DB().ExecContext(context.Background(),
			`DELETE FROM annotation_rows WHERE kind = 'ties' AND row_id = '3'`)
		require.NoError(t, err)
	})

	out, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db, "-a", "doc-1", "--verify")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, CodeReplay)
}

func TestHistory_UnknownAnnotation(t *testing.T) {
	db := importSample(t)

	_, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db, "-a", "doc-9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
