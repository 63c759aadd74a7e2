package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/annotie/internal/graph"
	"github.com/roach88/annotie/internal/testutil"
)

func TestGraph_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sample.json", testutil.SampleJSON)

	out, err := execute(t, NewGraphCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)

	want := `Nodes (3):
  1  Zeus
  2  Athena
  3  Hera
Edges (3):
  Athena -- Zeus  "father of" weight=2 (tie 1)
  Hera -- Zeus  "married to" weight=3 (tie 2)
  Athena -> Hera  "fears" weight=1 (tie 3)
`
	assert.Equal(t, want, out)
}

func TestGraph_StoredJSON(t *testing.T) {
	db := importSample(t)

	out, err := execute(t, NewGraphCommand(&RootOptions{Format: "json"}), "--db", db, "-a", "doc-1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   graph.Graph `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Nodes, 3)
	require.Contains(t, resp.Data.Edges, "1|false")
	assert.Equal(t, "2", resp.Data.Edges["1|false"].Source)
	assert.Equal(t, "1", resp.Data.Edges["1|false"].Target)
	assert.True(t, resp.Data.Edges["3|true"].IsDirected)
}

func TestGraph_KeyAndMerge(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sample.json", testutil.SampleJSON)

	out, err := execute(t, NewGraphCommand(&RootOptions{Format: "json"}), "--key", "source,target", "--merge", "sum", path)
	require.NoError(t, err)

	var resp struct {
		Data graph.Graph `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp.Data.Edges, "2|1|false")
	assert.Contains(t, resp.Data.Edges, "3|1|false")
	assert.Contains(t, resp.Data.Edges, "2|3|true")
}

func TestGraph_BadFlags(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sample.json", testutil.SampleJSON)

	for _, args := range [][]string{
		{"--merge", "average", path},
		{"--key", "colour", path},
		{},
	} {
		_, err := execute(t, NewGraphCommand(&RootOptions{Format: "text"}), args...)
		require.Error(t, err, "args %v", args)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	}
}
