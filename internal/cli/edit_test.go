package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/schema"
	"github.com/roach88/annotie/internal/server"
	"github.com/roach88/annotie/internal/store"
	"github.com/roach88/annotie/internal/testutil"
)

const apolloScript = `steps:
  - op: add_entity
    name: Apollo
    start: 20
    end: 20
    as: apollo
  - op: group_entities
    ids: ["3", "$apollo"]
  - op: add_tie
    start: 0
    end: 20
    source: {entity_id: "$apollo"}
    target: {location_id: "0_0"}
    label: son of
    weight: 2
`

func TestEdit_Store(t *testing.T) {
	db := importSample(t)
	path := writeFile(t, t.TempDir(), "edit.yaml", apolloScript)

	out, err := execute(t, NewEditCommand(&RootOptions{Format: "text"}), "--db", db, "-a", "doc-1", "--session", "s1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "  add_entity -> 5 (seq 1)\n")
	assert.Contains(t, out, "  group_entities (seq 2)\n")
	assert.Contains(t, out, "  add_tie -> 4 (seq 3)\n")
	assert.Contains(t, out, "Edited doc-1 in session s1: 3 operation(s) delivered")

	rec := loadStored(t, db, "doc-1")
	assert.Equal(t, record.Entity{Name: "Apollo", GroupID: "2"}, rec.Entities["5"])
	assert.NotContains(t, rec.Groups, "4")
	assert.Equal(t, "son of", rec.Ties["4"].Label)

	withStore(t, db, func(st *store.Store) {
		log, err := st.ListChangeSets(context.Background(), "doc-1")
		require.NoError(t, err)
		require.Len(t, log, 4)
		for i, entry := range log[1:] {
			assert.Equal(t, "s1", entry.Session)
			assert.Equal(t, int64(i+1), entry.Seq)
		}
		require.NoError(t, st.VerifyReplay(context.Background(), "doc-1"))
	})
}

func TestEdit_RejectedStepKeepsEarlierEdits(t *testing.T) {
	db := importSample(t)
	path := writeFile(t, t.TempDir(), "edit.yaml", `steps:
  - op: rename_group
    id: "1"
    name: Dias
  - op: remove_mention
    id: "99_99"
  - op: rename_group
    id: "2"
    name: Minerva
`)

	out, err := execute(t, NewEditCommand(&RootOptions{Format: "json"}), "--db", db, "-a", "doc-1", "--session", "s1", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string     `json:"code"`
			Details EditResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, CodeStepFailed, resp.Error.Code)
	require.Len(t, resp.Error.Details.Steps, 2)
	assert.Equal(t, "NOT_FOUND", resp.Error.Details.Steps[1].Error)
	assert.Zero(t, resp.Error.Details.Pending)

	rec := loadStored(t, db, "doc-1")
	assert.Equal(t, "Dias", rec.Groups["1"].Name)
	assert.Equal(t, "Athena", rec.Groups["2"].Name)
}

func TestEdit_Endpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := importSample(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	validator, err := schema.New()
	require.NoError(t, err)
	srv := httptest.NewServer(server.NewRouter(server.NewHandlers(st, validator)))
	t.Cleanup(srv.Close)

	path := writeFile(t, t.TempDir(), "edit.yaml", apolloScript)
	out, err := execute(t, NewEditCommand(&RootOptions{Format: "json"}),
		"--endpoint", srv.URL, "-a", "doc-1", "--session", "s1", path)
	require.NoError(t, err)

	var resp struct {
		Data EditResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "s1", resp.Data.Session)
	assert.Len(t, resp.Data.Steps, 3)

	rec, err := st.LoadAnnotation(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Apollo", rec.Entities["5"].Name)
	assert.Equal(t, int64(5), rec.LastEntityID)
	require.NoError(t, st.VerifyReplay(context.Background(), "doc-1"))
}

func TestEdit_Undelivered(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(testutil.SampleJSON))
			return
		}
		posts.Add(1)
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	path := writeFile(t, t.TempDir(), "edit.yaml", `steps:
  - op: rename_group
    id: "1"
    name: Dias
`)
	out, err := execute(t, NewEditCommand(&RootOptions{Format: "json"}),
		"--endpoint", srv.URL, "-a", "doc-1", "--retries", "1", "--retry-delay", "0", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, int32(2), posts.Load(), "one attempt plus one retry")

	var resp struct {
		Error struct {
			Code    string     `json:"code"`
			Details EditResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, CodeUndelivered, resp.Error.Code)
	assert.Equal(t, 1, resp.Error.Details.Pending)
	assert.NotEmpty(t, resp.Error.Details.Session, "a session id is generated")
}

func TestEdit_InvalidScript(t *testing.T) {
	db := importSample(t)
	dir := t.TempDir()

	for name, body := range map[string]string{
		"unknown op":    "steps:\n  - op: teleport\n",
		"no steps":      "steps: []\n",
		"unknown field": "steps:\n  - op: rename_group\n    colour: red\n",
	} {
		path := writeFile(t, dir, "edit.yaml", body)
		_, err := execute(t, NewEditCommand(&RootOptions{Format: "text"}), "--db", db, "-a", "doc-1", path)
		require.Error(t, err, name)
		assert.Equal(t, ExitCommandError, GetExitCode(err), name)
	}
}

func TestEdit_NeedsTarget(t *testing.T) {
	path := writeFile(t, t.TempDir(), "edit.yaml", apolloScript)

	_, err := execute(t, NewEditCommand(&RootOptions{Format: "text"}), "-a", "doc-1", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEdit_ReusedSessionContinuesSeq(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	rename := func(name string) string {
		return writeFile(t, dir, "rename-"+name+".yaml", "steps:\n  - op: rename_group\n    id: \"1\"\n    name: "+name+"\n")
	}

	for _, mode := range []string{"db", "endpoint"} {
		t.Run(mode, func(t *testing.T) {
			db := importSample(t)
			target := []string{"--db", db}
			if mode == "endpoint" {
				st, err := store.Open(db)
				require.NoError(t, err)
				t.Cleanup(func() { st.Close() })
				validator, err := schema.New()
				require.NoError(t, err)
				srv := httptest.NewServer(server.NewRouter(server.NewHandlers(st, validator)))
				t.Cleanup(srv.Close)
				target = []string{"--endpoint", srv.URL}
			}

			// alice's third run sends the same payload as her first; it
			// must still undo bob's rename.
			for _, run := range []struct{ session, name string }{
				{"alice", "X"}, {"bob", "Y"}, {"alice", "X"},
			} {
				args := append(append([]string{}, target...), "-a", "doc-1", "--session", run.session, rename(run.name))
				_, err := execute(t, NewEditCommand(&RootOptions{Format: "text"}), args...)
				require.NoError(t, err)
			}

			assert.Equal(t, "X", loadStored(t, db, "doc-1").Groups["1"].Name)
			withStore(t, db, func(st *store.Store) {
				last, err := st.LastSeq(context.Background(), "doc-1", "alice")
				require.NoError(t, err)
				assert.Equal(t, int64(2), last)
			})
		})
	}
}
