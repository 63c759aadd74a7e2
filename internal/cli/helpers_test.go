package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/store"
	"github.com/roach88/annotie/internal/testutil"
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// importSample creates a database holding SampleRecord as doc-1.
func importSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "annotie.db")
	path := writeFile(t, dir, "sample.json", testutil.SampleJSON)

	_, err := execute(t, NewImportCommand(&RootOptions{Format: "text"}), "--db", db, "--annotation", "doc-1", path)
	require.NoError(t, err)
	return db
}

// withStore opens db for inspection after a command has closed it.
func withStore(t *testing.T, db string, fn func(st *store.Store)) {
	t.Helper()
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	fn(st)
}

func loadStored(t *testing.T, db, id string) record.Record {
	t.Helper()
	var rec record.Record
	withStore(t, db, func(st *store.Store) {
		var err error
		rec, err = st.LoadAnnotation(context.Background(), id)
		require.NoError(t, err)
	})
	return rec
}

// sampleWithCounters is SampleRecord as import stores it.
func sampleWithCounters() record.Record {
	rec := testutil.SampleRecord()
	rec.LastEntityID = 4
	rec.LastGroupID = 3
	rec.LastTieID = 3
	return rec
}
