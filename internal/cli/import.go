package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database     string
	AnnotationID string
}

// ImportResult is the outcome of an import.
type ImportResult struct {
	AnnotationID string         `json:"annotation_id"`
	Rows         map[string]int `json:"rows"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import an annotation record",
		Long: `Import a flat annotation record into the database.

The record is checked against the annotation schema, then loaded to verify
that every reference resolves. JSON is expected unless the file ends in
.yaml or .yml; "-" reads JSON from stdin. Without --annotation a UUIDv7
id is generated.

Exit codes:
  0 - Record imported
  1 - Record rejected (schema violation or dangling reference)
  2 - Command error (unreadable file, id already taken, etc.)

Examples:
  annotie import --db ./annotie.db iliad.json
  annotie import --db ./annotie.db --annotation iliad-1 iliad.yaml
  cat iliad.json | annotie import --db ./annotie.db -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	addAnnotationFlag(cmd, &opts.AnnotationID, false)

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	rec, err := decodeRecord(path, data)
	if err != nil {
		return reportRecordError(f, err)
	}
	local, err := annotation.Initialize(rec)
	if err != nil {
		return reportRecordError(f, err)
	}

	id := opts.AnnotationID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	// The snapshot carries the counters Initialize derived from the ids.
	snapshot := local.Snapshot()
	if err := st.CreateAnnotation(ctx, id, snapshot); err != nil {
		if errors.Is(err, store.ErrAnnotationExists) {
			return f.Fail(ExitCommandError, CodeExists, fmt.Sprintf("annotation %q already exists", id), nil)
		}
		return WrapExitError(ExitCommandError, "failed to store annotation", err)
	}

	f.VerboseLog("imported %s from %s", id, path)
	result := ImportResult{AnnotationID: id, Rows: recordCounts(snapshot)}
	return f.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "Imported annotation %s (%d entities, %d groups, %d locations, %d ties)\n",
			id, result.Rows["entities"], result.Rows["groups"], result.Rows["locations"], result.Rows["ties"])
	})
}
