package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/store"
)

// DefaultApplySession stamps change-sets applied from the command line.
const DefaultApplySession = "cli"

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database     string
	AnnotationID string
	Session      string
	Seq          int64
}

// ApplyResult is the outcome of applying one change-set.
type ApplyResult struct {
	AnnotationID string `json:"annotation_id"`
	ID           string `json:"id"`
	Session      string `json:"session"`
	Seq          int64  `json:"seq"`
	// Applied is false when the change-set was already in the log.
	Applied bool `json:"applied"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <changeset.json>",
		Short: "Apply a change-set to a stored annotation",
		Long: `Merge one change-set into a stored annotation.

The file holds either a bare change-set or a {"_method":"PATCH","data":...}
envelope as the synchronizer sends it. The change-set is rejected if the
merged record would not load. Applying the same change-set with the same
session and seq again is a no-op. Without --seq the next seq of the session
is used.

Exit codes:
  0 - Change-set applied (or already applied)
  1 - Change-set rejected
  2 - Command error

Examples:
  annotie apply --db ./annotie.db --annotation iliad-1 rename.json
  annotie apply --db ./annotie.db --annotation iliad-1 --session s1 --seq 4 rename.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	addAnnotationFlag(cmd, &opts.AnnotationID, true)
	cmd.Flags().StringVar(&opts.Session, "session", DefaultApplySession, "session id stamped on the change-set")
	cmd.Flags().Int64Var(&opts.Seq, "seq", 0, "sequence number within the session (default next)")

	return cmd
}

func runApply(opts *ApplyOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	cs, err := decodeChangeSet(data)
	if err != nil {
		return f.Fail(ExitFailure, CodeInvalidChange, err.Error(), nil)
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := loadAnnotation(ctx, st, opts.AnnotationID)
	if err != nil {
		return err
	}
	merged := rec.Clone()
	if err := record.Apply(&merged, cs); err != nil {
		return f.Fail(ExitFailure, CodeInvalidChange, err.Error(), nil)
	}
	if _, err := annotation.Initialize(merged); err != nil {
		return f.Fail(ExitFailure, CodeInvalidChange, "change-set leaves the annotation inconsistent: "+err.Error(), nil)
	}

	seq := opts.Seq
	if seq == 0 {
		if seq, err = nextSeq(ctx, st, opts.AnnotationID, opts.Session); err != nil {
			return WrapExitError(ExitCommandError, "failed to read change-set log", err)
		}
	}
	id, err := record.ChangeSetID(opts.AnnotationID, opts.Session, seq, cs)
	if err != nil {
		return f.Fail(ExitFailure, CodeInvalidChange, err.Error(), nil)
	}
	applied, err := st.ApplyChangeSet(ctx, opts.AnnotationID, id, opts.Session, seq, cs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to apply change-set", err)
	}

	result := ApplyResult{AnnotationID: opts.AnnotationID, ID: id, Session: opts.Session, Seq: seq, Applied: applied}
	return f.Result(result, func(w io.Writer) {
		if applied {
			fmt.Fprintf(w, "Applied change-set %s to %s (session %s, seq %d)\n", shortID(id), opts.AnnotationID, opts.Session, seq)
		} else {
			fmt.Fprintf(w, "Change-set %s was already applied to %s\n", shortID(id), opts.AnnotationID)
		}
	})
}

// decodeChangeSet accepts a bare change-set or a PATCH envelope.
func decodeChangeSet(data []byte) (record.ChangeSet, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return record.ChangeSet{}, fmt.Errorf("decode change-set: %w", err)
	}
	if _, ok := top["_method"]; ok {
		var env record.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return record.ChangeSet{}, fmt.Errorf("decode envelope: %w", err)
		}
		return env.ChangeSet()
	}
	var cs record.ChangeSet
	if err := json.Unmarshal(data, &cs); err != nil {
		return record.ChangeSet{}, fmt.Errorf("decode change-set: %w", err)
	}
	return cs, nil
}

func nextSeq(ctx context.Context, st *store.Store, annotationID, session string) (int64, error) {
	last, err := st.LastSeq(ctx, annotationID, session)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
