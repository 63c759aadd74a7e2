package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/annotie/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database     string
	AnnotationID string
	Verify       bool
}

// HistoryEntry is one logged change-set.
type HistoryEntry struct {
	Pos     int64  `json:"pos"`
	ID      string `json:"id"`
	Session string `json:"session"`
	Seq     int64  `json:"seq"`
	Rows    int    `json:"rows"`
}

// HistoryResult is the change-set log of one annotation.
type HistoryResult struct {
	AnnotationID string         `json:"annotation_id"`
	Lineage      []string       `json:"lineage"`
	ChangeSets   []HistoryEntry `json:"changesets"`
	Verified     bool           `json:"verified,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List annotations or an annotation's change-sets",
		Long: `Without --annotation, list the stored annotations with their parent,
row count and change-set count.

With --annotation, list its change-set log in the order it was applied,
and its fork lineage. --verify replays the log and compares the result
with the stored rows.

Exit codes:
  0 - Success
  1 - Replay diverged from the stored rows (--verify)
  2 - Command error

Examples:
  annotie history --db ./annotie.db
  annotie history --db ./annotie.db --annotation iliad-1 --verify`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.AnnotationID == "" {
				return runListAnnotations(opts, cmd)
			}
			return runHistory(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	addAnnotationFlag(cmd, &opts.AnnotationID, false)
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "replay the log and compare with the stored rows")

	return cmd
}

func runListAnnotations(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListAnnotations(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list annotations", err)
	}
	if infos == nil {
		infos = []store.AnnotationInfo{}
	}
	return f.Result(infos, func(w io.Writer) {
		if len(infos) == 0 {
			fmt.Fprintln(w, "No annotations found in database.")
			return
		}
		for _, info := range infos {
			parent := ""
			if info.ParentID != "" {
				parent = " (fork of " + info.ParentID + ")"
			}
			fmt.Fprintf(w, "%s%s: %d rows, %d change-set(s)\n", info.ID, parent, info.Rows, info.ChangeSets)
		}
	})
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := loadAnnotation(ctx, st, opts.AnnotationID); err != nil {
		return err
	}
	log, err := st.ListChangeSets(ctx, opts.AnnotationID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read change-set log", err)
	}
	lineage, err := st.Lineage(ctx, opts.AnnotationID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read lineage", err)
	}

	result := HistoryResult{
		AnnotationID: opts.AnnotationID,
		Lineage:      lineage,
		ChangeSets:   make([]HistoryEntry, 0, len(log)),
	}
	for _, entry := range log {
		result.ChangeSets = append(result.ChangeSets, HistoryEntry{
			Pos:     entry.Pos,
			ID:      entry.ID,
			Session: entry.Session,
			Seq:     entry.Seq,
			Rows:    entry.ChangeSet.Len(),
		})
	}

	if opts.Verify {
		if err := st.VerifyReplay(ctx, opts.AnnotationID); err != nil {
			return f.Fail(ExitFailure, CodeReplay, err.Error(), result)
		}
		result.Verified = true
	}

	return f.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "Lineage: %s\n", strings.Join(lineage, " <- "))
		fmt.Fprintf(w, "%d change-set(s):\n", len(result.ChangeSets))
		for _, e := range result.ChangeSets {
			fmt.Fprintf(w, "  #%d  %s  session=%s seq=%d rows=%d\n", e.Pos, shortID(e.ID), e.Session, e.Seq, e.Rows)
		}
		if result.Verified {
			fmt.Fprintln(w, "✓ replay matches the stored rows")
		}
	})
}
