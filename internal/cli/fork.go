package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/annotie/internal/store"
)

// ForkOptions holds flags for the fork command.
type ForkOptions struct {
	*RootOptions
	Database string
}

// ForkResult is the outcome of a fork.
type ForkResult struct {
	ParentID string   `json:"parent_id"`
	ChildID  string   `json:"child_id"`
	Lineage  []string `json:"lineage"`
}

// NewForkCommand creates the fork command.
func NewForkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fork <parent> <child>",
		Short: "Copy an annotation into a new one",
		Long: `Copy the stored rows and counters of an annotation into a new
annotation that remembers its parent. Later edits to either side do not
affect the other.

Examples:
  annotie fork --db ./annotie.db iliad-1 iliad-1-draft`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFork(opts, args[0], args[1], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)

	return cmd
}

func runFork(opts *ForkOptions, parentID, childID string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	switch err := st.Fork(ctx, parentID, childID); {
	case errors.Is(err, store.ErrAnnotationNotFound):
		return f.Fail(ExitCommandError, CodeNotFound, fmt.Sprintf("annotation %q not found", parentID), nil)
	case errors.Is(err, store.ErrAnnotationExists):
		return f.Fail(ExitCommandError, CodeExists, fmt.Sprintf("annotation %q already exists", childID), nil)
	case err != nil:
		return WrapExitError(ExitCommandError, "fork failed", err)
	}

	lineage, err := st.Lineage(ctx, childID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read lineage", err)
	}
	result := ForkResult{ParentID: parentID, ChildID: childID, Lineage: lineage}
	return f.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "Forked %s into %s\n", parentID, childID)
	})
}
