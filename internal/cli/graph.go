package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/graph"
	"github.com/roach88/annotie/internal/record"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Database     string
	AnnotationID string
	Key          string
	Merge        string
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph [file]",
		Short: "Project an annotation into a group graph",
		Long: `Project an annotation into a graph whose nodes are alias groups and
whose edges are ties.

Edges are keyed by --key, a comma-separated list of id, source, target,
label and weight; the directed flag is always part of the key. Ties that
share a key are combined with --merge: last, sum, min or max. With first
or no --merge the first edge is kept and the collision is reported as an
inconsistency.

Examples:
  annotie graph iliad.json
  annotie graph --db ./annotie.db --annotation iliad-1 --key source,target --merge sum
  annotie graph --db ./annotie.db --annotation iliad-1 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	addAnnotationFlag(cmd, &opts.AnnotationID, false)
	cmd.Flags().StringVar(&opts.Key, "key", "", "edge key fields (default id)")
	cmd.Flags().StringVar(&opts.Merge, "merge", "", "merge method for colliding edges (first|last|sum|min|max)")

	return cmd
}

func runGraph(opts *GraphOptions, args []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	keys, err := graph.ParseKeyFields(opts.Key)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --key", err)
	}
	merge, err := graph.ParseMergeMethod(opts.Merge)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --merge", err)
	}

	var rec record.Record
	switch {
	case len(args) == 1:
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		if rec, err = decodeRecord(args[0], data); err != nil {
			return reportRecordError(f, err)
		}
	case opts.Database != "" && opts.AnnotationID != "":
		st, err := openStore(opts.Database)
		if err != nil {
			return err
		}
		defer st.Close()
		if rec, err = loadAnnotation(ctx, st, opts.AnnotationID); err != nil {
			return err
		}
	default:
		return NewExitError(ExitCommandError, "either a file or --db and --annotation are required")
	}

	local, err := annotation.Initialize(rec)
	if err != nil {
		return reportRecordError(f, err)
	}
	g, err := graph.Project(local, graph.Options{KeyFields: keys, Merge: merge})
	if err != nil {
		return WrapExitError(ExitFailure, "projection failed", err)
	}

	return f.Result(g, func(w io.Writer) { writeGraphText(w, g) })
}

func writeGraphText(w io.Writer, g graph.Graph) {
	nodeIDs := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	record.SortIDs(nodeIDs)

	fmt.Fprintf(w, "Nodes (%d):\n", len(nodeIDs))
	for _, id := range nodeIDs {
		fmt.Fprintf(w, "  %s  %s\n", id, g.Nodes[id].Label)
	}

	keys := make([]string, 0, len(g.Edges))
	for k := range g.Edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "Edges (%d):\n", len(keys))
	for _, k := range keys {
		e := g.Edges[k]
		arrow := "--"
		if e.IsDirected {
			arrow = "->"
		}
		fmt.Fprintf(w, "  %s %s %s  %q weight=%g (tie %s)\n",
			g.Nodes[e.Source].Label, arrow, g.Nodes[e.Target].Label, e.Label, e.Weight, e.ID)
	}
	for _, msg := range g.Inconsistencies {
		fmt.Fprintf(w, "! %s\n", msg)
	}
}
