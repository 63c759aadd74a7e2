package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/annotie/internal/record"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database     string
	AnnotationID string
	Output       string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an annotation record",
		Long: `Write the stored record of an annotation as canonical JSON.

The output can be imported again unchanged. With --format json the record
is wrapped in the standard response envelope.

Examples:
  annotie export --db ./annotie.db --annotation iliad-1
  annotie export --db ./annotie.db --annotation iliad-1 -o iliad.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	addAnnotationFlag(cmd, &opts.AnnotationID, true)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := loadAnnotation(ctx, st, opts.AnnotationID)
	if err != nil {
		return err
	}

	if opts.Output == "" && opts.Format == "json" {
		return f.Success(rec)
	}

	data, err := record.MarshalCanonical(rec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode record", err)
	}
	if opts.Output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return f.Success(fmt.Sprintf("Exported %s to %s", opts.AnnotationID, opts.Output))
}
