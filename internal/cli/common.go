package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/schema"
	"github.com/roach88/annotie/internal/store"
)

func addDatabaseFlag(cmd *cobra.Command, p *string) {
	cmd.Flags().StringVar(p, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
}

func addAnnotationFlag(cmd *cobra.Command, p *string, required bool) {
	cmd.Flags().StringVarP(p, "annotation", "a", "", "annotation id")
	if required {
		_ = cmd.MarkFlagRequired("annotation")
	}
}

// commandContext returns the command's context, which tests may set.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to read %s", path), err)
	}
	return data, nil
}

// decodeRecord schema-checks a record file. YAML is chosen by extension.
func decodeRecord(path string, data []byte) (record.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return schema.DecodeYAML(data)
	}
	return schema.Decode(data)
}

func loadAnnotation(ctx context.Context, st *store.Store, id string) (record.Record, error) {
	rec, err := st.LoadAnnotation(ctx, id)
	if errors.Is(err, store.ErrAnnotationNotFound) {
		return record.Record{}, NewExitError(ExitCommandError, fmt.Sprintf("annotation %q not found", id))
	}
	if err != nil {
		return record.Record{}, WrapExitError(ExitCommandError, "failed to load annotation", err)
	}
	return rec, nil
}

// reportRecordError outputs a rejected record and returns the exit error.
func reportRecordError(f *OutputFormatter, err error) error {
	var schemaErr *schema.Error
	switch {
	case errors.As(err, &schemaErr):
		problems := make([]string, len(schemaErr.Problems))
		for i, p := range schemaErr.Problems {
			problems[i] = p.String()
		}
		return f.Fail(ExitFailure, CodeSchema, "record does not match the annotation schema", problems)
	case annotation.IsMalformed(err):
		return f.Fail(ExitFailure, CodeMalformed, err.Error(), nil)
	}
	return WrapExitError(ExitFailure, "failed to decode record", err)
}

func recordCounts(rec record.Record) map[string]int {
	counts := make(map[string]int, len(record.Kinds))
	for _, kind := range record.Kinds {
		counts[string(kind)] = rec.Len(kind)
	}
	return counts
}
