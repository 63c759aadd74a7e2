package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/harness"
	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/syncer"
)

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Database     string
	Endpoint     string
	AnnotationID string
	Session      string
	Timeout      time.Duration
	Retries      int
	RetryDelay   time.Duration
}

// EditScript is a list of editor operations, in the step format of
// harness scenarios.
type EditScript struct {
	Steps []harness.Step `yaml:"steps"`
}

// EditStep reports one applied operation.
type EditStep struct {
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
	Error string `json:"error,omitempty"`
}

// EditResult is the outcome of an editing session.
type EditResult struct {
	AnnotationID string     `json:"annotation_id"`
	Session      string     `json:"session"`
	Steps        []EditStep `json:"steps"`
	// Pending counts change-sets that were not delivered.
	Pending int `json:"pending"`
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <script.yaml>",
		Short: "Run an editing session against an annotation",
		Long: `Apply a script of editor operations to an annotation and synchronize
the resulting change-sets in order.

The annotation is loaded from --db, or fetched from a running server with
--endpoint. Each operation is applied locally first; its change-set is
then delivered, one at a time, stamped with the session id and the next
sequence number. Reusing a --session continues after the last sequence
number that session logged. A failed delivery is retried up to --retries times
before the session gives up. Processing stops at the first operation the
editor rejects.

Script format:
  steps:
    - op: add_entity
      name: Apollo
      as: apollo
    - op: group_entities
      ids: ["3", $apollo]

Exit codes:
  0 - Every operation applied and delivered
  1 - An operation was rejected or change-sets were left undelivered
  2 - Command error

Examples:
  annotie edit --db ./annotie.db --annotation iliad-1 regroup.yaml
  annotie edit --endpoint http://localhost:8080 --annotation iliad-1 regroup.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "base URL of a running annotie server")
	addAnnotationFlag(cmd, &opts.AnnotationID, true)
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (default: generated UUIDv7)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", syncer.DefaultTimeout, "timeout of one delivery")
	cmd.Flags().IntVar(&opts.Retries, "retries", 3, "retries per undelivered change-set")
	cmd.Flags().DurationVar(&opts.RetryDelay, "retry-delay", 500*time.Millisecond, "delay before the first retry, doubled on each attempt")
	cmd.MarkFlagsMutuallyExclusive("db", "endpoint")

	return cmd
}

func loadEditScript(cmd *cobra.Command, path string) (*EditScript, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var script EditScript
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&script); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to parse script", err)
	}
	var errs []error
	for i, step := range script.Steps {
		if !slices.Contains(harness.Ops(), step.Op) {
			errs = append(errs, fmt.Errorf("steps[%d]: unknown op %q", i, step.Op))
		}
	}
	if len(script.Steps) == 0 {
		errs = append(errs, errors.New("script has no steps"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid script", err)
	}
	return &script, nil
}

func runEdit(opts *EditOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	script, err := loadEditScript(cmd, path)
	if err != nil {
		return err
	}

	var (
		rec       record.Record
		transport interface {
			syncer.Transport
			syncer.SeqReader
		}
	)
	switch {
	case opts.Endpoint != "":
		ht := syncer.NewHTTPTransport(opts.Endpoint, &http.Client{})
		if rec, err = ht.Fetch(ctx, opts.AnnotationID); err != nil {
			return WrapExitError(ExitCommandError, "failed to fetch annotation", err)
		}
		transport = ht
	case opts.Database != "":
		st, err := openStore(opts.Database)
		if err != nil {
			return err
		}
		defer st.Close()
		if rec, err = loadAnnotation(ctx, st, opts.AnnotationID); err != nil {
			return err
		}
		transport = syncer.StoreTransport{Store: st}
	default:
		return NewExitError(ExitCommandError, "one of --db or --endpoint is required")
	}

	local, err := annotation.Initialize(rec)
	if err != nil {
		return reportRecordError(f, err)
	}
	ed := annotation.NewEditor(local)

	var s *syncer.Syncer
	syncOpts := []syncer.Option{
		syncer.WithTimeout(opts.Timeout),
		syncer.WithResultHandler(func(r syncer.Result) {
			if r.Err == nil {
				f.VerboseLog("delivered seq %d (%s) in %s", r.Delivery.Seq, shortID(r.Delivery.ID), r.Duration)
				return
			}
			f.VerboseLog("attempt %d of seq %d failed: %v", r.Attempt, r.Delivery.Seq, r.Err)
			if r.Attempt > opts.Retries {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(opts.RetryDelay << (r.Attempt - 1)):
			}
			s.Retry()
		}),
	}
	if opts.Session != "" {
		// A reopened session continues its own numbering.
		clock, err := syncer.ResumeClock(ctx, transport, opts.AnnotationID, opts.Session)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read change-set log", err)
		}
		syncOpts = append(syncOpts, syncer.WithSessionID(opts.Session), syncer.WithClock(clock))
	}
	s = syncer.New(transport, opts.AnnotationID, syncOpts...)

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	result := EditResult{AnnotationID: opts.AnnotationID, Session: s.Session(), Steps: []EditStep{}}
	vars := map[string]string{}
	var stepErr error
	for i, step := range script.Steps {
		id, cs, err := harness.ApplyStep(ed, step, vars)
		outcome := EditStep{Op: step.Op, ID: id}
		if err != nil {
			outcome.Error = string(annotation.CodeOf(err))
			if outcome.Error == "" {
				outcome.Error = err.Error()
			}
			result.Steps = append(result.Steps, outcome)
			stepErr = fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
			break
		}
		if step.As != "" {
			vars[step.As] = id
		}
		d, submitted, err := s.Submit(cs)
		if err != nil {
			stepErr = fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
			break
		}
		if submitted {
			outcome.Seq = d.Seq
		}
		result.Steps = append(result.Steps, outcome)
	}

	s.Close()
	syncErr := <-runErr
	result.Pending = s.Pending()

	switch {
	case syncErr != nil:
		return f.Fail(ExitFailure, CodeUndelivered, fmt.Sprintf("%d change-set(s) left undelivered: %v", result.Pending, syncErr), result)
	case stepErr != nil:
		return f.Fail(ExitFailure, CodeStepFailed, stepErr.Error(), result)
	}

	return f.Result(result, func(w io.Writer) {
		for _, st := range result.Steps {
			line := "  " + st.Op
			if st.ID != "" {
				line += " -> " + st.ID
			}
			if st.Seq != 0 {
				line += fmt.Sprintf(" (seq %d)", st.Seq)
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintf(w, "Edited %s in session %s: %d operation(s) delivered\n", result.AnnotationID, result.Session, len(result.Steps))
	})
}
