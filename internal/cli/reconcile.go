package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// ReconcileFailure names a record whose reconciliation failed.
type ReconcileFailure struct {
	RecordID string `json:"record_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// ReconcileResult holds the reconcile output.
type ReconcileResult struct {
	RecordType string             `json:"record_type"`
	Records    int                `json:"records"`
	DryRun     bool               `json:"dry_run,omitempty"`
	Created    int                `json:"created"`
	Skipped    int                `json:"skipped"`
	Failures   []ReconcileFailure `json:"failures,omitempty"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <record-type>",
		Short: "Run the creation protocol for every record of a type",
		Long: `Redeliver the creation event for every record of a type, oldest first.
Artifacts that already exist are never duplicated, so this backfills the
artifacts of rules added after the records were created.

A record that fails is reported and the run continues.

Exit codes:
  0 - Every record reconciled
  1 - One or more records failed
  2 - Command error (database not found, etc.)

Examples:
  artifacts reconcile incident
  artifacts reconcile expense --case-lookup caseref --artifact-lookup expenseid
  artifacts reconcile account --dry-run --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], cmd)
		},
	}
	addTriggerFlags(cmd, opts)
	return cmd
}

func runReconcile(opts *TriggerOptions, recordType string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if !queryir.ValidIdent(recordType) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("%q is not a valid record type", recordType), nil)
	}

	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	recs, err := e.store.Query(ctx, queryir.Select{
		Type:    recordType,
		OrderBy: queryir.Earliest(),
	})
	if err != nil {
		return f.Fail(ExitCommandError, string(engine.ErrCodeDataAccess), err.Error(), nil)
	}

	counts := &tally{}
	eng := e.engine(engine.WithObserver(counts))
	result := ReconcileResult{RecordType: recordType, Records: len(recs), DryRun: opts.DryRun}

	for _, rec := range recs {
		t := e.config.Trigger(recordType, rec.ID)
		if opts.CaseLookup != "" {
			t.CaseLookupField = opts.CaseLookup
		}
		if opts.ArtifactLookup != "" {
			t.ArtifactLookupField = opts.ArtifactLookup
		}

		if opts.DryRun {
			plan, err := eng.PlanCreated(ctx, t)
			if err != nil {
				result.Failures = append(result.Failures, reconcileFailure(rec.ID, err))
				continue
			}
			if plan.Skipped {
				result.Skipped++
			}
			result.Created += len(plan.Creates)
			continue
		}

		f.VerboseLog("Reconciling %s/%s", recordType, rec.ID)
		if err := eng.OnRecordCreated(ctx, t); err != nil {
			result.Failures = append(result.Failures, reconcileFailure(rec.ID, err))
		}
	}
	if !opts.DryRun {
		result.Created = counts.created
		result.Skipped = counts.skipped
	}

	if err := f.Success(result, func(w io.Writer) { printReconcile(w, result) }); err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) failed", len(result.Failures)))
	}
	return nil
}

func reconcileFailure(recordID string, err error) ReconcileFailure {
	code := string(engine.ErrCodeEvaluationAbort)
	var ee *engine.ExecutionError
	if errors.As(err, &ee) {
		code = string(ee.Code)
	}
	return ReconcileFailure{RecordID: recordID, Code: code, Message: err.Error()}
}

func printReconcile(w io.Writer, r ReconcileResult) {
	verb := "Created"
	if r.DryRun {
		verb = "Would create"
	}
	fmt.Fprintf(w, "%s %d artifact(s) for %d %s record(s)\n", verb, r.Created, r.Records, r.RecordType)
	if r.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d record(s): lookup fields not configured\n", r.Skipped)
	}
	if len(r.Failures) == 0 {
		fmt.Fprintln(w, "✓ All records reconciled")
		return
	}
	fmt.Fprintf(w, "✗ %d record(s) failed\n", len(r.Failures))
	for _, fail := range r.Failures {
		fmt.Fprintf(w, "  %s: %s: %s\n", fail.RecordID, fail.Code, fail.Message)
	}
}

// tally counts what the engine applied across a reconcile run.
type tally struct {
	created int
	skipped int
}

func (t *tally) ObserveEvaluation(_, _, outcome string, _ time.Duration) {
	if outcome == engine.OutcomeSkipped {
		t.skipped++
	}
}

func (t *tally) ObserveApplied(a engine.Applied) {
	t.created += len(a.Created)
}

func (t *tally) ObserveBatchFailure(ir.RequestOp) {}
