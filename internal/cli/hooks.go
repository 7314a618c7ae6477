package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/hooks"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/store"
)

// Error codes reported by the hook commands besides engine.ErrorCode values.
const (
	ErrCodeNotConfigured = "NOT_CONFIGURED"
	ErrCodeBadChanges    = "BAD_CHANGES"
)

// TriggerOptions holds the flags shared by created and changed.
type TriggerOptions struct {
	*RootOptions
	CaseLookup     string
	ArtifactLookup string
	DryRun         bool
	Changes        string // changed only: tagged-JSON attribute delta
}

// HookResult is the output of created and changed.
type HookResult struct {
	Trigger engine.Trigger `json:"trigger"`
	DryRun  bool           `json:"dry_run,omitempty"`
	Plan    *engine.Plan   `json:"plan,omitempty"`
}

// DeleteResult is the output of deleting.
type DeleteResult struct {
	RecordType string   `json:"record_type"`
	RecordID   string   `json:"record_id"`
	Deleted    []string `json:"deleted"`
}

// NewCreatedCommand creates the created command.
func NewCreatedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "created <record-type> <record-id>",
		Short: "Reconcile artifacts for a newly created record",
		Long: `Run the creation protocol for a record: create an artifact for every
applicable rule whose condition holds, unless one already exists.

Example:
  artifacts created incident 0190f1c2-...
  artifacts created expense exp-1 --case-lookup caseref --artifact-lookup expenseid
  artifacts created incident case-1 --dry-run --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(opts, cmd, args, nil)
		},
	}
	addTriggerFlags(cmd, opts)
	return cmd
}

// NewChangedCommand creates the changed command.
func NewChangedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "changed <record-type> <record-id>",
		Short: "Reconcile artifacts for a changed record",
		Long: `Run the update protocol for a record given the attributes that changed.
Changes use the tagged value encoding of the store:

  artifacts changed incident case-1 --changes '{"priority":{"option":2}}'
  artifacts changed account acct-1 --changes '{"kyclevel":null}' --dry-run`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			var changed ir.Attributes
			if err := json.Unmarshal([]byte(opts.Changes), &changed); err != nil {
				return f.Fail(ExitCommandError, ErrCodeBadChanges, fmt.Sprintf("invalid --changes: %v", err), nil)
			}
			if len(changed) == 0 {
				return f.Fail(ExitCommandError, ErrCodeBadChanges, "--changes must name at least one attribute", nil)
			}
			return runTrigger(opts, cmd, args, changed)
		},
	}
	addTriggerFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Changes, "changes", "", "changed attributes as tagged JSON (required)")
	_ = cmd.MarkFlagRequired("changes")
	return cmd
}

func addTriggerFlags(cmd *cobra.Command, opts *TriggerOptions) {
	cmd.Flags().StringVar(&opts.CaseLookup, "case-lookup", "", "attribute referencing the case (generic record types)")
	cmd.Flags().StringVar(&opts.ArtifactLookup, "artifact-lookup", "", "artifact attribute referencing the record (generic record types)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the plan without writing")
}

// runTrigger runs the creation protocol when changed is nil and the update
// protocol otherwise.
func runTrigger(opts *TriggerOptions, cmd *cobra.Command, args []string, changed ir.Attributes) error {
	f := newFormatter(opts.RootOptions, cmd)
	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	t := e.config.Trigger(args[0], args[1])
	if opts.CaseLookup != "" {
		t.CaseLookupField = opts.CaseLookup
	}
	if opts.ArtifactLookup != "" {
		t.ArtifactLookupField = opts.ArtifactLookup
	}

	eng := e.engine()
	ctx := cmd.Context()
	result := HookResult{Trigger: t, DryRun: opts.DryRun}

	switch {
	case opts.DryRun && changed == nil:
		plan, err := eng.PlanCreated(ctx, t)
		if err != nil {
			return failHook(f, err)
		}
		result.Plan = &plan
	case opts.DryRun:
		plan, err := eng.PlanChanged(ctx, t, changed)
		if err != nil {
			return failHook(f, err)
		}
		result.Plan = &plan
	case changed == nil:
		err = eng.OnRecordCreated(ctx, t)
	default:
		err = eng.OnRecordChanged(ctx, t, changed)
	}
	if err != nil {
		return failHook(f, err)
	}

	return f.Success(result, func(w io.Writer) {
		if result.Plan == nil {
			fmt.Fprintf(w, "✓ %s/%s reconciled\n", t.RecordType, t.RecordID)
			return
		}
		printPlan(w, *result.Plan)
	})
}

func printPlan(w io.Writer, p engine.Plan) {
	if p.Skipped {
		fmt.Fprintln(w, "Skipped: lookup fields not configured")
		return
	}
	if p.Empty() && len(p.NonApplicable) == 0 {
		fmt.Fprintln(w, "No changes")
		return
	}
	for _, c := range p.Creates {
		rule, _ := c.Attributes.RefID(ir.FieldArtifactRule)
		name, _, _ := c.Attributes.Text(ir.FieldArtifactName)
		fmt.Fprintf(w, "+ create %s (%s)\n", rule, name)
	}
	for _, u := range p.Updates {
		fmt.Fprintf(w, "~ update %s %v\n", u.Record.ID, u.Record.Attributes.SortedKeys())
	}
	for _, d := range p.Deletes {
		fmt.Fprintf(w, "- delete %s\n", d.Record.ID)
	}
	if len(p.NonApplicable) > 0 {
		fmt.Fprintf(w, "Non-applicable: %v\n", p.NonApplicable)
	}
}

// NewDeletingCommand creates the deleting command.
func NewDeletingCommand(rootOpts *RootOptions) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "deleting <record-type> <record-id>",
		Short: "Delete the artifacts of a record about to be deleted",
		Long: `Delete every artifact whose lookup references the record. The lookup
field comes from the config's cascade section, then the record type's
binding; --field overrides both.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			lookup := field
			if lookup == "" {
				lookup = e.config.CascadeField(args[0])
			}
			deleted, err := hooks.NewCleaner(e.store, e.logger).OnRecordDeleting(cmd.Context(), args[0], args[1], lookup)
			if err != nil {
				return failHook(f, err)
			}

			result := DeleteResult{RecordType: args[0], RecordID: args[1], Deleted: deleted}
			return f.Success(result, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Deleted %d artifact(s)\n", len(deleted))
				for _, id := range deleted {
					fmt.Fprintf(w, "  %s\n", id)
				}
			})
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "artifact lookup field referencing the record")
	return cmd
}

// NewAnnotatedCommand creates the annotated command.
func NewAnnotatedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "annotated <annotation-id>",
		Short:         "Mark an artifact uploaded when an annotation is attached to it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := hooks.NewUploads(e.store, e.logger).OnAnnotationCreated(cmd.Context(), args[0])
			if err != nil {
				return failHook(f, err)
			}
			return f.Success(result, func(w io.Writer) {
				switch {
				case result.NotArtifact:
					fmt.Fprintln(w, "Annotation is not attached to an artifact")
				case result.MarkerAdded:
					fmt.Fprintf(w, "✓ %s uploaded (note marked)\n", result.ArtifactID)
				default:
					fmt.Fprintf(w, "✓ %s uploaded\n", result.ArtifactID)
				}
			})
		},
	}
}

// failHook reports an engine or hook failure with exit code ExitFailure.
func failHook(f *OutputFormatter, err error) error {
	var (
		ee *engine.ExecutionError
		de *store.DataAccessError
	)
	switch {
	case errors.As(err, &ee):
		return f.Fail(ExitFailure, string(ee.Code), ee.Message, map[string]string{
			"record_type": ee.RecordType,
			"record_id":   ee.RecordID,
		})
	case errors.Is(err, hooks.ErrCascadeNotConfigured):
		return f.Fail(ExitFailure, ErrCodeNotConfigured, err.Error(), nil)
	case errors.As(err, &de):
		return f.Fail(ExitFailure, string(engine.ErrCodeDataAccess), err.Error(), nil)
	default:
		return f.Fail(ExitFailure, string(engine.ErrCodeEvaluationAbort), err.Error(), nil)
	}
}
