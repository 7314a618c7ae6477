package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/artifacts/internal/compiler"
	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// RuleSet is the compiled content of a rules directory.
type RuleSet struct {
	Rules  []ir.ArtifactRule `json:"rules"`
	Labels []ir.OptionLabel  `json:"labels"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// LoadSummary reports what `rules load` wrote.
type LoadSummary struct {
	Rules  int `json:"rules"`
	Labels int `json:"labels"`
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate, load and list artifact rules",
	}
	cmd.AddCommand(newRulesValidateCommand(rootOpts))
	cmd.AddCommand(newRulesLoadCommand(rootOpts))
	cmd.AddCommand(newRulesListCommand(rootOpts))
	return cmd
}

func newRulesValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Compile and validate CUE rules without touching the store",
		Long: `Compile the CUE rules and option labels of a directory and check every
rule for consistency (applicability, condition, specifier, duplicate ids).

Exit codes:
  0 - All rules valid
  1 - One or more rules invalid
  2 - Rules could not be compiled`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			set, err := compileRuleSet(f, args[0])
			if err != nil {
				return err
			}
			if output != "" {
				if err := writeRuleSet(set, output); err != nil {
					return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
				}
			}
			return f.Success(ValidationResult{Valid: true}, func(w io.Writer) {
				fmt.Fprintf(w, "✓ %d rule(s), %d label(s) valid\n", len(set.Rules), len(set.Labels))
				if output != "" {
					fmt.Fprintf(w, "Wrote compiled rules to %s\n", output)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the compiled rules as JSON to this file")
	return cmd
}

func newRulesLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <rules-dir>",
		Short: "Validate rules and upsert them into the store",
		Long: `Validate the CUE rules of a directory and write them, with their option
labels, into the record store. Rules are upserted by id; rules missing
from the directory are left in place.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			set, err := compileRuleSet(f, args[0])
			if err != nil {
				return err
			}

			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			for _, l := range set.Labels {
				if err := e.store.PutOptionLabel(ctx, l); err != nil {
					return f.Fail(ExitCommandError, string(engine.ErrCodeDataAccess), err.Error(), nil)
				}
			}
			for _, r := range set.Rules {
				f.VerboseLog("Loading rule: %s", r.ID)
				if err := e.store.Put(ctx, r.Record()); err != nil {
					return f.Fail(ExitCommandError, string(engine.ErrCodeDataAccess), err.Error(), nil)
				}
			}
			e.logger.Info("rules loaded", "rules", len(set.Rules), "labels", len(set.Labels))

			summary := LoadSummary{Rules: len(set.Rules), Labels: len(set.Labels)}
			return f.Success(summary, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Loaded %d rule(s), %d label(s)\n", summary.Rules, summary.Labels)
			})
		},
	}
}

func newRulesListCommand(rootOpts *RootOptions) *cobra.Command {
	var recordType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the rules in the store",
		Long: `List the artifact rules in the store. With --type, list only the rules
the engine evaluates for records of that type, in evaluation order.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			rules, err := listRules(cmd, e, recordType)
			if err != nil {
				return f.Fail(ExitCommandError, string(engine.ErrCodeDataAccess), err.Error(), nil)
			}
			return f.Success(rules, func(w io.Writer) {
				if len(rules) == 0 {
					fmt.Fprintln(w, "No rules found.")
					return
				}
				for _, r := range rules {
					fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, applicability(r), r.Name)
				}
			})
		},
	}

	cmd.Flags().StringVar(&recordType, "type", "", "only rules evaluated for this record type")
	return cmd
}

func listRules(cmd *cobra.Command, e *env, recordType string) ([]ir.ArtifactRule, error) {
	if recordType != "" {
		return engine.NewRuleRepository(e.store).RulesFor(cmd.Context(), engine.IsPrimaryType(recordType), recordType)
	}

	recs, err := e.store.Query(cmd.Context(), queryir.Select{
		Type:    ir.TypeArtifactRule,
		OrderBy: []queryir.Order{{Column: queryir.ColumnID}},
	})
	if err != nil {
		return nil, err
	}
	rules := make([]ir.ArtifactRule, 0, len(recs))
	for _, rec := range recs {
		r, err := ir.RuleFromRecord(rec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// applicability renders where a rule applies: "incident" for a primary
// rule, "incident>account" for a related one.
func applicability(r ir.ArtifactRule) string {
	if r.IsPrimary() {
		return r.ParentRecord
	}
	if r.ParentRecord == "" {
		return r.RelatedRecord
	}
	return r.ParentRecord + ">" + r.RelatedRecord
}

// compileRuleSet loads and validates dir, writing any errors to f.
// Compile errors exit with ExitCommandError, validation errors with
// ExitFailure.
func compileRuleSet(f *OutputFormatter, dir string) (*RuleSet, error) {
	loaded, loadErrs := LoadRules(dir, LoadModeCollectAll)
	if loaded == nil {
		code, message := parseLoadError(loadErrs[0])
		return nil, f.Fail(ExitCommandError, code, message, nil)
	}
	f.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)

	if len(loadErrs) > 0 {
		return nil, outputCompileErrors(f, loadErrs)
	}

	if errs := compiler.ValidateAll(loaded.Rules); len(errs) > 0 {
		return nil, outputValidationErrors(f, errs)
	}
	return &RuleSet{Rules: loaded.Rules, Labels: loaded.Labels}, nil
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(f *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		code, message := parseLoadError(err)
		cliErrors[i] = CLIError{Code: code, Message: message}
	}
	message := fmt.Sprintf("compilation failed with %d error(s)", len(errs))

	if f.JSON() {
		if err := f.encode(CLIResponse{Status: "error", Error: &cliErrors[0], Data: cliErrors}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, message)
	}

	fmt.Fprintln(f.Writer, "✗ Compilation failed")
	fmt.Fprintln(f.Writer)
	for i, err := range errs {
		var le *LoadError
		if errors.As(err, &le) && le.Pos.IsValid() {
			fmt.Fprintf(f.Writer, "%s:%d:%d\n", le.Pos.Filename(), le.Pos.Line(), le.Pos.Column())
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", cliErrors[i].Code, cliErrors[i].Message)
	}
	return NewExitError(ExitCommandError, message)
}

// outputValidationErrors outputs rule validation errors.
func outputValidationErrors(f *OutputFormatter, errs []compiler.ValidationError) error {
	message := fmt.Sprintf("validation failed with %d error(s)", len(errs))

	if f.JSON() {
		err := f.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		})
		if err != nil {
			return err
		}
		return NewExitError(ExitFailure, message)
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	fmt.Fprintln(f.Writer)
	for _, err := range errs {
		fmt.Fprintf(f.Writer, "  %s: %s.%s: %s\n", err.Code, err.RuleID, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, message)
}

// writeRuleSet writes the compiled rules as indented JSON.
func writeRuleSet(set *RuleSet, filename string) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
