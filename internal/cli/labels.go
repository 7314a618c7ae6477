package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// NewLabelsCommand creates the labels command group. Option labels are the
// display names success indicators are compared against.
func NewLabelsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Manage option labels",
	}
	cmd.AddCommand(newLabelsSetCommand(rootOpts))
	cmd.AddCommand(newLabelsListCommand(rootOpts))
	return cmd
}

func newLabelsSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <record-type> <attribute> <code> <label>",
		Short: "Set the label of one option code",
		Example: `  artifacts labels set incident priority 2 High
  artifacts labels set account kyclevel 100000001 "Enhanced due diligence"`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			label, err := parseLabelArgs(args)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
			}

			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.PutOptionLabel(cmd.Context(), label); err != nil {
				return f.Fail(ExitCommandError, string(engine.ErrCodeDataAccess), err.Error(), nil)
			}
			return f.Success(label, func(w io.Writer) {
				fmt.Fprintf(w, "✓ %s.%s %d = %q\n", label.RecordType, label.Attribute, label.Code, label.Label)
			})
		},
	}
}

func newLabelsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List option labels",
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

			labels, err := e.store.ListOptionLabels(cmd.Context())
			if err != nil {
				return f.Fail(ExitCommandError, string(engine.ErrCodeDataAccess), err.Error(), nil)
			}
			if labels == nil {
				labels = []ir.OptionLabel{}
			}
			return f.Success(labels, func(w io.Writer) {
				if len(labels) == 0 {
					fmt.Fprintln(w, "No labels found.")
					return
				}
				for _, l := range labels {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", l.RecordType, l.Attribute, l.Code, l.Label)
				}
			})
		},
	}
}

func parseLabelArgs(args []string) (ir.OptionLabel, error) {
	recordType, attribute := args[0], args[1]
	if !queryir.ValidIdent(recordType) {
		return ir.OptionLabel{}, fmt.Errorf("%q is not a valid record type", recordType)
	}
	if !queryir.ValidIdent(attribute) {
		return ir.OptionLabel{}, fmt.Errorf("%q is not a valid attribute name", attribute)
	}
	code, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return ir.OptionLabel{}, fmt.Errorf("option code %q must be an integer", args[2])
	}
	return ir.OptionLabel{RecordType: recordType, Attribute: attribute, Code: code, Label: args[3]}, nil
}
