package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// ArtifactView is one artifact as shown by the show command.
type ArtifactView struct {
	ID           string    `json:"id"`
	RuleID       string    `json:"rule_id"`
	Name         string    `json:"name"`
	Association  *string   `json:"association,omitempty"`
	ReviewStatus int64     `json:"review_status"`
	Uploaded     bool      `json:"uploaded"`
	UploadDate   string    `json:"upload_date,omitempty"`
	CreatedOn    time.Time `json:"created_on"`
}

// ShowStats summarizes the artifacts of a record.
type ShowStats struct {
	Total    int `json:"total"`
	Uploaded int `json:"uploaded"`
	Pending  int `json:"pending_review"`
}

// ShowResult holds the show output.
type ShowResult struct {
	RecordType string         `json:"record_type"`
	RecordID   string         `json:"record_id"`
	Lookup     string         `json:"lookup"`
	Artifacts  []ArtifactView `json:"artifacts"`
	Stats      ShowStats      `json:"stats"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "show <record-type> <record-id>",
		Short: "Show the artifacts of a record",
		Long: `List the artifacts referencing a record, oldest first, with the rule
that required each one and its upload state.

Examples:
  artifacts show incident case-1
  artifacts show expense exp-1 --field expenseid --format json`,
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
			if lookup == "" {
				return f.Fail(ExitCommandError, ErrCodeNotConfigured,
					fmt.Sprintf("no artifact lookup configured for %s; pass --field", args[0]), nil)
			}
			if !queryir.ValidIdent(lookup) {
				return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid lookup field %q", lookup), nil)
			}

			recs, err := e.store.Query(cmd.Context(), queryir.Select{
				Type:    ir.TypeArtifact,
				Filter:  queryir.RefEq(lookup, args[1]),
				OrderBy: queryir.Earliest(),
			})
			if err != nil {
				return f.Fail(ExitCommandError, string(engine.ErrCodeDataAccess), err.Error(), nil)
			}

			result := ShowResult{RecordType: args[0], RecordID: args[1], Lookup: lookup, Artifacts: []ArtifactView{}}
			for _, rec := range recs {
				view, err := artifactView(rec)
				if err != nil {
					return f.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
				}
				result.Artifacts = append(result.Artifacts, view)
			}
			result.Stats = showStats(result.Artifacts)

			return f.Success(result, func(w io.Writer) { printShow(w, result) })
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "artifact lookup field referencing the record")
	return cmd
}

func artifactView(rec ir.Record) (ArtifactView, error) {
	art, err := ir.ArtifactFromRecord(rec)
	if err != nil {
		return ArtifactView{}, err
	}
	view := ArtifactView{
		ID:           art.ID,
		RuleID:       art.RuleID,
		Association:  art.Association,
		ReviewStatus: art.ReviewStatus,
		CreatedOn:    rec.CreatedOn,
	}
	if view.Name, _, err = rec.Attributes.Text(ir.FieldArtifactName); err != nil {
		return ArtifactView{}, fmt.Errorf("artifact %s: %w", rec.ID, err)
	}
	upload, _, err := rec.Attributes.Option(ir.FieldArtifactUpload)
	if err != nil {
		return ArtifactView{}, fmt.Errorf("artifact %s: %w", rec.ID, err)
	}
	view.Uploaded = upload == int64(ir.UploadStatusUploaded)
	if view.UploadDate, _, err = rec.Attributes.Text(ir.FieldArtifactUploadDate); err != nil {
		return ArtifactView{}, fmt.Errorf("artifact %s: %w", rec.ID, err)
	}
	return view, nil
}

func showStats(views []ArtifactView) ShowStats {
	stats := ShowStats{Total: len(views)}
	for _, v := range views {
		if v.Uploaded {
			stats.Uploaded++
		}
		if v.ReviewStatus == int64(ir.ReviewStatusPendingReview) {
			stats.Pending++
		}
	}
	return stats
}

func printShow(w io.Writer, r ShowResult) {
	if len(r.Artifacts) == 0 {
		fmt.Fprintf(w, "No artifacts for %s/%s\n", r.RecordType, r.RecordID)
		return
	}
	fmt.Fprintf(w, "Artifacts for %s/%s (%s):\n\n", r.RecordType, r.RecordID, r.Lookup)
	for _, a := range r.Artifacts {
		status := "missing"
		if a.Uploaded {
			status = "uploaded " + a.UploadDate
		}
		fmt.Fprintf(w, "  %s  %-24s rule=%s  %s\n", a.ID, a.Name, a.RuleID, status)
		if a.Association != nil {
			fmt.Fprintf(w, "      association: %s\n", *a.Association)
		}
	}
	fmt.Fprintf(w, "\n%d total, %d uploaded, %d pending review\n", r.Stats.Total, r.Stats.Uploaded, r.Stats.Pending)
}
