package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/store"
)

func TestCreated_CreatesArtifacts(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "--db", db, "created", "incident", "case-1")
	require.NoError(t, err)
	assert.Equal(t, "✓ incident/case-1 reconciled\n", out)

	arts := artifactsOf(t, db, ir.FieldArtifactCase, "case-1")
	require.Len(t, arts, 2)
	rules := []string{}
	for _, a := range arts {
		rule, err := a.Attributes.RefID(ir.FieldArtifactRule)
		require.NoError(t, err)
		rules = append(rules, rule)
	}
	assert.ElementsMatch(t, []string{"r-static", "r-priority"}, rules)
}

func TestCreated_RedeliveryDoesNotDuplicate(t *testing.T) {
	db := seededDB(t)

	for range 2 {
		_, err := execute(t, "--db", db, "created", "incident", "case-1")
		require.NoError(t, err)
	}
	assert.Len(t, artifactsOf(t, db, ir.FieldArtifactCase, "case-1"), 2)
}

func TestCreated_DryRunWritesNothing(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "--db", db, "created", "incident", "case-1", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "+ create r-static (Identity document)")
	assert.Contains(t, out, "+ create r-priority (Priority evidence)")
	assert.Empty(t, artifactsOf(t, db, ir.FieldArtifactCase, "case-1"))

	resp, err := executeJSON(t, "--db", db, "created", "incident", "case-1", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	var result struct {
		Trigger engine.Trigger `json:"trigger"`
		DryRun  bool           `json:"dry_run"`
		Plan    struct {
			Creates []map[string]any `json:"creates"`
		} `json:"plan"`
	}
	decodeData(t, resp, &result)
	assert.True(t, result.DryRun)
	assert.Equal(t, "incident", result.Trigger.RecordType)
	assert.Len(t, result.Plan.Creates, 2)
}

func TestCreated_UnconfiguredTypeIsSkipped(t *testing.T) {
	db := seededDB(t)
	withStore(t, db, func(s *store.Store) {
		require.NoError(t, s.Put(context.Background(), ir.Record{
			Type: "expense", ID: "exp-1",
			Attributes: ir.Attributes{"caseref": ir.NewRef(ir.TypeCase, "case-1")},
		}))
	})

	out, err := execute(t, "--db", db, "created", "expense", "exp-1", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "Skipped: lookup fields not configured\n", out)
}

func TestCreated_MissingRecordFails(t *testing.T) {
	db := seededDB(t)

	resp, err := executeJSON(t, "--db", db, "created", "incident", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(engine.ErrCodeDataAccess), resp.Error.Code)
	assert.Equal(t, map[string]any{"record_type": "incident", "record_id": "nope"}, resp.Error.Details)
}

func TestChanged_DeletesNonApplicableArtifact(t *testing.T) {
	db := seededDB(t)
	_, err := execute(t, "--db", db, "labels", "set", "incident", "priority", "1", "Low")
	require.NoError(t, err)
	_, err = execute(t, "--db", db, "created", "incident", "case-1")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "changed", "incident", "case-1",
		"--changes", `{"priority":{"option":1}}`, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "- delete ")
	assert.Contains(t, out, "Non-applicable: [r-priority]")
	assert.Len(t, artifactsOf(t, db, ir.FieldArtifactCase, "case-1"), 2)

	_, err = execute(t, "--db", db, "changed", "incident", "case-1", "--changes", `{"priority":{"option":1}}`)
	require.NoError(t, err)

	arts := artifactsOf(t, db, ir.FieldArtifactCase, "case-1")
	require.Len(t, arts, 1)
	rule, err := arts[0].Attributes.RefID(ir.FieldArtifactRule)
	require.NoError(t, err)
	assert.Equal(t, "r-static", rule)
}

func TestChanged_UnlabeledOptionIsMetadataError(t *testing.T) {
	db := seededDB(t)

	resp, err := executeJSON(t, "--db", db, "changed", "incident", "case-1", "--changes", `{"priority":{"option":9}}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(engine.ErrCodeMetadata), resp.Error.Code)
}

func TestChanged_BadChanges(t *testing.T) {
	db := seededDB(t)

	tests := []struct {
		name    string
		changes string
	}{
		{"not json", `priority=2`},
		{"untagged value", `{"priority":2}`},
		{"empty delta", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := executeJSON(t, "--db", db, "changed", "incident", "case-1", "--changes", tt.changes)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			require.NotNil(t, resp.Error)
			assert.Equal(t, ErrCodeBadChanges, resp.Error.Code)
		})
	}
}

func TestChanged_RequiresChangesFlag(t *testing.T) {
	_, err := execute(t, "changed", "incident", "case-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changes")
}

func TestDeleting_RemovesArtifacts(t *testing.T) {
	db := seededDB(t)
	_, err := execute(t, "--db", db, "created", "incident", "case-1")
	require.NoError(t, err)

	resp, err := executeJSON(t, "--db", db, "deleting", "incident", "case-1")
	require.NoError(t, err)

	var result DeleteResult
	decodeData(t, resp, &result)
	assert.Equal(t, "incident", result.RecordType)
	assert.Len(t, result.Deleted, 2)
	assert.Empty(t, artifactsOf(t, db, ir.FieldArtifactCase, "case-1"))
}

func TestDeleting_NotConfigured(t *testing.T) {
	db := seededDB(t)

	resp, err := executeJSON(t, "--db", db, "deleting", "expense", "exp-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotConfigured, resp.Error.Code)
}

func TestAnnotated_FlagsArtifactUploaded(t *testing.T) {
	db := seededDB(t)
	_, err := execute(t, "--db", db, "created", "incident", "case-1")
	require.NoError(t, err)
	artifactID := artifactsOf(t, db, ir.FieldArtifactCase, "case-1")[0].ID

	withStore(t, db, func(s *store.Store) {
		require.NoError(t, s.Put(context.Background(), ir.Record{
			Type: ir.TypeAnnotation, ID: "note-1",
			Attributes: ir.Attributes{
				ir.FieldAnnotationObject: ir.NewRef(ir.TypeArtifact, artifactID),
				ir.FieldAnnotationText:   ir.Text("passport scan"),
			},
		}))
	})

	out, err := execute(t, "--db", db, "annotated", "note-1")
	require.NoError(t, err)
	assert.Equal(t, "✓ "+artifactID+" uploaded (note marked)\n", out)

	withStore(t, db, func(s *store.Store) {
		art, err := s.Retrieve(context.Background(), ir.TypeArtifact, artifactID)
		require.NoError(t, err)
		upload, ok, err := art.Attributes.Option(ir.FieldArtifactUpload)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(ir.UploadStatusUploaded), upload)

		note, err := s.Retrieve(context.Background(), ir.TypeAnnotation, "note-1")
		require.NoError(t, err)
		text, _, err := note.Attributes.Text(ir.FieldAnnotationText)
		require.NoError(t, err)
		assert.Equal(t, "passport scan*WEB*", text)
	})
}

func TestAnnotated_IgnoresOtherObjects(t *testing.T) {
	db := seededDB(t)
	withStore(t, db, func(s *store.Store) {
		require.NoError(t, s.Put(context.Background(), ir.Record{
			Type: ir.TypeAnnotation, ID: "note-1",
			Attributes: ir.Attributes{ir.FieldAnnotationObject: ir.NewRef(ir.TypeCase, "case-1")},
		}))
	})

	out, err := execute(t, "--db", db, "annotated", "note-1")
	require.NoError(t, err)
	assert.Equal(t, "Annotation is not attached to an artifact\n", out)
}

func TestShow_ListsArtifacts(t *testing.T) {
	db := seededDB(t)
	_, err := execute(t, "--db", db, "created", "incident", "case-1")
	require.NoError(t, err)

	resp, err := executeJSON(t, "--db", db, "show", "incident", "case-1")
	require.NoError(t, err)

	var result ShowResult
	decodeData(t, resp, &result)
	assert.Equal(t, ir.FieldArtifactCase, result.Lookup)
	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, ShowStats{Total: 2, Uploaded: 0, Pending: 2}, result.Stats)
	for _, a := range result.Artifacts {
		assert.False(t, a.Uploaded)
		assert.NotEmpty(t, a.Name)
	}

	out, err := execute(t, "--db", db, "show", "incident", "case-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Artifacts for incident/case-1 (caseid):")
	assert.Contains(t, out, "2 total, 0 uploaded, 2 pending review")
}

func TestShow_NoArtifacts(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "--db", db, "show", "incident", "case-9")
	require.NoError(t, err)
	assert.Equal(t, "No artifacts for incident/case-9\n", out)
}

func TestShow_LookupNotConfigured(t *testing.T) {
	db := seededDB(t)

	resp, err := executeJSON(t, "--db", db, "show", "expense", "exp-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotConfigured, resp.Error.Code)
}

func TestReconcile_BackfillsEveryRecord(t *testing.T) {
	db := seededDB(t)
	withStore(t, db, func(s *store.Store) {
		require.NoError(t, s.Put(context.Background(), ir.Record{
			Type: ir.TypeCase, ID: "case-2",
			Attributes: ir.Attributes{"priority": ir.Option(2)},
		}))
	})

	resp, err := executeJSON(t, "--db", db, "reconcile", "incident", "--dry-run")
	require.NoError(t, err)
	var dry ReconcileResult
	decodeData(t, resp, &dry)
	assert.Equal(t, ReconcileResult{RecordType: "incident", Records: 2, DryRun: true, Created: 4}, dry)
	assert.Empty(t, artifactsOf(t, db, ir.FieldArtifactCase, "case-2"))

	resp, err = executeJSON(t, "--db", db, "reconcile", "incident")
	require.NoError(t, err)
	var result ReconcileResult
	decodeData(t, resp, &result)
	assert.Equal(t, ReconcileResult{RecordType: "incident", Records: 2, Created: 4}, result)

	resp, err = executeJSON(t, "--db", db, "reconcile", "incident")
	require.NoError(t, err)
	decodeData(t, resp, &result)
	assert.Equal(t, 0, result.Created)
	assert.Len(t, artifactsOf(t, db, ir.FieldArtifactCase, "case-1"), 2)
	assert.Len(t, artifactsOf(t, db, ir.FieldArtifactCase, "case-2"), 2)
}

func TestReconcile_ReportsFailures(t *testing.T) {
	db := seededDB(t)
	withStore(t, db, func(s *store.Store) {
		require.NoError(t, s.Put(context.Background(), ir.Record{
			Type: ir.TypeCase, ID: "case-2",
			Attributes: ir.Attributes{"priority": ir.Option(7)},
		}))
	})

	out, err := execute(t, "--db", db, "reconcile", "incident")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ 1 record(s) failed")
	assert.Contains(t, out, "case-2: METADATA:")
	assert.Len(t, artifactsOf(t, db, ir.FieldArtifactCase, "case-1"), 2)
}

func TestReconcile_SkipsUnconfiguredType(t *testing.T) {
	db := seededDB(t)
	withStore(t, db, func(s *store.Store) {
		require.NoError(t, s.Put(context.Background(), ir.Record{Type: "expense", ID: "exp-1"}))
	})

	out, err := execute(t, "--db", db, "reconcile", "expense")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 0 artifact(s) for 1 expense record(s)")
	assert.Contains(t, out, "Skipped 1 record(s): lookup fields not configured")
}

func TestReconcile_InvalidType(t *testing.T) {
	_, err := execute(t, "reconcile", "bad type")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
