package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/store"
)

var (
	staticRule = ir.ArtifactRule{
		ID:           "rule-static",
		Name:         "Government ID",
		ArtifactType: "identity",
		ParentRecord: ir.TypeCase,
		Specifier:    `"Applicant"`,
	}
	priorityRule = ir.ArtifactRule{
		ID:                 "rule-priority",
		Name:               "Escalation memo",
		ParentRecord:       ir.TypeCase,
		ConditionAttribute: "priority",
		SuccessIndicator:   "2",
		Specifier:          "title",
	}
	caseTrigger = Trigger{RecordType: ir.TypeCase, RecordID: "case-1"}
)

// seedCase stores the two standard rules, the priority labels and a case
// with priority 2.
func seedCase(t *testing.T, s *store.Store) {
	t.Helper()
	putRule(t, s, staticRule)
	putRule(t, s, priorityRule)
	putPriorityLabels(t, s)
	putRecord(t, s, ir.TypeCase, "case-1", ir.Attributes{
		"title":                    ir.Text("Water damage"),
		"priority":                 ir.Option(2),
		ir.FieldCaseCustomer:       ir.NewRef(ir.TypeAccount, "acct-1"),
		ir.FieldCasePrimaryContact: ir.NewRef(ir.TypeContact, "con-1"),
	})
}

func TestOnRecordCreated_StaticAndMatchingRule(t *testing.T) {
	s := setupTestStore(t)
	seedCase(t, s)

	require.NoError(t, newTestEngine(s).OnRecordCreated(context.Background(), caseTrigger))

	arts := artifactsOf(t, s, ir.FieldArtifactCase, "case-1")
	require.Len(t, arts, 2)
	assert.ElementsMatch(t, []string{"rule-static", "rule-priority"}, ruleIDs(arts))

	var staticID string
	for _, art := range arts {
		if art.RuleID == staticRule.ID {
			staticID = art.ID
		}
	}
	rec, err := s.Retrieve(context.Background(), ir.TypeArtifact, staticID)
	require.NoError(t, err)
	want := ir.Attributes{
		ir.FieldArtifactName:         ir.Text("Government ID"),
		ir.FieldArtifactRule:         ir.NewRef(ir.TypeArtifactRule, "rule-static"),
		ir.FieldArtifactType:         ir.Text("identity"),
		ir.FieldArtifactCase:         ir.NewRef(ir.TypeCase, "case-1"),
		ir.FieldArtifactAccount:      ir.NewRef(ir.TypeAccount, "acct-1"),
		ir.FieldArtifactContact:      ir.NewRef(ir.TypeContact, "con-1"),
		ir.FieldArtifactAssociation:  ir.Text("Applicant"),
		ir.FieldArtifactReviewStatus: ir.ReviewStatusPendingReview,
	}
	if diff := cmp.Diff(want, rec.Attributes); diff != "" {
		t.Errorf("artifact attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestOnRecordCreated_NonMatchingConditionCreatesOnlyStatic(t *testing.T) {
	s := setupTestStore(t)
	putRule(t, s, staticRule)
	putRule(t, s, priorityRule)
	putPriorityLabels(t, s)
	putRecord(t, s, ir.TypeCase, "case-1", ir.Attributes{"priority": ir.Option(3)})

	require.NoError(t, newTestEngine(s).OnRecordCreated(context.Background(), caseTrigger))

	assert.Equal(t, []string{"rule-static"}, ruleIDs(artifactsOf(t, s, ir.FieldArtifactCase, "case-1")))
}

func TestOnRecordCreated_ConditionAttributeAbsent(t *testing.T) {
	s := setupTestStore(t)
	putRule(t, s, priorityRule)
	putRecord(t, s, ir.TypeCase, "case-1", ir.Attributes{})

	require.NoError(t, newTestEngine(s).OnRecordCreated(context.Background(), caseTrigger))

	assert.Empty(t, artifactsOf(t, s, ir.FieldArtifactCase, "case-1"))
}

func TestOnRecordCreated_RedeliveryDoesNotDuplicate(t *testing.T) {
	s := setupTestStore(t)
	seedCase(t, s)
	eng := newTestEngine(s)

	require.NoError(t, eng.OnRecordCreated(context.Background(), caseTrigger))
	require.NoError(t, eng.OnRecordCreated(context.Background(), caseTrigger))

	assert.Len(t, artifactsOf(t, s, ir.FieldArtifactCase, "case-1"), 2)
}

// Every static rule yields exactly one artifact, whatever else the record holds.
func TestOnRecordCreated_StaticRulesProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := setupTestStore(t)
		putPriorityLabels(t, s)
		n := rapid.IntRange(0, 4).Draw(rt, "rules")
		for i := 0; i < n; i++ {
			putRule(t, s, ir.ArtifactRule{ID: "static-" + string(rune('a'+i)), Name: "doc", ParentRecord: ir.TypeCase})
		}
		attrs := ir.Attributes{}
		if rapid.Bool().Draw(rt, "has_priority") {
			attrs["priority"] = ir.Option(rapid.Int64Range(0, 5).Draw(rt, "priority"))
		}
		if rapid.Bool().Draw(rt, "has_title") {
			attrs["title"] = ir.Text(rapid.String().Draw(rt, "title"))
		}
		putRecord(t, s, ir.TypeCase, "case-1", attrs)

		if err := newTestEngine(s).OnRecordCreated(context.Background(), caseTrigger); err != nil {
			rt.Fatal(err)
		}
		if got := len(artifactsOf(t, s, ir.FieldArtifactCase, "case-1")); got != n {
			rt.Fatalf("got %d artifacts for %d static rules", got, n)
		}
	})
}

func TestOnRecordChanged_MatchToNonMatchDeletes(t *testing.T) {
	s := setupTestStore(t)
	seedCase(t, s)
	eng := newTestEngine(s)
	ctx := context.Background()
	require.NoError(t, eng.OnRecordCreated(ctx, caseTrigger))

	changed := ir.Attributes{"priority": ir.Option(3)}
	require.NoError(t, s.Update(ctx, ir.Record{Type: ir.TypeCase, ID: "case-1", Attributes: changed}))
	require.NoError(t, eng.OnRecordChanged(ctx, caseTrigger, changed))

	assert.Equal(t, []string{"rule-static"}, ruleIDs(artifactsOf(t, s, ir.FieldArtifactCase, "case-1")))
}

func TestOnRecordChanged_NonMatchToMatchCreates(t *testing.T) {
	s := setupTestStore(t)
	putRule(t, s, priorityRule)
	putPriorityLabels(t, s)
	putRecord(t, s, ir.TypeCase, "case-1", ir.Attributes{"priority": ir.Option(2)})
	eng := newTestEngine(s)

	require.NoError(t, eng.OnRecordChanged(context.Background(), caseTrigger, ir.Attributes{"priority": ir.Option(2)}))
	require.NoError(t, eng.OnRecordChanged(context.Background(), caseTrigger, ir.Attributes{"priority": ir.Option(2)}))

	assert.Len(t, artifactsOf(t, s, ir.FieldArtifactCase, "case-1"), 1, "existing artifact is not duplicated")
}

func TestPlanChanged_SkipsNullHousekeepingAndRefs(t *testing.T) {
	s := setupTestStore(t)
	putRule(t, s, ir.ArtifactRule{ID: "r-status", Name: "s", ParentRecord: ir.TypeCase, ConditionAttribute: ir.FieldStatusCode, SuccessIndicator: "1"})
	putRule(t, s, ir.ArtifactRule{ID: "r-owner", Name: "o", ParentRecord: ir.TypeCase, ConditionAttribute: "ownerid", SuccessIndicator: "x"})
	putRule(t, s, priorityRule)
	putRecord(t, s, ir.TypeCase, "case-1", ir.Attributes{})

	plan, err := newTestEngine(s).PlanChanged(context.Background(), caseTrigger, ir.Attributes{
		ir.FieldStatusCode: ir.Option(2),
		"ownerid":          ir.NewRef("systemuser", "u1"),
		"priority":         ir.Null{},
	})
	require.NoError(t, err)
	if diff := cmp.Diff(Plan{}, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanChanged_NonApplicableWithoutArtifact(t *testing.T) {
	s := setupTestStore(t)
	putRule(t, s, priorityRule)
	putPriorityLabels(t, s)
	putRecord(t, s, ir.TypeCase, "case-1", ir.Attributes{"priority": ir.Option(1)})

	plan, err := newTestEngine(s).PlanChanged(context.Background(), caseTrigger, ir.Attributes{"priority": ir.Option(1)})
	require.NoError(t, err)
	if diff := cmp.Diff(Plan{NonApplicable: []string{"rule-priority"}}, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestOnRecordChanged_SpecifierChangeUpdatesAssociation(t *testing.T) {
	s := setupTestStore(t)
	seedCase(t, s)
	eng := newTestEngine(s)
	ctx := context.Background()
	require.NoError(t, eng.OnRecordCreated(ctx, caseTrigger))

	changed := ir.Attributes{"title": ir.Text("Fire damage")}
	require.NoError(t, s.Update(ctx, ir.Record{Type: ir.TypeCase, ID: "case-1", Attributes: changed}))

	plan, err := eng.PlanChanged(ctx, caseTrigger, changed)
	require.NoError(t, err)
	require.Len(t, plan.Updates, 1)
	assert.Equal(t, ir.Attributes{ir.FieldArtifactAssociation: ir.Text("Fire damage")}, plan.Updates[0].Record.Attributes)

	require.NoError(t, eng.OnRecordChanged(ctx, caseTrigger, changed))
	for _, art := range artifactsOf(t, s, ir.FieldArtifactCase, "case-1") {
		if art.RuleID == priorityRule.ID {
			assert.Equal(t, strptr("Fire damage"), art.Association)
		}
	}

	// Unchanged inputs stage nothing.
	plan, err = eng.PlanChanged(ctx, caseTrigger, changed)
	require.NoError(t, err)
	assert.Empty(t, plan.Updates)
}

func TestOnRecordChanged_LinksAreSetNeverCleared(t *testing.T) {
	s := setupTestStore(t)
	seedCase(t, s)
	eng := newTestEngine(s)
	ctx := context.Background()
	require.NoError(t, eng.OnRecordCreated(ctx, caseTrigger))

	// Contact removed, customer moved, title changed.
	changed := ir.Attributes{
		"title":                    ir.Text("Renamed"),
		ir.FieldCaseCustomer:       ir.NewRef(ir.TypeAccount, "acct-2"),
		ir.FieldCasePrimaryContact: ir.Null{},
	}
	require.NoError(t, s.Update(ctx, ir.Record{Type: ir.TypeCase, ID: "case-1", Attributes: changed}))

	plan, err := eng.PlanChanged(ctx, caseTrigger, changed)
	require.NoError(t, err)
	require.Len(t, plan.Updates, 1)
	assert.Equal(t, ir.Attributes{
		ir.FieldArtifactAssociation: ir.Text("Renamed"),
		ir.FieldArtifactAccount:     ir.NewRef(ir.TypeAccount, "acct-2"),
	}, plan.Updates[0].Record.Attributes)

	require.NoError(t, eng.OnRecordChanged(ctx, caseTrigger, changed))
	for _, art := range artifactsOf(t, s, ir.FieldArtifactCase, "case-1") {
		assert.Equal(t, "con-1", art.ContactID, "contact link kept on %s", art.ID)
	}
}

func TestPlanChanged_DeletionWinsOverAssociationUpdate(t *testing.T) {
	s := setupTestStore(t)
	seedCase(t, s)
	eng := newTestEngine(s)
	ctx := context.Background()
	require.NoError(t, eng.OnRecordCreated(ctx, caseTrigger))
	doomed := ""
	for _, art := range artifactsOf(t, s, ir.FieldArtifactCase, "case-1") {
		if art.RuleID == priorityRule.ID {
			doomed = art.ID
		}
	}
	require.NotEmpty(t, doomed)

	changed := ir.Attributes{"priority": ir.Option(3), "title": ir.Text("Renamed")}
	require.NoError(t, s.Update(ctx, ir.Record{Type: ir.TypeCase, ID: "case-1", Attributes: changed}))

	plan, err := eng.PlanChanged(ctx, caseTrigger, changed)
	require.NoError(t, err)
	want := Plan{
		Deletes:       []ir.Request{ir.DeleteRequest(ir.TypeArtifact, doomed)},
		NonApplicable: []string{priorityRule.ID},
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestOnRecordChanged_AccountUsesRelatedRules(t *testing.T) {
	s := setupTestStore(t)
	putRule(t, s, ir.ArtifactRule{
		ID: "r-kyc", Name: "KYC", ParentRecord: ir.TypeCase, RelatedRecord: ir.TypeAccount,
		ConditionAttribute: "verified", SuccessIndicator: "false", Specifier: "name",
	})
	putRule(t, s, ir.ArtifactRule{ID: "r-case-only", Name: "x", ParentRecord: ir.TypeAccount})
	putRecord(t, s, ir.TypeAccount, "acct-1", ir.Attributes{
		"name":                        ir.Text("Contoso"),
		"verified":                    ir.Bool(false),
		ir.FieldAccountPrimaryContact: ir.NewRef(ir.TypeContact, "con-1"),
	})
	putRecord(t, s, ir.TypeCase, "case-1", ir.Attributes{ir.FieldCaseCustomer: ir.NewRef(ir.TypeAccount, "acct-1")})

	trig := Trigger{RecordType: ir.TypeAccount, RecordID: "acct-1"}
	require.NoError(t, newTestEngine(s).OnRecordChanged(context.Background(), trig, ir.Attributes{"verified": ir.Bool(false)}))

	arts := artifactsOf(t, s, ir.FieldArtifactAccount, "acct-1")
	require.Len(t, arts, 1)
	assert.Equal(t, ir.Artifact{
		ID:           arts[0].ID,
		RuleID:       "r-kyc",
		Association:  strptr("Contoso"),
		AccountID:    "acct-1",
		ContactID:    "con-1",
		CaseID:       "case-1",
		ReviewStatus: int64(ir.ReviewStatusPendingReview),
	}, arts[0])
}

func TestOnRecordCreated_GenericRelatedRecord(t *testing.T) {
	s := setupTestStore(t)
	putRule(t, s, ir.ArtifactRule{ID: "r-receipt", Name: "Receipt", ParentRecord: ir.TypeCase, RelatedRecord: "expense"})
	putRecord(t, s, ir.TypeCase, "case-1", ir.Attributes{ir.FieldCaseCustomer: ir.NewRef(ir.TypeAccount, "acct-1")})
	putRecord(t, s, "expense", "exp-1", ir.Attributes{"caseref": ir.NewRef(ir.TypeCase, "case-1")})

	trig := Trigger{RecordType: "expense", RecordID: "exp-1", CaseLookupField: "caseref", ArtifactLookupField: "expenseid"}
	require.NoError(t, newTestEngine(s).OnRecordCreated(context.Background(), trig))

	arts := artifactsOf(t, s, "expenseid", "exp-1")
	require.Len(t, arts, 1)
	assert.Equal(t, "case-1", arts[0].CaseID)
	assert.Equal(t, "acct-1", arts[0].AccountID)
	assert.Empty(t, arts[0].ContactID)
}

func TestOnRecordChanged_GenericWithoutLookupsIsSilentNoOp(t *testing.T) {
	spy := &spyStore{Store: setupTestStore(t)}
	obs := &recordingObserver{}
	eng := newTestEngine(spy, WithObserver(obs))

	err := eng.OnRecordChanged(context.Background(), Trigger{RecordType: "expense", RecordID: "exp-1"},
		ir.Attributes{"amount": ir.Int(10)})

	require.NoError(t, err)
	assert.Empty(t, spy.Calls(), "no store access at all")
	assert.Equal(t, []string{"changed:expense:skipped"}, obs.outcomes)

	plan, err := eng.PlanChanged(context.Background(), Trigger{RecordType: "expense", RecordID: "exp-1"}, nil)
	require.NoError(t, err)
	assert.True(t, plan.Skipped)
}

func TestOnRecordCreated_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, spy *spyStore)
		code  ErrorCode
	}{
		{
			name:  "rule query fails",
			setup: func(t *testing.T, spy *spyStore) { seedCase(t, spy.Store); spy.failQuery = errInjected },
			code:  ErrCodeDataAccess,
		},
		{
			name:  "target missing",
			setup: func(t *testing.T, spy *spyStore) {},
			code:  ErrCodeDataAccess,
		},
		{
			name: "unknown option label",
			setup: func(t *testing.T, spy *spyStore) {
				putRule(t, spy.Store, ir.ArtifactRule{ID: "r", Name: "r", ParentRecord: ir.TypeCase, ConditionAttribute: "priority", SuccessIndicator: "High"})
				putRecord(t, spy.Store, ir.TypeCase, "case-1", ir.Attributes{"priority": ir.Option(1)})
			},
			code: ErrCodeMetadata,
		},
		{
			name: "numeric indicator meets unlabelled code",
			setup: func(t *testing.T, spy *spyStore) {
				putRule(t, spy.Store, priorityRule)
				putPriorityLabels(t, spy.Store)
				putRecord(t, spy.Store, ir.TypeCase, "case-1", ir.Attributes{"priority": ir.Option(7)})
			},
			code: ErrCodeMetadata,
		},
		{
			name: "matching code without a label",
			setup: func(t *testing.T, spy *spyStore) {
				putRule(t, spy.Store, priorityRule)
				putRecord(t, spy.Store, ir.TypeCase, "case-1", ir.Attributes{"priority": ir.Option(2)})
			},
			code: ErrCodeMetadata,
		},
		{
			name: "specifier holds non-text",
			setup: func(t *testing.T, spy *spyStore) {
				putRule(t, spy.Store, ir.ArtifactRule{ID: "r", Name: "r", ParentRecord: ir.TypeCase, Specifier: "priority"})
				putRecord(t, spy.Store, ir.TypeCase, "case-1", ir.Attributes{"priority": ir.Option(1)})
			},
			code: ErrCodeEvaluationAbort,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyStore{Store: setupTestStore(t)}
			tt.setup(t, spy)
			obs := &recordingObserver{}

			err := newTestEngine(spy, WithObserver(obs)).OnRecordCreated(context.Background(), caseTrigger)

			var ee *ExecutionError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.code, ee.Code)
			assert.Equal(t, ir.TypeCase, ee.RecordType)
			assert.Equal(t, "case-1", ee.RecordID)
			assert.NotEmpty(t, ee.Message)
			assert.NotContains(t, spy.Calls(), "create")
			assert.Equal(t, []string{"created:incident:failed"}, obs.outcomes)
		})
	}
}

func TestOnRecordChanged_BatchCallFailureIsFatal(t *testing.T) {
	spy := &spyStore{Store: setupTestStore(t)}
	seedCase(t, spy.Store)
	eng := newTestEngine(spy)
	ctx := context.Background()
	require.NoError(t, eng.OnRecordCreated(ctx, caseTrigger))

	spy.failBatch = errInjected
	err := eng.OnRecordChanged(ctx, caseTrigger, ir.Attributes{"priority": ir.Option(3)})

	assert.True(t, IsDataAccess(err))
	assert.True(t, errors.Is(err, errInjected))
}

func TestOnRecordChanged_BatchItemFailureDoesNotBlockSiblings(t *testing.T) {
	spy := &spyStore{Store: setupTestStore(t)}
	putRule(t, spy.Store, priorityRule)
	putPriorityLabels(t, spy.Store)
	putRecord(t, spy.Store, ir.TypeCase, "case-1", ir.Attributes{"priority": ir.Option(3)})
	for _, id := range []string{"a1", "a2"} {
		putRecord(t, spy.Store, ir.TypeArtifact, id, ir.Attributes{
			ir.FieldArtifactRule: ir.NewRef(ir.TypeArtifactRule, priorityRule.ID),
			ir.FieldArtifactCase: ir.NewRef(ir.TypeCase, "case-1"),
		})
	}
	spy.failFirstOp = true
	obs := &recordingObserver{}

	err := newTestEngine(spy, WithObserver(obs)).OnRecordChanged(context.Background(), caseTrigger, ir.Attributes{"priority": ir.Option(3)})

	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, artifactIDs(artifactsOf(t, spy.Store, ir.FieldArtifactCase, "case-1")))
	assert.Equal(t, []ir.RequestOp{ir.OpDelete}, obs.batchFailures)
	require.Len(t, obs.applied, 1)
	assert.Equal(t, Applied{Deleted: 1, Failed: 1}, obs.applied[0])
}

func TestIsMetadataAndIsDataAccess(t *testing.T) {
	assert.False(t, IsDataAccess(errors.New("plain")))
	assert.False(t, IsMetadata(nil))
	assert.True(t, IsMetadata(newExecutionError(caseTrigger, &store.MetadataError{})))
	assert.True(t, IsDataAccess(newExecutionError(caseTrigger, errInjected)))
}

// Staged patches never clear a link: an unknown identity leaves the stored
// value alone, a known one is set only when it differs.
func TestArtifactPatch_NeverClearsLinks(t *testing.T) {
	ids := []string{"", "x", "y"}
	rapid.Check(t, func(t *rapid.T) {
		art := ir.Artifact{
			AccountID: rapid.SampledFrom(ids).Draw(t, "stored_account"),
			ContactID: rapid.SampledFrom(ids).Draw(t, "stored_contact"),
			CaseID:    rapid.SampledFrom(ids).Draw(t, "stored_case"),
		}
		id := Identity{
			AccountID: rapid.SampledFrom(ids).Draw(t, "account"),
			ContactID: rapid.SampledFrom(ids).Draw(t, "contact"),
			CaseID:    rapid.SampledFrom(ids).Draw(t, "case"),
		}
		patch := artifactPatch(art, nil, id)

		checks := []struct{ field, stored, resolved string }{
			{ir.FieldArtifactAccount, art.AccountID, id.AccountID},
			{ir.FieldArtifactContact, art.ContactID, id.ContactID},
			{ir.FieldArtifactCase, art.CaseID, id.CaseID},
		}
		for _, c := range checks {
			v, staged := patch[c.field]
			wantStaged := c.resolved != "" && c.resolved != c.stored
			if staged != wantStaged {
				t.Fatalf("%s: staged=%v want %v (stored=%q resolved=%q)", c.field, staged, wantStaged, c.stored, c.resolved)
			}
			if staged && ir.IsNull(v) {
				t.Fatalf("%s cleared", c.field)
			}
		}
	})
}

func artifactIDs(arts []ir.Artifact) []string {
	out := make([]string, 0, len(arts))
	for _, a := range arts {
		out = append(out, a.ID)
	}
	return out
}
