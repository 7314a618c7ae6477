package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/artifacts/internal/ir"
)

func validRule() ir.ArtifactRule {
	return ir.ArtifactRule{
		ID:                 "r1",
		Name:               "Memo",
		ParentRecord:       ir.TypeCase,
		ConditionAttribute: "priority",
		SuccessIndicator:   "2",
		Specifier:          "title",
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ir.ArtifactRule)
		want   []string
	}{
		{"valid primary", func(r *ir.ArtifactRule) {}, []string{}},
		{"valid related", func(r *ir.ArtifactRule) { r.RelatedRecord = "expense" }, []string{}},
		{"valid static with literal", func(r *ir.ArtifactRule) {
			r.ConditionAttribute, r.SuccessIndicator, r.Specifier = "", "", `"Spouse ID"`
		}, []string{}},
		{"lone quote is an empty literal", func(r *ir.ArtifactRule) { r.Specifier = `"` }, []string{}},
		{"missing id", func(r *ir.ArtifactRule) { r.ID = " " }, []string{ErrRuleIDEmpty}},
		{"missing name", func(r *ir.ArtifactRule) { r.Name = "" }, []string{ErrRuleNameEmpty}},
		{"no applicability", func(r *ir.ArtifactRule) { r.ParentRecord = "" }, []string{ErrRuleApplicability}},
		{"related under non-case parent", func(r *ir.ArtifactRule) {
			r.ParentRecord, r.RelatedRecord = ir.TypeAccount, ir.TypeContact
		}, []string{ErrRuleApplicability}},
		{"primary rule on account", func(r *ir.ArtifactRule) { r.ParentRecord = ir.TypeAccount }, []string{ErrPrimaryRuleOnNonCase}},
		{"indicator without condition", func(r *ir.ArtifactRule) { r.ConditionAttribute = "" }, []string{ErrRuleCondition}},
		{"condition without indicator", func(r *ir.ArtifactRule) { r.SuccessIndicator = "" }, []string{ErrRuleCondition}},
		{"housekeeping condition", func(r *ir.ArtifactRule) { r.ConditionAttribute = ir.FieldStatusCode }, []string{ErrHousekeepingCondition}},
		{"bad attribute name", func(r *ir.ArtifactRule) { r.Specifier = "full name" }, []string{ErrInvalidAttributeName}},
		{"lookup without specifier", func(r *ir.ArtifactRule) {
			r.SpecifierLookup, r.Specifier = "customerid", ""
		}, []string{ErrRuleSpecifier}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(&r)
			assert.Equal(t, tt.want, codes(Validate(r)))
		})
	}
}

func TestValidateAllDuplicateIDs(t *testing.T) {
	errs := ValidateAll([]ir.ArtifactRule{validRule(), validRule()})
	assert.Equal(t, []string{ErrDuplicateRule}, codes(errs))
	assert.Equal(t, "[E106] r1.id: rule defined more than once", errs[0].Error())
}

func TestValidationErrorFormatWithLine(t *testing.T) {
	err := ValidationError{RuleID: "r1", Field: "name", Message: "name is required", Code: ErrRuleNameEmpty, Line: 3}
	assert.Equal(t, "[E101] line 3: r1.name: name is required", err.Error())
}
