package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/artifacts/internal/ir"
)

func TestCompileRuleBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: "kyc-passport": {
			name:                "Passport"
			artifact_type:       "identity"
			instructions:        "Upload both pages"
			parent_record:       "incident"
			related_record:      "account"
			condition_attribute: "verified"
			success_indicator:   "false"
			specifier_lookup:    "primarycontactid"
			specifier:           "fullname"
			mandatory:           true
		}
	`)
	require.NoError(t, v.Err())

	rule, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."kyc-passport"`)))
	require.NoError(t, err)

	assert.Equal(t, &ir.ArtifactRule{
		ID:                 "kyc-passport",
		Name:               "Passport",
		ArtifactType:       "identity",
		Instructions:       "Upload both pages",
		ParentRecord:       "incident",
		RelatedRecord:      "account",
		ConditionAttribute: "verified",
		SuccessIndicator:   "false",
		IsMandatory:        true,
		SpecifierLookup:    "primarycontactid",
		Specifier:          "fullname",
	}, rule)
}

func TestCompileRuleQuotedLiteralSpecifier(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: static: {
			name:          "Signed form"
			parent_record: "incident"
			specifier:     "\"Applicant\""
		}
	`)
	require.NoError(t, v.Err())

	rule, err := CompileRule(v.LookupPath(cue.ParsePath("rule.static")))
	require.NoError(t, err)
	assert.Equal(t, "static", rule.ID)
	assert.Equal(t, `"Applicant"`, rule.Specifier)
	assert.True(t, rule.IsStatic())
	assert.True(t, rule.IsPrimary())
}

func TestCompileRuleWrongFieldType(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: bad: {
			name:              "x"
			success_indicator: 2
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileRule(v.LookupPath(cue.ParsePath("rule.bad")))

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "success_indicator", ce.Field)
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, 4, ce.Pos.Line())
}

func TestCompileRuleUnknownField(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: bad: {
			name:      "x"
			condition: "priority"
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileRule(v.LookupPath(cue.ParsePath("rule.bad")))

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "condition", ce.Field)
	assert.Contains(t, ce.Message, "unknown rule field")
}

func TestCompileRuleNotStruct(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`rule: bad: "oops"`)
	require.NoError(t, v.Err())

	_, err := CompileRule(v.LookupPath(cue.ParsePath("rule.bad")))
	assert.Error(t, err)
}

func TestCompileRuleValueError(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: bad: {
			name: "a"
			name: "b"
		}
	`)

	_, err := CompileRule(v.LookupPath(cue.ParsePath("rule.bad")))
	assert.Error(t, err)
}

func TestCompileRulesCollectsAllErrors(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: {
			one:   { name: "One", parent_record: "incident" }
			two:   { name: 2 }
			three: { name: "Three", related_record: "contact", bogus: true }
			four:  { name: "Four", related_record: "account" }
		}
	`)
	require.NoError(t, v.Err())

	rules, errs := CompileRules(v.LookupPath(cue.ParsePath("rule")))

	assert.Len(t, errs, 2)
	require.Len(t, rules, 2)
	assert.Equal(t, "one", rules[0].ID)
	assert.Equal(t, "four", rules[1].ID)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "name", Message: "must be a string"}
	assert.Equal(t, "name: must be a string", err.Error())
}
