package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/artifacts/internal/ir"
)

// CompileRule parses a CUE value into an ArtifactRule. The rule id is the
// value's struct label.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rule: "kyc-passport": { ... }`)
//	rule, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."kyc-passport"`)))
//
// CompileRule only decodes; Validate checks the result.
func CompileRule(v cue.Value) (*ir.ArtifactRule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: "rule", Message: "rule must be a struct", Pos: v.Pos()}
	}

	rule := &ir.ArtifactRule{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		// The ID may be quoted in CUE, extract it
		rule.ID = unquote(labels[len(labels)-1].String())
	}

	texts := []struct {
		field string
		dst   *string
	}{
		{"name", &rule.Name},
		{"artifact_type", &rule.ArtifactType},
		{"instructions", &rule.Instructions},
		{"parent_record", &rule.ParentRecord},
		{"related_record", &rule.RelatedRecord},
		{"condition_attribute", &rule.ConditionAttribute},
		{"success_indicator", &rule.SuccessIndicator},
		{"specifier_lookup", &rule.SpecifierLookup},
		{"specifier", &rule.Specifier},
	}
	for _, t := range texts {
		s, err := optionalString(v, t.field)
		if err != nil {
			return nil, err
		}
		*t.dst = s
	}

	mandatory := v.LookupPath(cue.ParsePath("mandatory"))
	if mandatory.Exists() {
		b, err := mandatory.Bool()
		if err != nil {
			return nil, &CompileError{Field: "mandatory", Message: "must be a bool", Pos: mandatory.Pos()}
		}
		rule.IsMandatory = b
	}

	if err := rejectUnknownFields(v, knownRuleFields); err != nil {
		return nil, err
	}

	return rule, nil
}

var knownRuleFields = map[string]bool{
	"name":                true,
	"artifact_type":       true,
	"instructions":        true,
	"parent_record":       true,
	"related_record":      true,
	"condition_attribute": true,
	"success_indicator":   true,
	"specifier_lookup":    true,
	"specifier":           true,
	"mandatory":           true,
}

// CompileRules compiles every field of a `rule` struct, in source order.
// All errors are collected.
func CompileRules(v cue.Value) ([]ir.ArtifactRule, []error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		rules []ir.ArtifactRule
		errs  []error
	)
	for iter.Next() {
		rule, err := CompileRule(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, *rule)
	}
	return rules, errs
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a string, got %v", fv.IncompleteKind()),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

func rejectUnknownFields(v cue.Value, known map[string]bool) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if !known[iter.Label()] {
			return &CompileError{
				Field:   iter.Label(),
				Message: "unknown rule field",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}
