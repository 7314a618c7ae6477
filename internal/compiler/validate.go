package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// Validation error codes (E100-E199)
const (
	ErrRuleNameEmpty         = "E101" // name is required
	ErrRuleApplicability     = "E102" // parent_record / related_record do not name a target
	ErrRuleCondition         = "E103" // condition attribute and success indicator go together
	ErrInvalidAttributeName  = "E104" // not a usable record type or attribute name
	ErrRuleSpecifier         = "E105" // specifier lookup without specifier
	ErrDuplicateRule         = "E106" // rule id defined twice
	ErrHousekeepingCondition = "E107" // statecode/statuscode never drive rules
	ErrPrimaryRuleOnNonCase  = "E108" // primary rule for a type evaluated against related rules
	ErrRuleIDEmpty           = "E109" // rule id is required
)

// ValidationError represents a rule validation error.
type ValidationError struct {
	RuleID  string `json:"rule_id,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s.%s: %s", e.Code, e.Line, e.RuleID, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.RuleID, e.Field, e.Message)
}

// Validate checks one rule. Returns all errors found (does not fail-fast).
func Validate(rule ir.ArtifactRule) []ValidationError {
	var errs []ValidationError
	add := func(field, code, msg string) {
		errs = append(errs, ValidationError{RuleID: rule.ID, Field: field, Code: code, Message: msg})
	}

	if strings.TrimSpace(rule.ID) == "" {
		add("id", ErrRuleIDEmpty, "rule id is required")
	}
	if strings.TrimSpace(rule.Name) == "" {
		add("name", ErrRuleNameEmpty, "name is required")
	}

	switch {
	case rule.ParentRecord == "" && rule.RelatedRecord == "":
		add("parent_record", ErrRuleApplicability, "one of parent_record or related_record is required")
	case rule.ParentRecord != "" && rule.RelatedRecord != "" && rule.ParentRecord != ir.TypeCase:
		add("related_record", ErrRuleApplicability,
			fmt.Sprintf("related rules must name %s as parent_record", ir.TypeCase))
	case rule.RelatedRecord == "" && !engine.IsPrimaryType(rule.ParentRecord):
		add("parent_record", ErrPrimaryRuleOnNonCase,
			fmt.Sprintf("%s records are evaluated against related rules; use related_record", rule.ParentRecord))
	}

	names := []struct{ field, value string }{
		{"parent_record", rule.ParentRecord},
		{"related_record", rule.RelatedRecord},
		{"condition_attribute", rule.ConditionAttribute},
		{"specifier_lookup", rule.SpecifierLookup},
	}
	if _, literal := engine.QuotedLiteral(rule.Specifier); !literal {
		names = append(names, struct{ field, value string }{"specifier", rule.Specifier})
	}
	for _, n := range names {
		if n.value != "" && !queryir.ValidIdent(n.value) {
			add(n.field, ErrInvalidAttributeName, fmt.Sprintf("%q is not a valid name", n.value))
		}
	}

	switch {
	case rule.ConditionAttribute != "" && rule.SuccessIndicator == "":
		add("success_indicator", ErrRuleCondition, "required when condition_attribute is set")
	case rule.ConditionAttribute == "" && rule.SuccessIndicator != "":
		add("condition_attribute", ErrRuleCondition, "success_indicator has no condition_attribute")
	}
	if ir.IsHousekeeping(rule.ConditionAttribute) {
		add("condition_attribute", ErrHousekeepingCondition,
			fmt.Sprintf("%s changes never trigger rules", rule.ConditionAttribute))
	}

	if rule.SpecifierLookup != "" && rule.Specifier == "" {
		add("specifier", ErrRuleSpecifier, "required when specifier_lookup is set")
	}

	return errs
}

// ValidateAll checks each rule and the set as a whole.
func ValidateAll(rules []ir.ArtifactRule) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		errs = append(errs, Validate(rule)...)
		if seen[rule.ID] {
			errs = append(errs, ValidationError{
				RuleID:  rule.ID,
				Field:   "id",
				Code:    ErrDuplicateRule,
				Message: "rule defined more than once",
			})
		}
		seen[rule.ID] = true
	}
	return errs
}
