package engine

import (
	"context"
	"fmt"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// RuleRepository reads artifact rules from the record store.
type RuleRepository struct {
	store RecordStore
}

// NewRuleRepository creates a RuleRepository over s.
func NewRuleRepository(s RecordStore) *RuleRepository {
	return &RuleRepository{store: s}
}

// RulesFor returns the rules applicable to recordType.
//
// Primary rules are those with no related record whose parent record is
// recordType; related rules are those whose related record is recordType.
// Rules come back in creation order (ties by id), so enumeration is
// repeatable.
//
// Store failures are returned unchanged; a rule that cannot be decoded fails
// the whole call so no partial rule set is ever evaluated.
func (r *RuleRepository) RulesFor(ctx context.Context, primary bool, recordType string) ([]ir.ArtifactRule, error) {
	recs, err := r.store.Query(ctx, RulesQuery(primary, recordType))
	if err != nil {
		return nil, err
	}

	rules := make([]ir.ArtifactRule, 0, len(recs))
	for _, rec := range recs {
		rule, err := ir.RuleFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// RulesQuery builds the store query behind RulesFor.
func RulesQuery(primary bool, recordType string) queryir.Select {
	var filter queryir.Predicate
	if primary {
		filter = queryir.All(
			queryir.Eq(ir.FieldRuleParentRecord, ir.Text(recordType)),
			queryir.IsNull{Field: ir.FieldRuleRelatedRecord},
		)
	} else {
		filter = queryir.Eq(ir.FieldRuleRelatedRecord, ir.Text(recordType))
	}
	return queryir.Select{
		Type:    ir.TypeArtifactRule,
		Filter:  filter,
		OrderBy: queryir.Earliest(),
	}
}

// IsPrimaryType reports whether recordType is evaluated against primary
// rules. Only the case type is; every other type, accounts and contacts
// included, uses related rules.
func IsPrimaryType(recordType string) bool {
	return recordType == ir.TypeCase
}
