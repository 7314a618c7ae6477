package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/artifacts/internal/ir"
)

// AssociationResolver computes the association string of a rule for a
// target record.
type AssociationResolver struct {
	store RecordStore
}

// NewAssociationResolver creates an AssociationResolver reading related
// records from s.
func NewAssociationResolver(s RecordStore) *AssociationResolver {
	return &AssociationResolver{store: s}
}

// AssociationFor returns the association of rule for target, or nil when
// none applies.
//
// Precedence:
//  1. no specifier lookup, specifier set: a quoted literal is returned
//     without its quotes, otherwise the target's text attribute named by
//     the specifier
//  2. specifier lookup set and present on target: the attribute named by
//     the specifier on the referenced record
//  3. otherwise nil
//
// A specifier attribute that holds a non-text value is an error.
func (r *AssociationResolver) AssociationFor(ctx context.Context, rule ir.ArtifactRule, target ir.Record) (*string, error) {
	switch {
	case rule.SpecifierLookup == "" && rule.Specifier != "":
		if lit, ok := QuotedLiteral(rule.Specifier); ok {
			return &lit, nil
		}
		return textAttr(target, rule.Specifier)

	case rule.SpecifierLookup != "" && target.Attributes.Has(rule.SpecifierLookup):
		ref, _, err := target.Attributes.Ref(rule.SpecifierLookup)
		if err != nil {
			return nil, fmt.Errorf("rule %s specifier lookup: %w", rule.ID, err)
		}
		if rule.Specifier == "" {
			return nil, nil
		}
		related, err := r.store.Retrieve(ctx, ref.Type, ref.ID, rule.Specifier)
		if err != nil {
			return nil, err
		}
		return textAttr(related, rule.Specifier)

	default:
		return nil, nil
	}
}

// SpecifierAttribute returns the target attribute whose change requires the
// rule's association to be recomputed: the specifier lookup when set,
// otherwise the specifier unless it is a quoted literal. "" means the
// association never depends on the target.
func SpecifierAttribute(rule ir.ArtifactRule) string {
	if rule.SpecifierLookup != "" {
		return rule.SpecifierLookup
	}
	if _, ok := QuotedLiteral(rule.Specifier); ok {
		return ""
	}
	return rule.Specifier
}

// QuotedLiteral reports whether s starts and ends with a double quote and
// returns it with every double quote removed. A lone `"` is the empty
// literal.
func QuotedLiteral(s string) (string, bool) {
	if !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return "", false
	}
	return strings.ReplaceAll(s, `"`, ""), true
}

func textAttr(rec ir.Record, name string) (*string, error) {
	s, ok, err := rec.Attributes.Text(name)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", rec.Type, rec.ID, err)
	}
	if !ok {
		return nil, nil
	}
	return &s, nil
}
