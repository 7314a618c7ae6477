package queryir

import (
	"fmt"
	"regexp"

	"github.com/roach88/artifacts/internal/ir"
)

// identPattern restricts type and attribute names to plain identifiers.
// Backends embed attribute names in JSON paths, so nothing else is allowed.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether name is usable as a record type or attribute name.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// Validate checks a Select before it reaches a backend.
//
// Validate is a pure function with no side effects.
func Validate(q Select) error {
	if !ValidIdent(q.Type) {
		return fmt.Errorf("invalid record type %q", q.Type)
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	for _, f := range q.Fields {
		if !ValidIdent(f) {
			return fmt.Errorf("invalid field %q", f)
		}
	}
	for _, o := range q.OrderBy {
		if o.Column != ColumnCreatedOn && o.Column != ColumnID {
			return fmt.Errorf("unsupported order column %q", o.Column)
		}
	}
	if q.Filter == nil {
		return nil
	}
	return validatePredicate(q.Filter)
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case Equals:
		if !ValidIdent(pred.Field) {
			return fmt.Errorf("invalid field %q", pred.Field)
		}
		switch pred.Value.(type) {
		case ir.Text, ir.Option, ir.Bool, ir.Int:
			return nil
		default:
			return fmt.Errorf("equals on %q: unsupported value kind %s", pred.Field, ir.KindOf(pred.Value))
		}
	case RefEquals:
		if !ValidIdent(pred.Field) {
			return fmt.Errorf("invalid field %q", pred.Field)
		}
		if pred.ID == "" {
			return fmt.Errorf("ref equals on %q: empty id", pred.Field)
		}
		return nil
	case IsNull:
		if !ValidIdent(pred.Field) {
			return fmt.Errorf("invalid field %q", pred.Field)
		}
		return nil
	case And:
		for i, inner := range pred.Predicates {
			if err := validatePredicate(inner); err != nil {
				return fmt.Errorf("and[%d]: %w", i, err)
			}
		}
		return nil
	case nil:
		return fmt.Errorf("nil predicate")
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}
