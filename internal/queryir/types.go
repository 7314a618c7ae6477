package queryir

import "github.com/roach88/artifacts/internal/ir"

// Predicate is a sealed interface for filter conditions.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads records of one type.
type Select struct {
	Type    string    // Record type (required)
	Filter  Predicate // nil = every record of Type
	Fields  []string  // Attribute projection; empty = all attributes
	OrderBy []Order   // Applied before the implicit id tiebreaker
	Limit   int       // 0 = unlimited
}

// Order sorts results by a record column.
type Order struct {
	Column Column
	Desc   bool
}

// Column names a sortable record column. Attributes are not sortable.
type Column string

const (
	ColumnCreatedOn Column = "created_on"
	ColumnID        Column = "id"
)

// Equals matches records whose attribute equals a scalar value.
// Value must be Text, Option, Bool or Int; use RefEquals for references and
// IsNull for absence.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// RefEquals matches records whose reference attribute points at ID.
type RefEquals struct {
	Field string
	ID    string
}

func (RefEquals) predicateNode() {}

// IsNull matches records where the attribute is absent or null.
type IsNull struct {
	Field string
}

func (IsNull) predicateNode() {}

// And matches when every predicate matches. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Eq is shorthand for Equals.
func Eq(field string, v ir.Value) Equals {
	return Equals{Field: field, Value: v}
}

// RefEq is shorthand for RefEquals.
func RefEq(field, id string) RefEquals {
	return RefEquals{Field: field, ID: id}
}

// All is shorthand for And.
func All(preds ...Predicate) And {
	return And{Predicates: preds}
}

// Earliest orders by creation time, oldest first.
func Earliest() []Order {
	return []Order{{Column: ColumnCreatedOn}}
}
