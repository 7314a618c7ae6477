package ir

import (
	"fmt"
	"strconv"
)

// Value is a sealed interface representing the attribute encodings a record
// can carry. Only Null, Text, Option, Bool, Int and Ref implement it.
//
// Callers never type-assert on Value outside this package; they use the
// typed accessors on Attributes, which fail with ErrTypeMismatch instead.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an attribute that is present on a record but unset.
// Using an explicit type keeps every Value non-nil inside Attributes.
type Null struct{}

func (Null) value() {}

// Text represents a free-text attribute value.
type Text string

func (Text) value() {}

// Option represents an integer-coded enumerated value (option set).
// The human-readable label lives in the store's option metadata.
type Option int64

func (Option) value() {}

// Bool represents a two-state attribute value.
type Bool bool

func (Bool) value() {}

// Int represents a whole-number attribute value.
type Int int64

func (Int) value() {}

// Ref represents a relationship to another record.
type Ref struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (Ref) value() {}

// NewRef creates a Ref to the record of the given type and id.
func NewRef(recordType, id string) Ref {
	return Ref{Type: recordType, ID: id}
}

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindOption
	KindBool
	KindInt
	KindRef
)

// String returns the lowercase tag used in the JSON encoding.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindOption:
		return "option"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindRef:
		return "ref"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindOf returns the variant of v. A nil Value is reported as KindNull.
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil, Null:
		return KindNull
	case Text:
		return KindText
	case Option:
		return KindOption
	case Bool:
		return KindBool
	case Int:
		return KindInt
	case Ref:
		return KindRef
	default:
		panic(fmt.Sprintf("ir: unknown Value type %T", v))
	}
}

// IsNull reports whether v carries no value (nil or Null).
func IsNull(v Value) bool {
	return KindOf(v) == KindNull
}

// Format renders v as display text.
//
// Booleans render as "true"/"false", options and ints as decimal, refs as
// "type:id" and null as the empty string.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case Text:
		return string(val)
	case Option:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Ref:
		return val.Type + ":" + val.ID
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Equal reports whether a and b hold the same variant and value.
// nil and Null compare equal.
func Equal(a, b Value) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	if IsNull(a) {
		return true
	}
	return a == b
}
