package ir

import (
	"errors"
	"fmt"
	"slices"
)

// ErrTypeMismatch is returned by the typed Attributes accessors when the
// stored variant differs from the one requested.
var ErrTypeMismatch = errors.New("attribute type mismatch")

// Attributes maps attribute names to typed values.
//
// A missing key and a Null value are both "absent" for the typed accessors.
// Use Get to tell them apart (a changed-attribute delta carries explicit Null
// when a field was cleared).
type Attributes map[string]Value

// Get returns the raw value for name and whether the key is present.
func (a Attributes) Get(name string) (Value, bool) {
	v, ok := a[name]
	return v, ok
}

// Has reports whether name is present with a non-null value.
func (a Attributes) Has(name string) bool {
	v, ok := a[name]
	return ok && !IsNull(v)
}

// Text returns the text value of name.
// ok is false when the attribute is absent or null.
func (a Attributes) Text(name string) (s string, ok bool, err error) {
	v, present := a.lookup(name)
	if !present {
		return "", false, nil
	}
	t, isText := v.(Text)
	if !isText {
		return "", false, mismatch(name, KindText, v)
	}
	return string(t), true, nil
}

// Option returns the option code of name.
func (a Attributes) Option(name string) (code int64, ok bool, err error) {
	v, present := a.lookup(name)
	if !present {
		return 0, false, nil
	}
	o, isOption := v.(Option)
	if !isOption {
		return 0, false, mismatch(name, KindOption, v)
	}
	return int64(o), true, nil
}

// Bool returns the boolean value of name.
func (a Attributes) Bool(name string) (b bool, ok bool, err error) {
	v, present := a.lookup(name)
	if !present {
		return false, false, nil
	}
	bv, isBool := v.(Bool)
	if !isBool {
		return false, false, mismatch(name, KindBool, v)
	}
	return bool(bv), true, nil
}

// Ref returns the relationship held by name.
func (a Attributes) Ref(name string) (ref Ref, ok bool, err error) {
	v, present := a.lookup(name)
	if !present {
		return Ref{}, false, nil
	}
	r, isRef := v.(Ref)
	if !isRef {
		return Ref{}, false, mismatch(name, KindRef, v)
	}
	return r, true, nil
}

// RefID returns the id referenced by name, or "" when absent.
// A non-reference value is reported as ErrTypeMismatch.
func (a Attributes) RefID(name string) (string, error) {
	r, ok, err := a.Ref(name)
	if err != nil || !ok {
		return "", err
	}
	return r.ID, nil
}

// SortedKeys returns attribute names in byte order for deterministic iteration.
func (a Attributes) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a shallow copy. Values are immutable so this is a full copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Project returns only the named attributes. Names missing from a are
// omitted rather than set to Null.
func (a Attributes) Project(names ...string) Attributes {
	out := make(Attributes, len(names))
	for _, n := range names {
		if v, ok := a[n]; ok {
			out[n] = v
		}
	}
	return out
}

// Merge returns a copy of a overlaid with every key in patch.
// Null values in patch are kept as explicit Null.
func (a Attributes) Merge(patch Attributes) Attributes {
	out := a.Clone()
	for k, v := range patch {
		if v == nil {
			v = Null{}
		}
		out[k] = v
	}
	return out
}

func (a Attributes) lookup(name string) (Value, bool) {
	v, ok := a[name]
	if !ok || IsNull(v) {
		return nil, false
	}
	return v, true
}

func mismatch(name string, want Kind, got Value) error {
	return fmt.Errorf("%w: %q is %s, want %s", ErrTypeMismatch, name, KindOf(got), want)
}
