package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
	"github.com/roach88/artifacts/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the store and returns
// one message per failure.
func EvaluateAssertions(ctx context.Context, st *store.Store, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertArtifactCount:
			err = assertArtifactCount(ctx, st, a)
		case AssertArtifact:
			err = assertArtifact(ctx, st, a)
		case AssertNoArtifact:
			err = assertNoArtifact(ctx, st, a)
		case AssertRecord:
			err = assertRecord(ctx, st, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// artifactsFor returns the artifacts referencing a.Target through a.Lookup,
// narrowed to a.Rule when set.
func artifactsFor(ctx context.Context, st *store.Store, a Assertion) ([]ir.Record, error) {
	filter := queryir.Predicate(queryir.RefEq(a.Lookup, a.Target))
	if a.Rule != "" {
		filter = queryir.All(filter, queryir.RefEq(ir.FieldArtifactRule, a.Rule))
	}
	return st.Query(ctx, queryir.Select{
		Type:    ir.TypeArtifact,
		Filter:  filter,
		OrderBy: queryir.Earliest(),
	})
}

func assertArtifactCount(ctx context.Context, st *store.Store, a Assertion) error {
	arts, err := artifactsFor(ctx, st, a)
	if err != nil {
		return err
	}
	if len(arts) != a.Count {
		return &AssertionError{
			Type:     AssertArtifactCount,
			Expected: fmt.Sprintf("%d artifact(s) with %s = %s", a.Count, a.Lookup, a.Target),
			Actual:   fmt.Sprintf("%d artifact(s): %s", len(arts), recordIDs(arts)),
		}
	}
	return nil
}

func assertArtifact(ctx context.Context, st *store.Store, a Assertion) error {
	arts, err := artifactsFor(ctx, st, a)
	if err != nil {
		return err
	}
	if len(arts) != 1 {
		return &AssertionError{
			Type:     AssertArtifact,
			Expected: fmt.Sprintf("one artifact for rule %s with %s = %s", a.Rule, a.Lookup, a.Target),
			Actual:   fmt.Sprintf("%d artifact(s): %s", len(arts), recordIDs(arts)),
		}
	}
	return matchAttributes(AssertArtifact, arts[0], a.Expect)
}

func assertNoArtifact(ctx context.Context, st *store.Store, a Assertion) error {
	arts, err := artifactsFor(ctx, st, a)
	if err != nil {
		return err
	}
	if len(arts) > 0 {
		return &AssertionError{
			Type:     AssertNoArtifact,
			Expected: fmt.Sprintf("no artifact for rule %s with %s = %s", a.Rule, a.Lookup, a.Target),
			Actual:   fmt.Sprintf("found %s", recordIDs(arts)),
		}
	}
	return nil
}

func assertRecord(ctx context.Context, st *store.Store, a Assertion) error {
	rec, err := st.Retrieve(ctx, a.RecordType, a.RecordID)
	if err != nil {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record %s/%s", a.RecordType, a.RecordID),
			Actual:   err.Error(),
		}
	}
	return matchAttributes(AssertRecord, rec, a.Expect)
}

// matchAttributes checks that rec carries every expected attribute.
// An expected null matches an absent attribute.
func matchAttributes(kind string, rec ir.Record, expect map[string]any) error {
	want, err := convertAttributes(expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}

	var mismatches []string
	for _, name := range want.SortedKeys() {
		w := want[name]
		got, _ := rec.Attributes.Get(name)
		if ir.IsNull(w) && !rec.Attributes.Has(name) {
			continue
		}
		if !ir.Equal(got, w) {
			mismatches = append(mismatches, fmt.Sprintf("%s = %s, want %s", name, ir.Format(got), ir.Format(w)))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%s/%s to match %d attribute(s)", rec.Type, rec.ID, len(want)),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

func recordIDs(recs []ir.Record) string {
	if len(recs) == 0 {
		return "none"
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return strings.Join(ids, ", ")
}
