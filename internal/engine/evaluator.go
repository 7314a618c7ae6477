package engine

import (
	"context"
	"strconv"

	"github.com/roach88/artifacts/internal/ir"
)

// Observation is the comparable form of one condition attribute value.
type Observation struct {
	Kind  ir.Kind
	Code  int64  // option code; Kind == KindOption only
	Label string // resolved option label; set only when requested
	Text  string // text form for text, int and bool values
}

// Outcome is the result of evaluating one rule against an observation.
type Outcome int

const (
	// OutcomeSkip means the value cannot drive the rule (reference or null);
	// the rule contributes nothing for this event.
	OutcomeSkip Outcome = iota
	OutcomeMatch
	OutcomeNoMatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeNoMatch:
		return "no-match"
	default:
		return "skip"
	}
}

// Evaluate compares rule's success indicator with obs.
//
// Option values compare numerically when the indicator parses as an integer
// and against the resolved label otherwise. Bool values compare as
// "true"/"false"; text and int values compare by their text form.
//
// Evaluate is a pure function with no side effects.
func Evaluate(rule ir.ArtifactRule, obs Observation) Outcome {
	var matched bool
	switch obs.Kind {
	case ir.KindOption:
		if n, ok := parseIndicator(rule.SuccessIndicator); ok {
			matched = obs.Code == n
		} else {
			matched = obs.Label == rule.SuccessIndicator
		}
	case ir.KindText, ir.KindInt, ir.KindBool:
		matched = obs.Text == rule.SuccessIndicator
	default:
		return OutcomeSkip
	}
	if matched {
		return OutcomeMatch
	}
	return OutcomeNoMatch
}

// Matches reports whether rule is satisfied by obs.
func Matches(rule ir.ArtifactRule, obs Observation) bool {
	return Evaluate(rule, obs) == OutcomeMatch
}

func parseIndicator(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// LabelResolver resolves option codes to labels.
type LabelResolver interface {
	ResolveOptionLabel(ctx context.Context, recordType, attribute string, code int64) (string, error)
}

type labelKey struct {
	recordType string
	attribute  string
	code       int64
}

// Evaluator builds observations for one invocation. Option labels are
// memoized for the lifetime of the Evaluator only.
type Evaluator struct {
	labels LabelResolver
	memo   map[labelKey]string
}

// NewEvaluator creates an Evaluator resolving labels through labels.
func NewEvaluator(labels LabelResolver) *Evaluator {
	return &Evaluator{labels: labels, memo: make(map[labelKey]string)}
}

// Observe converts v, the value of recordType.attribute, into an
// Observation. Option values carry both their code and their label; a code
// without a label fails with a *store.MetadataError.
func (e *Evaluator) Observe(ctx context.Context, recordType, attribute string, v ir.Value) (Observation, error) {
	obs := Observation{Kind: ir.KindOf(v)}
	switch val := v.(type) {
	case ir.Option:
		obs.Code = int64(val)
		label, err := e.label(ctx, recordType, attribute, obs.Code)
		if err != nil {
			return Observation{}, err
		}
		obs.Label = label
	case ir.Text, ir.Int, ir.Bool:
		obs.Text = ir.Format(val)
	}
	return obs, nil
}

func (e *Evaluator) label(ctx context.Context, recordType, attribute string, code int64) (string, error) {
	key := labelKey{recordType, attribute, code}
	if label, ok := e.memo[key]; ok {
		return label, nil
	}
	label, err := e.labels.ResolveOptionLabel(ctx, recordType, attribute, code)
	if err != nil {
		return "", err
	}
	e.memo[key] = label
	return label, nil
}
