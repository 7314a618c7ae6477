package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// evalContext is everything one invocation knows about its target. It is
// built from the store on every invocation and never shared.
type evalContext struct {
	trigger   Trigger
	lookup    string // artifact attribute referencing the target
	target    ir.Record
	identity  Identity
	rules     []ir.ArtifactRule
	existing  []ir.Artifact
	evaluator *Evaluator
}

// existingFor returns the existing artifacts created by ruleID.
func (ec *evalContext) existingFor(ruleID string) []ir.Artifact {
	var out []ir.Artifact
	for _, art := range ec.existing {
		if art.RuleID == ruleID {
			out = append(out, art)
		}
	}
	return out
}

// load builds the evaluation context. It returns ErrLookupNotConfigured
// before touching the store when the record type lacks configuration.
func (e *Engine) load(ctx context.Context, t Trigger) (*evalContext, error) {
	lookup, err := e.identities.ArtifactLookup(t)
	if err != nil {
		return nil, err
	}

	target, err := e.store.Retrieve(ctx, t.RecordType, t.RecordID)
	if err != nil {
		return nil, err
	}

	identity, err := e.identities.Resolve(ctx, target, t)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	rules, err := e.rules.RulesFor(ctx, IsPrimaryType(t.RecordType), t.RecordType)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	existing, err := e.existingArtifacts(ctx, lookup, t.RecordID)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	return &evalContext{
		trigger:   t,
		lookup:    lookup,
		target:    target,
		identity:  identity,
		rules:     rules,
		existing:  existing,
		evaluator: NewEvaluator(e.store),
	}, nil
}

func (e *Engine) existingArtifacts(ctx context.Context, lookup, targetID string) ([]ir.Artifact, error) {
	recs, err := e.store.Query(ctx, queryir.Select{
		Type:   ir.TypeArtifact,
		Filter: queryir.RefEq(lookup, targetID),
	})
	if err != nil {
		return nil, err
	}
	out := make([]ir.Artifact, 0, len(recs))
	for _, rec := range recs {
		art, err := ir.ArtifactFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, art)
	}
	return out, nil
}

// planCreate decides the artifacts required by a newly created record.
// Static rules always apply; conditional rules apply when their attribute
// is present and matches. A rule that already has an artifact for the
// target is not created twice.
func (e *Engine) planCreate(ctx context.Context, ec *evalContext) (Plan, error) {
	var plan Plan
	for _, rule := range ec.rules {
		log := e.logger.With("rule", rule.ID, "rule_name", rule.Name)

		if len(ec.existingFor(rule.ID)) > 0 {
			log.Debug("artifact already exists, skipping")
			continue
		}

		if !rule.IsStatic() {
			v, ok := ec.target.Attributes.Get(rule.ConditionAttribute)
			if !ok {
				continue
			}
			outcome, err := e.evaluate(ctx, ec, rule, v)
			if err != nil {
				return Plan{}, err
			}
			log.Debug("rule evaluated", "attribute", rule.ConditionAttribute, "outcome", outcome)
			if outcome != OutcomeMatch {
				continue
			}
		}

		rec, err := e.artifactFor(ctx, ec, rule)
		if err != nil {
			return Plan{}, err
		}
		plan.Creates = append(plan.Creates, rec)
	}
	return plan, nil
}

// planUpdate decides creates, association updates and deletions for a
// change of the attributes in changed.
//
// A rule whose condition attribute changed to a matching value gets an
// artifact if it has none; one that changed to a non-matching value joins
// the non-applicable set and its artifacts are deleted after the pass.
// Independently, a rule whose specifier attribute changed has the
// association and links of its existing artifacts recomputed.
func (e *Engine) planUpdate(ctx context.Context, ec *evalContext, changed ir.Attributes) (Plan, error) {
	var plan Plan
	nonApplicable := make(map[string]bool)

	for _, rule := range ec.rules {
		log := e.logger.With("rule", rule.ID, "rule_name", rule.Name)
		cond := rule.ConditionAttribute

		if v, ok := changed.Get(cond); ok && cond != "" && !ir.IsHousekeeping(cond) && !ir.IsNull(v) {
			outcome, err := e.evaluate(ctx, ec, rule, v)
			if err != nil {
				return Plan{}, err
			}
			log.Debug("rule evaluated", "attribute", cond, "outcome", outcome)

			switch outcome {
			case OutcomeMatch:
				if len(ec.existingFor(rule.ID)) == 0 {
					rec, err := e.artifactFor(ctx, ec, rule)
					if err != nil {
						return Plan{}, err
					}
					plan.Creates = append(plan.Creates, rec)
				}
			case OutcomeNoMatch:
				if !nonApplicable[rule.ID] {
					nonApplicable[rule.ID] = true
					plan.NonApplicable = append(plan.NonApplicable, rule.ID)
				}
			}
		}

		spec := SpecifierAttribute(rule)
		if spec == "" {
			continue
		}
		if _, ok := changed.Get(spec); !ok {
			continue
		}
		existing := ec.existingFor(rule.ID)
		if len(existing) == 0 {
			continue
		}
		association, err := e.associations.AssociationFor(ctx, rule, ec.target)
		if err != nil {
			return Plan{}, fmt.Errorf("association for rule %s: %w", rule.ID, err)
		}
		for _, art := range existing {
			patch := artifactPatch(art, association, ec.identity)
			if len(patch) == 0 {
				continue
			}
			log.Debug("artifact update staged", "artifact", art.ID, "fields", patch.SortedKeys())
			plan.Updates = append(plan.Updates, ir.UpdateRequest(ir.TypeArtifact, art.ID, patch))
		}
	}

	plan.finalize(ec.existing)
	return plan, nil
}

// evaluate observes v for rule's condition attribute on the target type.
func (e *Engine) evaluate(ctx context.Context, ec *evalContext, rule ir.ArtifactRule, v ir.Value) (Outcome, error) {
	obs, err := ec.evaluator.Observe(ctx, ec.target.Type, rule.ConditionAttribute, v)
	if err != nil {
		return OutcomeSkip, err
	}
	return Evaluate(rule, obs), nil
}

func (e *Engine) artifactFor(ctx context.Context, ec *evalContext, rule ir.ArtifactRule) (ir.Record, error) {
	association, err := e.associations.AssociationFor(ctx, rule, ec.target)
	if err != nil {
		return ir.Record{}, fmt.Errorf("association for rule %s: %w", rule.ID, err)
	}
	return newArtifact(rule, ec.target, ec.lookup, ec.identity, association), nil
}

// Applied summarizes what apply wrote.
type Applied struct {
	Created []string `json:"created,omitempty"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
}

// apply executes plan: creates one at a time, then one continue-on-error
// batch of updates, then one continue-on-error batch of deletes.
//
// Failed batch items are logged and counted; only a failing create or a
// batch call that fails as a whole aborts.
func (e *Engine) apply(ctx context.Context, plan Plan) (Applied, error) {
	var applied Applied
	for _, rec := range plan.Creates {
		id, err := e.store.Create(ctx, rec)
		if err != nil {
			return applied, fmt.Errorf("create artifact: %w", err)
		}
		applied.Created = append(applied.Created, id)
	}

	ok, err := e.executeBatch(ctx, plan.Updates)
	if err != nil {
		return applied, fmt.Errorf("update artifacts: %w", err)
	}
	applied.Updated = ok
	applied.Failed += len(plan.Updates) - ok

	ok, err = e.executeBatch(ctx, plan.Deletes)
	if err != nil {
		return applied, fmt.Errorf("delete artifacts: %w", err)
	}
	applied.Deleted = ok
	applied.Failed += len(plan.Deletes) - ok

	return applied, nil
}

// executeBatch runs reqs with continue-on-error and returns how many
// succeeded.
func (e *Engine) executeBatch(ctx context.Context, reqs []ir.Request) (int, error) {
	if len(reqs) == 0 {
		return 0, nil
	}
	result, err := e.store.ExecuteBatch(ctx, reqs, true)
	if err != nil {
		return 0, err
	}
	for _, i := range slices.Sorted(maps.Keys(result.Errors)) {
		req := reqs[i]
		e.logger.Warn("batch item failed",
			"op", req.Op,
			"artifact", req.Record.ID,
			"error", result.Errors[i])
		e.observer.ObserveBatchFailure(req.Op)
	}
	return len(reqs) - result.Failed(), nil
}
