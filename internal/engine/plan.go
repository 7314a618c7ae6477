package engine

import (
	"github.com/roach88/artifacts/internal/ir"
)

// Plan is the set of decisions of one invocation, built before anything is
// written.
type Plan struct {
	// Creates are complete artifact records, in rule order.
	Creates []ir.Record `json:"creates,omitempty"`

	// Updates are partial artifact updates carrying only changed fields.
	Updates []ir.Request `json:"updates,omitempty"`

	// Deletes remove existing artifacts of non-applicable rules.
	Deletes []ir.Request `json:"deletes,omitempty"`

	// NonApplicable lists rule ids whose condition stopped matching, in the
	// order they were evaluated. A rule may be listed without having any
	// artifact to delete.
	NonApplicable []string `json:"non_applicable,omitempty"`

	// Skipped is set when the record type lacks lookup configuration and
	// the invocation is a no-op.
	Skipped bool `json:"skipped,omitempty"`
}

// Empty reports whether applying the plan would write nothing.
func (p Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// finalize turns the non-applicable set into deletes and drops staged
// updates for artifacts that are about to be deleted.
func (p *Plan) finalize(existing []ir.Artifact) {
	if len(p.NonApplicable) == 0 {
		return
	}
	dead := make(map[string]bool, len(p.NonApplicable))
	for _, id := range p.NonApplicable {
		dead[id] = true
	}

	doomed := make(map[string]bool)
	for _, art := range existing {
		if dead[art.RuleID] {
			doomed[art.ID] = true
			p.Deletes = append(p.Deletes, ir.DeleteRequest(ir.TypeArtifact, art.ID))
		}
	}

	kept := p.Updates[:0]
	for _, u := range p.Updates {
		if !doomed[u.Record.ID] {
			kept = append(kept, u)
		}
	}
	p.Updates = kept
	if len(p.Updates) == 0 {
		p.Updates = nil
	}
}

// newArtifact builds the artifact record a rule requires for the target.
func newArtifact(rule ir.ArtifactRule, target ir.Record, lookupField string, id Identity, association *string) ir.Record {
	attrs := ir.Attributes{
		ir.FieldArtifactName:         ir.Text(rule.Name),
		ir.FieldArtifactRule:         ir.NewRef(ir.TypeArtifactRule, rule.ID),
		lookupField:                  ir.NewRef(target.Type, target.ID),
		ir.FieldArtifactReviewStatus: ir.ReviewStatusPendingReview,
	}
	if rule.ArtifactType != "" {
		attrs[ir.FieldArtifactType] = ir.Text(rule.ArtifactType)
	}
	if rule.Instructions != "" {
		attrs[ir.FieldArtifactInstructions] = ir.Text(rule.Instructions)
	}
	if id.AccountID != "" {
		attrs[ir.FieldArtifactAccount] = ir.NewRef(ir.TypeAccount, id.AccountID)
	}
	if id.ContactID != "" {
		attrs[ir.FieldArtifactContact] = ir.NewRef(ir.TypeContact, id.ContactID)
	}
	if id.CaseID != "" {
		attrs[ir.FieldArtifactCase] = ir.NewRef(ir.TypeCase, id.CaseID)
	}
	if association != nil {
		attrs[ir.FieldArtifactAssociation] = ir.Text(*association)
	}
	return ir.Record{Type: ir.TypeArtifact, Attributes: attrs}
}

// artifactPatch returns the fields of art that differ from the recomputed
// association and resolved identity. Links are only ever set, never
// cleared: an unknown identity leaves the stored link alone.
func artifactPatch(art ir.Artifact, association *string, id Identity) ir.Attributes {
	patch := ir.Attributes{}
	if !sameAssociation(art.Association, association) {
		if association == nil {
			patch[ir.FieldArtifactAssociation] = ir.Null{}
		} else {
			patch[ir.FieldArtifactAssociation] = ir.Text(*association)
		}
	}

	links := []struct {
		field, recordType, stored, resolved string
	}{
		{ir.FieldArtifactAccount, ir.TypeAccount, art.AccountID, id.AccountID},
		{ir.FieldArtifactContact, ir.TypeContact, art.ContactID, id.ContactID},
		{ir.FieldArtifactCase, ir.TypeCase, art.CaseID, id.CaseID},
	}
	for _, l := range links {
		if l.resolved != "" && l.stored != l.resolved {
			patch[l.field] = ir.NewRef(l.recordType, l.resolved)
		}
	}
	return patch
}

func sameAssociation(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
