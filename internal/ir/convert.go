package ir

import "fmt"

// RuleFromRecord decodes an artifactrule record.
func RuleFromRecord(rec Record) (ArtifactRule, error) {
	if rec.Type != TypeArtifactRule {
		return ArtifactRule{}, fmt.Errorf("record %s/%s is not an %s", rec.Type, rec.ID, TypeArtifactRule)
	}

	rule := ArtifactRule{ID: rec.ID}
	texts := []struct {
		field string
		dst   *string
	}{
		{FieldRuleName, &rule.Name},
		{FieldRuleArtifactType, &rule.ArtifactType},
		{FieldRuleInstructions, &rule.Instructions},
		{FieldRuleParentRecord, &rule.ParentRecord},
		{FieldRuleRelatedRecord, &rule.RelatedRecord},
		{FieldRuleConditionAttribute, &rule.ConditionAttribute},
		{FieldRuleSuccessIndicator, &rule.SuccessIndicator},
		{FieldRuleSpecifierLookup, &rule.SpecifierLookup},
		{FieldRuleSpecifier, &rule.Specifier},
	}
	for _, t := range texts {
		s, _, err := rec.Attributes.Text(t.field)
		if err != nil {
			return ArtifactRule{}, fmt.Errorf("rule %s: %w", rec.ID, err)
		}
		*t.dst = s
	}

	mandatory, _, err := rec.Attributes.Bool(FieldRuleIsMandatory)
	if err != nil {
		return ArtifactRule{}, fmt.Errorf("rule %s: %w", rec.ID, err)
	}
	rule.IsMandatory = mandatory

	return rule, nil
}

// Record encodes the rule as an artifactrule record. Empty optional fields
// are left out so the store keeps them null.
func (r ArtifactRule) Record() Record {
	attrs := Attributes{
		FieldRuleName:        Text(r.Name),
		FieldRuleIsMandatory: Bool(r.IsMandatory),
	}
	optional := map[string]string{
		FieldRuleArtifactType:       r.ArtifactType,
		FieldRuleInstructions:       r.Instructions,
		FieldRuleParentRecord:       r.ParentRecord,
		FieldRuleRelatedRecord:      r.RelatedRecord,
		FieldRuleConditionAttribute: r.ConditionAttribute,
		FieldRuleSuccessIndicator:   r.SuccessIndicator,
		FieldRuleSpecifierLookup:    r.SpecifierLookup,
		FieldRuleSpecifier:          r.Specifier,
	}
	for field, v := range optional {
		if v != "" {
			attrs[field] = Text(v)
		}
	}
	return Record{Type: TypeArtifactRule, ID: r.ID, Attributes: attrs}
}

// ArtifactFromRecord decodes the reconciliation-relevant fields of an
// artifact record.
func ArtifactFromRecord(rec Record) (Artifact, error) {
	if rec.Type != TypeArtifact {
		return Artifact{}, fmt.Errorf("record %s/%s is not an %s", rec.Type, rec.ID, TypeArtifact)
	}
	a := rec.Attributes
	art := Artifact{ID: rec.ID}

	var err error
	if art.RuleID, err = a.RefID(FieldArtifactRule); err != nil {
		return Artifact{}, fmt.Errorf("artifact %s: %w", rec.ID, err)
	}
	if art.AccountID, err = a.RefID(FieldArtifactAccount); err != nil {
		return Artifact{}, fmt.Errorf("artifact %s: %w", rec.ID, err)
	}
	if art.ContactID, err = a.RefID(FieldArtifactContact); err != nil {
		return Artifact{}, fmt.Errorf("artifact %s: %w", rec.ID, err)
	}
	if art.CaseID, err = a.RefID(FieldArtifactCase); err != nil {
		return Artifact{}, fmt.Errorf("artifact %s: %w", rec.ID, err)
	}

	assoc, ok, err := a.Text(FieldArtifactAssociation)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact %s: %w", rec.ID, err)
	}
	if ok {
		art.Association = &assoc
	}

	status, _, err := a.Option(FieldArtifactReviewStatus)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact %s: %w", rec.ID, err)
	}
	art.ReviewStatus = status

	return art, nil
}
