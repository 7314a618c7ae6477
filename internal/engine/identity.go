package engine

import (
	"context"
	"fmt"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// Identity holds the party and case ids an artifact is linked to.
// An empty field means "unknown": never set, never cleared.
type Identity struct {
	AccountID string `json:"account_id,omitempty"`
	ContactID string `json:"contact_id,omitempty"`
	CaseID    string `json:"case_id,omitempty"`
}

// identityVariant resolves identities for one family of record types.
type identityVariant interface {
	// artifactLookup returns the artifact attribute that references the
	// target record, or ErrLookupNotConfigured.
	artifactLookup(t Trigger) (string, error)

	// resolve computes the identity of rec.
	resolve(ctx context.Context, rec ir.Record, t Trigger) (Identity, error)
}

// IdentityResolver dispatches on record type to the case, account, contact
// or generic related-record variant.
type IdentityResolver struct {
	variants map[string]identityVariant
	related  identityVariant
}

// NewIdentityResolver creates an IdentityResolver reading from s.
func NewIdentityResolver(s RecordStore) *IdentityResolver {
	return &IdentityResolver{
		variants: map[string]identityVariant{
			ir.TypeCase:    caseIdentity{},
			ir.TypeAccount: accountIdentity{store: s},
			ir.TypeContact: contactIdentity{store: s},
		},
		related: relatedIdentity{store: s},
	}
}

func (r *IdentityResolver) variant(recordType string) identityVariant {
	if v, ok := r.variants[recordType]; ok {
		return v
	}
	return r.related
}

// ArtifactLookup returns the artifact attribute that references records of
// the trigger's type. Case, account and contact use fixed fields; generic
// types need both lookup names on the trigger.
func (r *IdentityResolver) ArtifactLookup(t Trigger) (string, error) {
	return r.variant(t.RecordType).artifactLookup(t)
}

// Resolve computes the identity of rec, which must be of the trigger's type.
func (r *IdentityResolver) Resolve(ctx context.Context, rec ir.Record, t Trigger) (Identity, error) {
	return r.variant(rec.Type).resolve(ctx, rec, t)
}

type caseIdentity struct{}

func (caseIdentity) artifactLookup(Trigger) (string, error) {
	return ir.FieldArtifactCase, nil
}

func (caseIdentity) resolve(_ context.Context, rec ir.Record, _ Trigger) (Identity, error) {
	id := Identity{CaseID: rec.ID}
	var err error
	if id.AccountID, err = rec.Attributes.RefID(ir.FieldCaseCustomer); err != nil {
		return Identity{}, fmt.Errorf("case %s: %w", rec.ID, err)
	}
	if id.ContactID, err = rec.Attributes.RefID(ir.FieldCasePrimaryContact); err != nil {
		return Identity{}, fmt.Errorf("case %s: %w", rec.ID, err)
	}
	return id, nil
}

type accountIdentity struct {
	store RecordStore
}

func (accountIdentity) artifactLookup(Trigger) (string, error) {
	return ir.FieldArtifactAccount, nil
}

func (a accountIdentity) resolve(ctx context.Context, rec ir.Record, _ Trigger) (Identity, error) {
	id := Identity{AccountID: rec.ID}
	var err error
	if id.ContactID, err = rec.Attributes.RefID(ir.FieldAccountPrimaryContact); err != nil {
		return Identity{}, fmt.Errorf("account %s: %w", rec.ID, err)
	}
	if id.CaseID, err = earliestCase(ctx, a.store, ir.FieldCaseCustomer, rec.ID); err != nil {
		return Identity{}, err
	}
	return id, nil
}

type contactIdentity struct {
	store RecordStore
}

func (contactIdentity) artifactLookup(Trigger) (string, error) {
	return ir.FieldArtifactContact, nil
}

func (c contactIdentity) resolve(ctx context.Context, rec ir.Record, _ Trigger) (Identity, error) {
	id := Identity{ContactID: rec.ID}
	var err error
	if id.AccountID, err = rec.Attributes.RefID(ir.FieldContactParentCustomer); err != nil {
		return Identity{}, fmt.Errorf("contact %s: %w", rec.ID, err)
	}
	if id.CaseID, err = earliestCase(ctx, c.store, ir.FieldCasePrimaryContact, rec.ID); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// relatedIdentity handles configured child record types. The case comes
// from the caller-named lookup; account and contact come from that case.
type relatedIdentity struct {
	store RecordStore
}

func (relatedIdentity) artifactLookup(t Trigger) (string, error) {
	if t.CaseLookupField == "" || t.ArtifactLookupField == "" {
		return "", ErrLookupNotConfigured
	}
	return t.ArtifactLookupField, nil
}

func (r relatedIdentity) resolve(ctx context.Context, rec ir.Record, t Trigger) (Identity, error) {
	if t.CaseLookupField == "" {
		return Identity{}, ErrLookupNotConfigured
	}
	caseID, err := rec.Attributes.RefID(t.CaseLookupField)
	if err != nil {
		return Identity{}, fmt.Errorf("%s %s: %w", rec.Type, rec.ID, err)
	}
	if caseID == "" {
		return Identity{}, nil
	}

	parent, err := r.store.Retrieve(ctx, ir.TypeCase, caseID, ir.FieldCaseCustomer, ir.FieldCasePrimaryContact)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{CaseID: caseID}
	if id.AccountID, err = parent.Attributes.RefID(ir.FieldCaseCustomer); err != nil {
		return Identity{}, fmt.Errorf("case %s: %w", caseID, err)
	}
	if id.ContactID, err = parent.Attributes.RefID(ir.FieldCasePrimaryContact); err != nil {
		return Identity{}, fmt.Errorf("case %s: %w", caseID, err)
	}
	return id, nil
}

// earliestCase returns the id of the first-created case whose field
// references partyID, or "" when there is none.
func earliestCase(ctx context.Context, s RecordStore, field, partyID string) (string, error) {
	cases, err := s.Query(ctx, queryir.Select{
		Type:    ir.TypeCase,
		Filter:  queryir.RefEq(field, partyID),
		Fields:  []string{field},
		OrderBy: queryir.Earliest(),
		Limit:   1,
	})
	if err != nil {
		return "", err
	}
	if len(cases) == 0 {
		return "", nil
	}
	return cases[0].ID, nil
}
