package ir

import "time"

// Record is a row of the generic record store: a typed attribute bag keyed
// by (Type, ID).
type Record struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	CreatedOn  time.Time  `json:"created_on"`
	Attributes Attributes `json:"attributes"`
}

// Ref returns a relationship pointing at r.
func (r Record) Ref() Ref {
	return Ref{Type: r.Type, ID: r.ID}
}

// ArtifactRule is an administrator-authored rule describing when an
// artifact is required for a record and how its association is computed.
//
// Exactly one of ParentRecord (primary applicability) and RelatedRecord
// (related applicability) is meaningful for a rule; the compiler enforces it.
type ArtifactRule struct {
	ID                 string `json:"id" yaml:"id"`
	Name               string `json:"name" yaml:"name"`
	ArtifactType       string `json:"artifact_type,omitempty" yaml:"artifact_type,omitempty"`
	Instructions       string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	ParentRecord       string `json:"parent_record,omitempty" yaml:"parent_record,omitempty"`
	RelatedRecord      string `json:"related_record,omitempty" yaml:"related_record,omitempty"`
	ConditionAttribute string `json:"condition_attribute,omitempty" yaml:"condition_attribute,omitempty"` // empty = static rule
	SuccessIndicator   string `json:"success_indicator,omitempty" yaml:"success_indicator,omitempty"`
	IsMandatory        bool   `json:"is_mandatory" yaml:"mandatory,omitempty"`
	SpecifierLookup    string `json:"specifier_lookup,omitempty" yaml:"specifier_lookup,omitempty"`
	Specifier          string `json:"specifier,omitempty" yaml:"specifier,omitempty"`
}

// IsStatic reports whether the rule has no condition attribute and is
// therefore always satisfied on creation.
func (r ArtifactRule) IsStatic() bool {
	return r.ConditionAttribute == ""
}

// IsPrimary reports whether the rule applies to the primary record type.
func (r ArtifactRule) IsPrimary() bool {
	return r.RelatedRecord == ""
}

// Artifact is the reconciled output record: one required document for a
// target record. Empty identifier fields mean "no link".
type Artifact struct {
	ID           string  `json:"id"`
	RuleID       string  `json:"rule_id"`
	Association  *string `json:"association,omitempty"`
	AccountID    string  `json:"account_id,omitempty"`
	ContactID    string  `json:"contact_id,omitempty"`
	CaseID       string  `json:"case_id,omitempty"`
	ReviewStatus int64   `json:"review_status"`
}

// OptionLabel is the display label configured for one option code.
type OptionLabel struct {
	RecordType string `json:"record_type" yaml:"record_type"`
	Attribute  string `json:"attribute" yaml:"attribute"`
	Code       int64  `json:"code" yaml:"code"`
	Label      string `json:"label" yaml:"label"`
}

// RequestOp identifies the kind of a batched store request.
type RequestOp string

const (
	OpCreate RequestOp = "create"
	OpUpdate RequestOp = "update"
	OpDelete RequestOp = "delete"
)

// Request is one entry of a batch submitted to the record store.
// Update requests carry only the attributes being changed.
type Request struct {
	Op     RequestOp `json:"op"`
	Record Record    `json:"record"`
}

// UpdateRequest builds a partial update of recordType/id.
func UpdateRequest(recordType, id string, attrs Attributes) Request {
	return Request{Op: OpUpdate, Record: Record{Type: recordType, ID: id, Attributes: attrs}}
}

// DeleteRequest builds a delete of recordType/id.
func DeleteRequest(recordType, id string) Request {
	return Request{Op: OpDelete, Record: Record{Type: recordType, ID: id}}
}

// BatchResult reports the outcome of each request in a batch, by index.
// Errors has an entry only for requests that failed.
type BatchResult struct {
	Executed int           `json:"executed"`
	Errors   map[int]error `json:"-"`
}

// Failed returns the number of requests that did not apply.
func (b BatchResult) Failed() int {
	return len(b.Errors)
}
