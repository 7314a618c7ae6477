package ir

// Record types the engine knows by name.
const (
	TypeCase         = "incident"
	TypeAccount      = "account"
	TypeContact      = "contact"
	TypeArtifact     = "artifact"
	TypeArtifactRule = "artifactrule"
	TypeAnnotation   = "annotation"
)

// Attributes on the case record.
const (
	FieldCaseCustomer       = "customerid"
	FieldCasePrimaryContact = "primarycontactid"
)

// Attributes on party records.
const (
	FieldAccountPrimaryContact = "primarycontactid"
	FieldContactParentCustomer = "parentcustomerid"
)

// Housekeeping attributes never drive artifact rules.
const (
	FieldStateCode  = "statecode"
	FieldStatusCode = "statuscode"
)

// Attributes on artifactrule records.
const (
	FieldRuleName               = "name"
	FieldRuleArtifactType       = "artifacttype"
	FieldRuleInstructions       = "instructions"
	FieldRuleParentRecord       = "parentrecord"
	FieldRuleRelatedRecord      = "relatedrecord"
	FieldRuleConditionAttribute = "conditionattribute"
	FieldRuleSuccessIndicator   = "successindicator"
	FieldRuleIsMandatory        = "ismandatory"
	FieldRuleSpecifierLookup    = "specifierlookup"
	FieldRuleSpecifier          = "specifier"
)

// Attributes on artifact records. The target lookup field is not listed:
// it is configured per record type.
const (
	FieldArtifactName         = "name"
	FieldArtifactRule         = "artifactruleid"
	FieldArtifactType         = "artifacttype"
	FieldArtifactInstructions = "instructions"
	FieldArtifactAssociation  = "association"
	FieldArtifactAccount      = "accountid"
	FieldArtifactContact      = "contactid"
	FieldArtifactCase         = "caseid"
	FieldArtifactReviewStatus = "reviewstatus"
	FieldArtifactUpload       = "upload"
	FieldArtifactUploadDate   = "uploaddate"
)

// Attributes on annotation records.
const (
	FieldAnnotationObject = "objectid"
	FieldAnnotationText   = "notetext"
)

// Option codes written by the engine and hooks.
const (
	ReviewStatusPendingReview Option = 100000002
	UploadStatusUploaded      Option = 1
)

// IsHousekeeping reports whether name is a state/status attribute.
func IsHousekeeping(name string) bool {
	return name == FieldStateCode || name == FieldStatusCode
}
