package models

import (
	"time"

	"github.com/google/uuid"
)

// FindingRecord is one non-conformity row as extracted from the sheet. Nil
// pointers are null cells. Columns the dictionary does not know are kept in
// Extra under their trimmed header.
type FindingRecord struct {
	SourceRow int `json:"source_row"`

	RequirementNo          *string `json:"requirement_no"`
	RequirementText        *string `json:"requirement_text"`
	RequirementScore       *string `json:"requirement_score"`
	RequirementExplanation *string `json:"requirement_explanation"`

	CorrectionDescription    *string `json:"correction_description"`
	CorrectionResponsibility *string `json:"correction_responsibility"`
	CorrectionDueDate        *string `json:"correction_due_date"`
	CorrectionStatus         Status  `json:"correction_status"`
	CorrectionEvidence       *string `json:"correction_evidence"`

	CorrectiveActionDescription    *string `json:"corrective_action_description"`
	CorrectiveActionResponsibility *string `json:"corrective_action_responsibility"`
	CorrectiveActionDueDate        *string `json:"corrective_action_due_date"`
	CorrectiveActionStatus         Status  `json:"corrective_action_status"`

	ReleaseResponsibility *string `json:"release_responsibility"`
	ReleaseDate           *string `json:"release_date"`

	Extra map[string]string `json:"extra,omitempty"`
}

// Canonical field names of a FindingRecord.
const (
	FieldRequirementNo                  = "requirement_no"
	FieldRequirementText                = "requirement_text"
	FieldRequirementScore               = "requirement_score"
	FieldRequirementExplanation         = "requirement_explanation"
	FieldCorrectionDescription          = "correction_description"
	FieldCorrectionResponsibility       = "correction_responsibility"
	FieldCorrectionDueDate              = "correction_due_date"
	FieldCorrectionStatus               = "correction_status"
	FieldCorrectionEvidence             = "correction_evidence"
	FieldCorrectiveActionDescription    = "corrective_action_description"
	FieldCorrectiveActionResponsibility = "corrective_action_responsibility"
	FieldCorrectiveActionDueDate        = "corrective_action_due_date"
	FieldCorrectiveActionStatus         = "corrective_action_status"
	FieldReleaseResponsibility          = "release_responsibility"
	FieldReleaseDate                    = "release_date"
)

// TextField returns a pointer to the text field named by a canonical name, or
// nil for status fields and unknown names.
func (r *FindingRecord) TextField(name string) **string {
	switch name {
	case FieldRequirementNo:
		return &r.RequirementNo
	case FieldRequirementText:
		return &r.RequirementText
	case FieldRequirementScore:
		return &r.RequirementScore
	case FieldRequirementExplanation:
		return &r.RequirementExplanation
	case FieldCorrectionDescription:
		return &r.CorrectionDescription
	case FieldCorrectionResponsibility:
		return &r.CorrectionResponsibility
	case FieldCorrectionDueDate:
		return &r.CorrectionDueDate
	case FieldCorrectionEvidence:
		return &r.CorrectionEvidence
	case FieldCorrectiveActionDescription:
		return &r.CorrectiveActionDescription
	case FieldCorrectiveActionResponsibility:
		return &r.CorrectiveActionResponsibility
	case FieldCorrectiveActionDueDate:
		return &r.CorrectiveActionDueDate
	case FieldReleaseResponsibility:
		return &r.ReleaseResponsibility
	case FieldReleaseDate:
		return &r.ReleaseDate
	}
	return nil
}

// Enterprise is a stored audit header. One per COID.
type Enterprise struct {
	ID uuid.UUID `json:"id"`
	AuditMetadata
	CreatedAt time.Time `json:"created_at"`
}

// Finding is a stored FindingRecord.
type Finding struct {
	ID                 uuid.UUID `json:"id"`
	EnterpriseID       uuid.UUID `json:"enterprise_id"`
	ExternalIdentifier string    `json:"external_identifier"`
	FindingRecord
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Attachment is a file stored for a finding.
type Attachment struct {
	ID        uuid.UUID `json:"id"`
	FindingID uuid.UUID `json:"finding_id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// FindingFilter narrows ListFindings. An empty filter lists everything.
type FindingFilter struct {
	Identifiers []string
}

// Extraction is the result of reading one uploaded document.
type Extraction struct {
	Metadata AuditMetadata   `json:"metadata"`
	Findings []FindingRecord `json:"findings"`
}

// ImportResult describes a stored upload.
type ImportResult struct {
	EnterpriseID       uuid.UUID `json:"enterprise_id"`
	ExternalIdentifier string    `json:"external_identifier"`
	FindingsInserted   int       `json:"findings_inserted"`
}
