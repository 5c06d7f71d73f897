package models

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AuditMetadata is the fixed header block of an action plan. Every field is
// nullable at parse time; the natural key is ExternalIdentifier (COID).
type AuditMetadata struct {
	CompanyName        *string `json:"company_name" validate:"required"`
	ExternalIdentifier *string `json:"external_identifier" validate:"required"`
	ReferenceStandard  *string `json:"reference_standard" validate:"required"`
	AuditType          *string `json:"audit_type" validate:"required"`
	AuditDate          *string `json:"audit_date" validate:"required"`
}

// Identifier returns the COID or "" when it is missing.
func (m AuditMetadata) Identifier() string {
	return deref(m.ExternalIdentifier)
}

// MissingFields returns the JSON names of the fields that are null, in
// declaration order. With partial set, only the natural keys are checked.
func (m AuditMetadata) MissingFields(partial bool) []string {
	var missing []string
	err := validate.Struct(m)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	for _, fe := range verrs {
		name := fe.Field()
		if partial && name != "company_name" && name != "external_identifier" {
			continue
		}
		missing = append(missing, name)
	}
	return missing
}

// ValidateForPersistence returns a validation error naming the missing fields.
func (m AuditMetadata) ValidateForPersistence(partial bool) error {
	missing := m.MissingFields(partial)
	if len(missing) == 0 {
		return nil
	}
	return &MissingFieldsError{Fields: missing}
}

// MissingFieldsError lists required fields that are null.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return strings.Join(e.Fields, ", ") + " required"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
