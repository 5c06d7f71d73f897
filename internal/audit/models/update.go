package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FindingUpdate is a partial edit of the fields the audited company fills in.
// Nil fields are left untouched.
type FindingUpdate struct {
	CorrectionDescription    *string `json:"correction_description,omitempty" validate:"omitnil,max=4000"`
	CorrectionResponsibility *string `json:"correction_responsibility,omitempty" validate:"omitnil,max=255"`
	CorrectionDueDate        *string `json:"correction_due_date,omitempty" validate:"omitnil,isodate"`
	CorrectionStatus         *Status `json:"correction_status,omitempty" validate:"omitnil,status"`
	CorrectionEvidence       *string `json:"correction_evidence,omitempty" validate:"omitnil,max=4000"`

	CorrectiveActionDescription    *string `json:"corrective_action_description,omitempty" validate:"omitnil,max=4000"`
	CorrectiveActionResponsibility *string `json:"corrective_action_responsibility,omitempty" validate:"omitnil,max=255"`
	CorrectiveActionDueDate        *string `json:"corrective_action_due_date,omitempty" validate:"omitnil,isodate"`
	CorrectiveActionStatus         *Status `json:"corrective_action_status,omitempty" validate:"omitnil,status"`

	ReleaseResponsibility *string `json:"release_responsibility,omitempty" validate:"omitnil,max=255"`
	ReleaseDate           *string `json:"release_date,omitempty" validate:"omitnil,isodate"`
}

// IsEmpty reports whether the update changes nothing.
func (u FindingUpdate) IsEmpty() bool {
	return u == FindingUpdate{}
}

// Normalize trims text fields, canonicalizes statuses and rewrites
// day.month.year dates to ISO so that Validate sees stored forms.
func (u *FindingUpdate) Normalize(normalizeDate func(string) string) {
	for _, p := range []**string{
		&u.CorrectionDescription, &u.CorrectionResponsibility, &u.CorrectionEvidence,
		&u.CorrectiveActionDescription, &u.CorrectiveActionResponsibility, &u.ReleaseResponsibility,
	} {
		if *p != nil {
			v := strings.TrimSpace(**p)
			*p = &v
		}
	}
	for _, p := range []**string{&u.CorrectionDueDate, &u.CorrectiveActionDueDate, &u.ReleaseDate} {
		if *p != nil {
			v := normalizeDate(strings.TrimSpace(**p))
			*p = &v
		}
	}
	for _, p := range []**Status{&u.CorrectionStatus, &u.CorrectiveActionStatus} {
		if *p == nil {
			continue
		}
		if st, ok := ParseStatus(strings.TrimSpace(string(**p))); ok {
			*p = &st
		}
	}
}

// Validate checks statuses against the enum and dates against ISO format.
func (u FindingUpdate) Validate() error {
	if u.IsEmpty() {
		return errors.New("no fields to update")
	}
	err := validate.Struct(u)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "status":
		return fmt.Errorf("%s must be one of %s", fe.Field(), strings.Join(StatusValues(), ", "))
	case "isodate":
		return fmt.Errorf("%s must be a date (YYYY-MM-DD)", fe.Field())
	default:
		return fmt.Errorf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

// IsISODate reports whether s is a YYYY-MM-DD calendar date. Empty strings
// clear a date and are accepted.
func IsISODate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// Apply copies the set fields of u onto r. Empty strings clear a field.
func (r *FindingRecord) Apply(u FindingUpdate) {
	set := func(dst **string, src *string) {
		if src == nil {
			return
		}
		if *src == "" {
			*dst = nil
			return
		}
		v := *src
		*dst = &v
	}
	set(&r.CorrectionDescription, u.CorrectionDescription)
	set(&r.CorrectionResponsibility, u.CorrectionResponsibility)
	set(&r.CorrectionDueDate, u.CorrectionDueDate)
	set(&r.CorrectionEvidence, u.CorrectionEvidence)
	set(&r.CorrectiveActionDescription, u.CorrectiveActionDescription)
	set(&r.CorrectiveActionResponsibility, u.CorrectiveActionResponsibility)
	set(&r.CorrectiveActionDueDate, u.CorrectiveActionDueDate)
	set(&r.ReleaseResponsibility, u.ReleaseResponsibility)
	set(&r.ReleaseDate, u.ReleaseDate)
	if u.CorrectionStatus != nil {
		r.CorrectionStatus = *u.CorrectionStatus
	}
	if u.CorrectiveActionStatus != nil {
		r.CorrectiveActionStatus = *u.CorrectiveActionStatus
	}
}
