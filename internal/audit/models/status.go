package models

import (
	"golang.org/x/text/unicode/norm"
)

// Status is the progress of a correction or corrective action.
type Status string

const (
	StatusInProgress Status = "En cours"
	StatusSubmitted  Status = "Soumise"
	StatusValidated  Status = "Validée"
)

// Statuses lists the allowed values in display order.
var Statuses = []Status{StatusInProgress, StatusSubmitted, StatusValidated}

// StatusValues returns the allowed values as strings.
func StatusValues() []string {
	out := make([]string, len(Statuses))
	for i, s := range Statuses {
		out[i] = string(s)
	}
	return out
}

// ParseStatus returns the canonical Status for s. Comparison is done on the
// NFC form so decomposed accents ("Validée" typed as e + U+0301) still match.
func ParseStatus(s string) (Status, bool) {
	n := norm.NFC.String(s)
	for _, st := range Statuses {
		if n == string(st) {
			return st, true
		}
	}
	return "", false
}

func (s Status) IsValid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}
