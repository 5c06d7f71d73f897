package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteMetadata means a metadata field that identifies the
	// document is null.
	ErrIncompleteMetadata = errors.New("incomplete metadata")
	// ErrTableExtraction means the findings table could not be located or read.
	ErrTableExtraction = errors.New("table extraction failed")
	// ErrLayoutMismatch means a label cell does not hold its expected label.
	ErrLayoutMismatch = errors.New("layout mismatch")
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageDocument Stage = "document"
	StageMetadata Stage = "metadata"
	StageTable    Stage = "table"
	StageInsert   Stage = "insert"
)

// StageError attaches the failing stage and, when known, field to an error.
type StageError struct {
	Stage Stage
	Field string
	Err   error
}

func (e *StageError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Field, e.Err)
	}
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, field string, err error) error {
	return &StageError{Stage: stage, Field: field, Err: err}
}
