package service

import (
	"errors"
	"fmt"

	"actionplan/internal/audit/extract"
	"actionplan/internal/audit/models"
	"actionplan/internal/workbook"
	dErrors "actionplan/pkg/domain-errors"
	"actionplan/pkg/platform/sentinel"
)

var (
	// ErrDuplicateEnterprise means an enterprise with the same COID is
	// already stored.
	ErrDuplicateEnterprise = errors.New("enterprise already imported")
	// ErrGatewayWrite means the backend rejected or failed a write.
	ErrGatewayWrite = errors.New("gateway write failed")
)

// stageOf returns the pipeline stage an error belongs to, for metrics.
func stageOf(err error) extract.Stage {
	var se *extract.StageError
	switch {
	case errors.As(err, &se):
		return se.Stage
	case errors.Is(err, workbook.ErrUnreadableDocument):
		return extract.StageDocument
	default:
		return extract.StageInsert
	}
}

// translateExtraction maps reader and extractor errors to coded errors whose
// message names the stage and field.
func translateExtraction(err error) error {
	var se *extract.StageError
	field := ""
	if errors.As(err, &se) {
		field = se.Field
	}
	switch {
	case errors.Is(err, workbook.ErrUnreadableDocument):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "document stage: file is not a readable spreadsheet")
	case errors.Is(err, extract.ErrIncompleteMetadata):
		return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("metadata stage: %s is required", field))
	case errors.Is(err, extract.ErrLayoutMismatch):
		return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("metadata stage: label for %s does not match the template", field))
	case errors.Is(err, extract.ErrTableExtraction):
		return dErrors.Wrap(err, dErrors.CodeValidation, "table stage: findings table could not be read")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "extraction failed")
}

func translateMissing(err error) error {
	var mf *models.MissingFieldsError
	if errors.As(err, &mf) {
		return dErrors.Wrap(err, dErrors.CodeValidation, "metadata stage: "+mf.Error())
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "metadata stage: invalid metadata")
}

// translateInsert maps errors raised inside the import transaction.
func translateInsert(err error, identifier string) error {
	switch {
	case errors.Is(err, ErrDuplicateEnterprise):
		return dErrors.Wrap(err, dErrors.CodeConflict, fmt.Sprintf("insert stage: enterprise %s already imported", identifier))
	case errors.Is(err, sentinel.ErrLocked):
		return dErrors.Wrap(err, dErrors.CodeConflict, fmt.Sprintf("insert stage: an import of %s is already running", identifier))
	case isTimeout(err):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "insert stage: gateway timed out")
	case errors.Is(err, ErrGatewayWrite), errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeGateway, "insert stage: gateway write failed")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "insert stage: import failed")
}

func gatewayWrite(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGatewayWrite, op, err)
}
