// Package extract turns an opened action-plan workbook into audit metadata
// and finding records. Extraction is pure: it reads the sheet and returns
// values, it never writes anywhere.
package extract

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"actionplan/internal/audit/models"
	"actionplan/internal/workbook"
)

// Sheet is the read access extraction needs. *workbook.Workbook satisfies it.
type Sheet interface {
	ResolvedCellValue(row, col int) (workbook.Scalar, error)
	RowValues(row int) ([]workbook.Scalar, error)
	Dimensions() (rows, cols int)
}

// ExtractMetadata reads the five header values at their configured cells.
// Only company_name and external_identifier must be present; the other
// fields stay nil when their cell is empty.
func ExtractMetadata(sheet Sheet, layout MetadataLayout) (models.AuditMetadata, error) {
	var md models.AuditMetadata
	targets := map[string]**string{
		"company_name":        &md.CompanyName,
		"external_identifier": &md.ExternalIdentifier,
		"reference_standard":  &md.ReferenceStandard,
		"audit_type":          &md.AuditType,
		"audit_date":          &md.AuditDate,
	}
	for _, f := range layout.fields() {
		v, err := readCell(sheet, f.layout.Cell)
		if err != nil {
			return models.AuditMetadata{}, stageErr(StageMetadata, f.name, err)
		}
		*targets[f.name] = NormalizeValue(v)
	}

	if md.CompanyName == nil {
		return models.AuditMetadata{}, stageErr(StageMetadata, "company_name", ErrIncompleteMetadata)
	}
	if md.ExternalIdentifier == nil {
		return models.AuditMetadata{}, stageErr(StageMetadata, "external_identifier", ErrIncompleteMetadata)
	}
	return md, nil
}

func readCell(sheet Sheet, ref string) (workbook.Scalar, error) {
	col, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return workbook.Scalar{}, fmt.Errorf("cell reference %q: %w", ref, err)
	}
	return sheet.ResolvedCellValue(row, col)
}
