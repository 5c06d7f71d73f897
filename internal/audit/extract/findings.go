package extract

import (
	"fmt"
	"strings"

	"actionplan/internal/audit/models"
	"actionplan/internal/workbook"
)

// columnDictionary maps a folded header to its canonical field. The folded
// form is lowercase with spaces, underscores and hyphens removed, so the
// template's camelCase, snake_case and the legacy all-lowercase names agree.
var columnDictionary = map[string]string{
	"requirementno":                  models.FieldRequirementNo,
	"requirementtext":                models.FieldRequirementText,
	"requirementscore":               models.FieldRequirementScore,
	"requirementexplanation":         models.FieldRequirementExplanation,
	"correctiondescription":          models.FieldCorrectionDescription,
	"correctionresponsibility":       models.FieldCorrectionResponsibility,
	"correctionduedate":              models.FieldCorrectionDueDate,
	"correctionstatus":               models.FieldCorrectionStatus,
	"correctionevidence":             models.FieldCorrectionEvidence,
	"correctiveactiondescription":    models.FieldCorrectiveActionDescription,
	"correctiveactionresponsibility": models.FieldCorrectiveActionResponsibility,
	"correctiveactionduedate":        models.FieldCorrectiveActionDueDate,
	"correctiveactionstatus":         models.FieldCorrectiveActionStatus,
	"releaseresponsibility":          models.FieldReleaseResponsibility,
	"releasedate":                    models.FieldReleaseDate,
}

var headerFolder = strings.NewReplacer(" ", "", "_", "", "-", "")

// CanonicalField returns the canonical field a source header maps to.
func CanonicalField(header string) (string, bool) {
	f, ok := columnDictionary[headerFolder.Replace(strings.ToLower(strings.TrimSpace(header)))]
	return f, ok
}

type column struct {
	index int
	field string
	extra string
}

// ExtractFindings reads the header row, then every following row from
// dataStartRow to the last used row. Rows whose mapped cells are all null are
// dropped; the remaining rows keep sheet order.
func ExtractFindings(sheet Sheet, headerRow, dataStartRow int) ([]models.FindingRecord, error) {
	if headerRow < 1 || dataStartRow <= headerRow {
		return nil, stageErr(StageTable, "", fmt.Errorf("%w: header row %d, data start row %d", ErrTableExtraction, headerRow, dataStartRow))
	}
	header, err := sheet.RowValues(headerRow)
	if err != nil {
		return nil, stageErr(StageTable, "", fmt.Errorf("%w: read header row %d: %v", ErrTableExtraction, headerRow, err))
	}
	columns := mapColumns(header)
	if len(columns) == 0 {
		return nil, stageErr(StageTable, "", fmt.Errorf("%w: header row %d is empty", ErrTableExtraction, headerRow))
	}

	statuses := models.StatusValues()
	last, _ := sheet.Dimensions()
	records := make([]models.FindingRecord, 0)
	for row := dataStartRow; row <= last; row++ {
		values, err := sheet.RowValues(row)
		if err != nil {
			return nil, stageErr(StageTable, "", fmt.Errorf("%w: read row %d: %v", ErrTableExtraction, row, err))
		}
		rec, empty := buildRecord(columns, values)
		if empty {
			continue
		}
		rec.SourceRow = row
		rec.CorrectionStatus = models.Status(ConstrainEnum(string(rec.CorrectionStatus), statuses, string(models.StatusInProgress)))
		rec.CorrectiveActionStatus = models.Status(ConstrainEnum(string(rec.CorrectiveActionStatus), statuses, string(models.StatusInProgress)))
		records = append(records, rec)
	}
	return records, nil
}

// mapColumns assigns each non-null header cell to a canonical field or to
// the extra map. The first column claiming a field owns it.
func mapColumns(header []workbook.Scalar) []column {
	var columns []column
	claimed := make(map[string]bool)
	for i, cell := range header {
		name, ok := NormalizeScalar(cell)
		if !ok {
			continue
		}
		col := column{index: i}
		if field, ok := CanonicalField(name); ok && !claimed[field] {
			claimed[field] = true
			col.field = field
		} else {
			col.extra = name
		}
		columns = append(columns, col)
	}
	return columns
}

// buildRecord zips values against the header columns. The row is blank when
// every cell of the row, mapped or not, normalizes to null.
func buildRecord(columns []column, values []workbook.Scalar) (models.FindingRecord, bool) {
	var rec models.FindingRecord
	empty := true
	for _, v := range values {
		if _, ok := NormalizeScalar(v); ok {
			empty = false
			break
		}
	}
	for _, c := range columns {
		if c.index >= len(values) {
			continue
		}
		v := NormalizeValue(values[c.index])
		if v == nil {
			continue
		}
		switch c.field {
		case "":
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			if _, dup := rec.Extra[c.extra]; !dup {
				rec.Extra[c.extra] = *v
			}
		case models.FieldCorrectionStatus:
			rec.CorrectionStatus = models.Status(*v)
		case models.FieldCorrectiveActionStatus:
			rec.CorrectiveActionStatus = models.Status(*v)
		default:
			*rec.TextField(c.field) = v
		}
	}
	return rec, empty
}
