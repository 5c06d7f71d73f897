package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Sheet describes an in-memory test workbook. Cells are keyed by A1 reference;
// Rows are written left to right starting in column A of the given row.
type Sheet struct {
	Name   string
	Cells  map[string]any
	Rows   map[int][]any
	Merges [][2]string
}

// BuildWorkbook renders sheet as .xlsx bytes.
func BuildWorkbook(t testing.TB, sheet Sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	name := "Sheet1"
	if sheet.Name != "" && sheet.Name != name {
		require.NoError(t, f.SetSheetName(name, sheet.Name))
		name = sheet.Name
	}
	for ref, v := range sheet.Cells {
		require.NoError(t, f.SetCellValue(name, ref, v), "set %s", ref)
	}
	for row, values := range sheet.Rows {
		axis, err := excelize.CoordinatesToCellName(1, row)
		require.NoError(t, err)
		vals := values
		require.NoError(t, f.SetSheetRow(name, axis, &vals), "set row %d", row)
	}
	for _, m := range sheet.Merges {
		require.NoError(t, f.MergeCell(name, m[0], m[1]), "merge %s:%s", m[0], m[1])
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// FindingHeaders is the header row of the standard action-plan template.
var FindingHeaders = []any{
	"requirementNo", "requirementText", "requirementScore", "requirementExplanation",
	"correctionDescription", "correctionResponsibility", "correctionDueDate", "correctionStatus",
	"correctionEvidence", "correctiveActionDescription", "correctiveActionResponsibility",
	"correctiveActionDueDate", "correctiveActionStatus", "releaseResponsibility", "releaseDate",
}

// ActionPlan builds a workbook laid out like the standard template: metadata in
// column C (rows 4, 5, 7, 8, 9), headers on row 12 and findings from row 14.
func ActionPlan(t testing.TB, company, coid string, findings ...[]any) []byte {
	t.Helper()
	rows := map[int][]any{12: FindingHeaders}
	for i, f := range findings {
		rows[14+i] = f
	}
	return BuildWorkbook(t, Sheet{
		Cells: map[string]any{
			"B4": "Nom de l'entreprise", "C4": company,
			"B5": "COID", "C5": coid,
			"B7": "Référentiel", "C7": "IFS Food 8",
			"B8": "Type d'audit", "C8": "Certification",
			"B9": "Date d'audit", "C9": "05.03.2024",
		},
		Rows: rows,
	})
}
