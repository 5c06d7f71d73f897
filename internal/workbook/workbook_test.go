package workbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"actionplan/pkg/testutil"
)

type WorkbookSuite struct {
	suite.Suite
	wb *Workbook
}

func TestWorkbookSuite(t *testing.T) {
	suite.Run(t, new(WorkbookSuite))
}

func (s *WorkbookSuite) SetupTest() {
	data := testutil.BuildWorkbook(s.T(), testutil.Sheet{
		Name: "Plan d'action",
		Cells: map[string]any{
			"C4": "  Acme  ",
			"C5": "COID-42",
			"C6": 42,
			"C7": 3.25,
			"C8": true,
			"C9": time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			"F2": "merged header",
		},
		Rows: map[int][]any{
			12: {"requirementNo", "requirementText", nil, "correctionStatus"},
		},
		Merges: [][2]string{{"F2", "H3"}},
	})
	wb, err := Open(data)
	s.Require().NoError(err)
	s.wb = wb
	s.T().Cleanup(func() { _ = wb.Close() })
}

func (s *WorkbookSuite) TestTypedValues() {
	s.Run("strings are returned verbatim", func() {
		v, err := s.wb.CellValue(4, 3)
		s.Require().NoError(err)
		s.Equal(String, v.Kind)
		s.Equal("  Acme  ", v.Str)
	})

	s.Run("integers render without decimals", func() {
		v, err := s.wb.CellValue(6, 3)
		s.Require().NoError(err)
		s.Equal(Number, v.Kind)
		s.Equal("42", v.String())
	})

	s.Run("floats keep their precision", func() {
		v, err := s.wb.CellValue(7, 3)
		s.Require().NoError(err)
		s.Equal(Number, v.Kind)
		s.Equal("3.25", v.String())
	})

	s.Run("booleans", func() {
		v, err := s.wb.CellValue(8, 3)
		s.Require().NoError(err)
		s.Equal(Bool, v.Kind)
		s.True(v.Bool)
	})

	s.Run("date-formatted numbers become dates", func() {
		v, err := s.wb.CellValue(9, 3)
		s.Require().NoError(err)
		s.Equal(Date, v.Kind)
		s.Equal("2024-03-05", v.String())
	})

	s.Run("empty cells are null", func() {
		v, err := s.wb.CellValue(1, 1)
		s.Require().NoError(err)
		s.True(v.IsNull())
	})

	s.Run("coordinates below one are rejected", func() {
		_, err := s.wb.CellValue(0, 3)
		s.ErrorIs(err, ErrOutOfRange)
	})
}

func (s *WorkbookSuite) TestMergedCells() {
	anchor, err := s.wb.CellValue(2, 6)
	s.Require().NoError(err)

	s.Run("covered coordinate is empty when read directly", func() {
		v, err := s.wb.CellValue(3, 8)
		s.Require().NoError(err)
		s.True(v.IsNull())
	})

	s.Run("every covered coordinate resolves to the anchor", func() {
		for row := 2; row <= 3; row++ {
			for col := 6; col <= 8; col++ {
				v, err := s.wb.ResolvedCellValue(row, col)
				s.Require().NoError(err)
				s.True(anchor.Equal(v), "(%d,%d)", row, col)
			}
		}
	})

	s.Run("outside the region reads the cell itself", func() {
		v, err := s.wb.ResolvedCellValue(4, 3)
		s.Require().NoError(err)
		s.Equal("  Acme  ", v.Str)
	})
}

func (s *WorkbookSuite) TestRowValues() {
	_, cols := s.wb.Dimensions()
	values, err := s.wb.RowValues(12)
	s.Require().NoError(err)
	s.Len(values, cols)
	s.Equal("requirementNo", values[0].String())
	s.True(values[2].IsNull())
	s.Equal("correctionStatus", values[3].String())
}

func (s *WorkbookSuite) TestRowsIterator() {
	rows, _ := s.wb.Dimensions()
	s.Equal(12, rows)

	it := s.wb.Rows(10, 0)
	var seen []int
	for it.Next() {
		seen = append(seen, it.Row())
	}
	s.Require().NoError(it.Err())
	s.Equal([]int{10, 11, 12}, seen)

	s.False(it.Next(), "an exhausted iterator stays exhausted")
}

func (s *WorkbookSuite) TestSheetName() {
	s.Equal("Plan d'action", s.wb.SheetName())
}

func TestOpenRejectsInvalidDocuments(t *testing.T) {
	cases := map[string][]byte{
		"empty":      nil,
		"plain text": []byte("requirementNo;requirementText\nR1;Missing label\n"),
		"zip without workbook": func() []byte {
			return []byte("PK\x05\x06\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
		}(),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Open(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnreadableDocument)
		})
	}
}

func TestOpenUsesActiveSheet(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	idx, err := f.NewSheet("Findings")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Findings", "A1", "active"))
	f.SetActiveSheet(idx)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	wb, err := Open(buf.Bytes())
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()

	assert.Equal(t, "Findings", wb.SheetName())
	v, err := wb.CellValue(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "active", v.Str)
}

func TestIsDateFormatCode(t *testing.T) {
	assert.True(t, isDateFormatCode("dd.mm.yyyy"))
	assert.True(t, isDateFormatCode("[$-40C]d mmmm yyyy"))
	assert.False(t, isDateFormatCode("0.00"))
	assert.False(t, isDateFormatCode(`"day "0`))
	assert.False(t, isDateFormatCode("[h]:mm"))
	assert.False(t, isDateFormatCode("General"))
}
