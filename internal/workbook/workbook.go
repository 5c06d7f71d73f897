// Package workbook opens spreadsheet documents and exposes typed, 1-indexed
// cell access on the active sheet, including merged-region resolution.
//
// A Workbook is not safe for concurrent use: it caches number-format lookups
// and its row iterators are consumed once.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadableDocument is returned when the byte stream is not a spreadsheet
// container excelize can open.
var ErrUnreadableDocument = errors.New("unreadable document")

// ErrOutOfRange is returned for coordinates below 1.
var ErrOutOfRange = errors.New("cell coordinate out of range")

type mergedRegion struct {
	top, left, bottom, right int
}

func (m mergedRegion) contains(row, col int) bool {
	return row >= m.top && row <= m.bottom && col >= m.left && col <= m.right
}

// Workbook is an opened document bound to its active sheet.
type Workbook struct {
	file     *excelize.File
	sheet    string
	date1904 bool
	rows     int
	cols     int
	merged   []mergedRegion
	dateFmts map[int]bool
}

// Open parses data as an OOXML spreadsheet and binds the active sheet (the
// first sheet when the document has no active tab).
func Open(data []byte) (*Workbook, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnreadableDocument)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		_ = f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableDocument)
	}

	wb := &Workbook{
		file:     f,
		sheet:    sheet,
		dateFmts: make(map[int]bool),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.date1904 = *props.Date1904
	}
	if err := wb.loadMergedRegions(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	if err := wb.measure(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	return wb, nil
}

// Close releases the temporary files excelize may hold.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// SheetName returns the name of the bound sheet.
func (w *Workbook) SheetName() string {
	return w.sheet
}

// Dimensions returns the last used row and column (1-indexed).
func (w *Workbook) Dimensions() (rows, cols int) {
	return w.rows, w.cols
}

func (w *Workbook) loadMergedRegions() error {
	cells, err := w.file.GetMergeCells(w.sheet)
	if err != nil {
		return fmt.Errorf("read merged cells: %w", err)
	}
	for _, mc := range cells {
		left, top, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			return err
		}
		right, bottom, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			return err
		}
		w.merged = append(w.merged, mergedRegion{top: top, left: left, bottom: bottom, right: right})
	}
	return nil
}

// measure streams the sheet once to find the last row and column holding a value.
func (w *Workbook) measure() error {
	rows, err := w.file.Rows(w.sheet)
	if err != nil {
		return fmt.Errorf("stream rows: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return fmt.Errorf("read row %d: %w", n, err)
		}
		if len(cols) == 0 {
			continue
		}
		w.rows = n
		if len(cols) > w.cols {
			w.cols = len(cols)
		}
	}
	if err := rows.Error(); err != nil {
		return err
	}
	for _, m := range w.merged {
		if m.top > w.rows {
			w.rows = m.top
		}
		if m.left > w.cols {
			w.cols = m.left
		}
	}
	return nil
}

// CellValue returns the typed value stored at (row, col), ignoring merges: a
// coordinate covered by a merged region other than its top-left anchor is
// null.
func (w *Workbook) CellValue(row, col int) (Scalar, error) {
	if row < 1 || col < 1 {
		return Scalar{}, fmt.Errorf("%w: (%d,%d)", ErrOutOfRange, row, col)
	}
	if w.coveredByMerge(row, col) {
		return Scalar{}, nil
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Scalar{}, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}

	raw, err := w.file.GetCellValue(w.sheet, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return Scalar{}, fmt.Errorf("read %s: %w", axis, err)
	}
	if raw == "" {
		return Scalar{}, nil
	}
	typ, err := w.file.GetCellType(w.sheet, axis)
	if err != nil {
		return Scalar{}, fmt.Errorf("read type of %s: %w", axis, err)
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return StringValue(raw), nil
	case excelize.CellTypeBool:
		return BoolValue(raw == "1" || strings.EqualFold(raw, "true")), nil
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return DateValue(t), nil
		}
		return StringValue(raw), nil
	}

	// Untyped, numeric and formula cells: numeric when the cached value parses.
	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return StringValue(raw), nil
	}
	if w.isDateFormatted(axis) {
		t, err := excelize.ExcelDateToTime(num, w.date1904)
		if err == nil {
			return DateValue(t), nil
		}
	}
	return NumberValue(num), nil
}

// coveredByMerge reports whether (row, col) is inside a merged region but is
// not its anchor. excelize reports the anchor value for such cells.
func (w *Workbook) coveredByMerge(row, col int) bool {
	for _, m := range w.merged {
		if m.contains(row, col) {
			return row != m.top || col != m.left
		}
	}
	return false
}

// ResolvedCellValue returns the anchor value when (row, col) lies inside a
// merged region; merged cells only store content in their top-left cell.
func (w *Workbook) ResolvedCellValue(row, col int) (Scalar, error) {
	for _, m := range w.merged {
		if m.contains(row, col) {
			return w.CellValue(m.top, m.left)
		}
	}
	return w.CellValue(row, col)
}

// RowValues returns the values of a whole row, columns 1 through the last
// used column of the sheet.
func (w *Workbook) RowValues(row int) ([]Scalar, error) {
	if row < 1 {
		return nil, fmt.Errorf("%w: row %d", ErrOutOfRange, row)
	}
	values := make([]Scalar, w.cols)
	for col := 1; col <= w.cols; col++ {
		v, err := w.CellValue(row, col)
		if err != nil {
			return nil, err
		}
		values[col-1] = v
	}
	return values, nil
}

// Rows returns a lazy iterator over [startRow, endRow]. endRow <= 0 means the
// last used row.
func (w *Workbook) Rows(startRow, endRow int) *RowIterator {
	if endRow <= 0 || endRow > w.rows {
		endRow = w.rows
	}
	it := &RowIterator{wb: w, next: startRow, last: endRow}
	if startRow < 1 {
		it.err = fmt.Errorf("%w: start row %d", ErrOutOfRange, startRow)
	}
	return it
}

func (w *Workbook) isDateFormatted(axis string) bool {
	styleID, err := w.file.GetCellStyle(w.sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := w.dateFmts[styleID]; ok {
		return isDate
	}
	isDate := false
	if style, err := w.file.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		} else {
			isDate = isBuiltinDateFormat(style.NumFmt)
		}
	}
	w.dateFmts[styleID] = isDate
	return isDate
}

func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format renders a calendar
// date: it must contain a day or year token outside literals and brackets.
func isDateFormatCode(code string) bool {
	if strings.EqualFold(code, "general") {
		return false
	}
	inQuote, inBracket, escaped := false, false, false
	for _, r := range code {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == 'd' || r == 'D' || r == 'y' || r == 'Y':
			return true
		}
	}
	return false
}

func parseISODate(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RowIterator walks rows lazily. It is consumed once; re-open the workbook or
// call Rows again to restart.
type RowIterator struct {
	wb     *Workbook
	next   int
	last   int
	row    int
	values []Scalar
	err    error
}

// Next advances to the next row. It returns false at the end or on error.
func (it *RowIterator) Next() bool {
	if it.err != nil || it.next > it.last {
		return false
	}
	values, err := it.wb.RowValues(it.next)
	if err != nil {
		it.err = err
		return false
	}
	it.row = it.next
	it.values = values
	it.next++
	return true
}

// Row returns the 1-based index of the current row.
func (it *RowIterator) Row() int { return it.row }

// Values returns the current row's values.
func (it *RowIterator) Values() []Scalar { return it.values }

// Err returns the first error met during iteration.
func (it *RowIterator) Err() error { return it.err }
