package sheets

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// InputMode is the Sheets value-interpretation mode for writes.
type InputMode string

const (
	// Raw stores values literally.
	Raw InputMode = "RAW"
	// UserEntered lets the service parse numbers and formulas as if typed into the UI.
	UserEntered InputMode = "USER_ENTERED"
)

// Range is a rectangular block of cells. Rows and columns are 1-based and inclusive.
type Range struct {
	StartRow, StartCol int
	EndRow, EndCol     int
}

// Cell returns the single-cell range at row, col.
func Cell(row, col int) Range {
	return Range{StartRow: row, StartCol: col, EndRow: row, EndCol: col}
}

// RowSpan returns the range covering columns firstCol..lastCol of a single row.
func RowSpan(row, firstCol, lastCol int) Range {
	return Range{StartRow: row, StartCol: firstCol, EndRow: row, EndCol: lastCol}
}

// A1 renders the range in A1 notation without a sheet prefix, e.g. "A1:C1" or "B3".
func (r Range) A1() (string, error) {
	start, err := excelize.CoordinatesToCellName(r.StartCol, r.StartRow)
	if err != nil {
		return "", fmt.Errorf("invalid range start: %w", err)
	}
	if r.EndRow == r.StartRow && r.EndCol == r.StartCol {
		return start, nil
	}
	end, err := excelize.CoordinatesToCellName(r.EndCol, r.EndRow)
	if err != nil {
		return "", fmt.Errorf("invalid range end: %w", err)
	}
	return start + ":" + end, nil
}

// qualify prefixes an A1 range with a quoted sheet title.
func qualify(title, a1 string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), a1)
}

// Color is an RGB color with components in [0,1].
type Color struct {
	Red, Green, Blue float64
}

// Format is a partial cell format. Zero-valued attributes are left untouched on the sheet.
type Format struct {
	Bold                bool
	FontSize            int64
	Background          *Color
	HorizontalAlignment string
	WrapStrategy        string
}

// RangeFormat pairs a range with the format to apply to it.
type RangeFormat struct {
	Range  Range
	Format Format
}
