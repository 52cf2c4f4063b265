package sheets

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process worksheet with the same read and write semantics the
// orchestrator relies on from the Sheets API: reads drop trailing empty cells
// and rows, appends land below the last populated row, and formulas are read
// back as their text. It backs local runs without credentials and tests.
type Memory struct {
	mu      sync.Mutex
	title   string
	cells   [][]string
	formats map[int]Format
	calls   map[string]int
}

func NewMemory(title string) *Memory {
	return &Memory{
		title:   title,
		formats: make(map[int]Format),
		calls:   make(map[string]int),
	}
}

func (m *Memory) Title() string {
	return m.title
}

func (m *Memory) Values(ctx context.Context) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Values"]++

	last := m.lastRow()
	rows := make([][]string, last)
	for i := 0; i < last; i++ {
		rows[i] = trimRow(m.cells[i])
	}
	return rows, nil
}

func (m *Memory) RowValues(ctx context.Context, row int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["RowValues"]++

	if row < 1 || row > len(m.cells) {
		return nil, nil
	}
	return trimRow(m.cells[row-1]), nil
}

func (m *Memory) ColumnValues(ctx context.Context, col int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ColumnValues"]++

	var out []string
	for _, row := range m.cells {
		if col-1 < len(row) {
			out = append(out, row[col-1])
		} else {
			out = append(out, "")
		}
	}
	return trimRow(out), nil
}

func (m *Memory) UpdateRange(ctx context.Context, r Range, values [][]interface{}, mode InputMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["UpdateRange"]++

	if r.StartRow < 1 || r.StartCol < 1 {
		return fmt.Errorf("invalid range start row %d col %d", r.StartRow, r.StartCol)
	}
	m.write(r.StartRow, r.StartCol, values)
	return nil
}

func (m *Memory) AppendRows(ctx context.Context, rows [][]interface{}, mode InputMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["AppendRows"]++

	m.write(m.lastRow()+1, 1, rows)
	return nil
}

func (m *Memory) DeleteRow(ctx context.Context, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["DeleteRow"]++

	if row < 1 || row > len(m.cells) {
		return fmt.Errorf("row %d out of bounds (rows: %d)", row, len(m.cells))
	}
	m.cells = append(m.cells[:row-1], m.cells[row:]...)

	shifted := make(map[int]Format, len(m.formats))
	for r, f := range m.formats {
		switch {
		case r < row:
			shifted[r] = f
		case r > row:
			shifted[r-1] = f
		}
	}
	m.formats = shifted
	return nil
}

func (m *Memory) Format(ctx context.Context, formats ...RangeFormat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Format"]++

	for _, rf := range formats {
		for r := rf.Range.StartRow; r <= rf.Range.EndRow; r++ {
			m.formats[r] = mergeFormat(m.formats[r], rf.Format)
		}
	}
	return nil
}

// FormatOf returns the accumulated format of a 1-based row.
func (m *Memory) FormatOf(row int) (Format, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.formats[row]
	return f, ok
}

// Calls returns how many times the named method has been invoked.
func (m *Memory) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *Memory) write(startRow, startCol int, values [][]interface{}) {
	for i, row := range values {
		r := startRow - 1 + i
		for len(m.cells) <= r {
			m.cells = append(m.cells, nil)
		}
		for j, v := range row {
			c := startCol - 1 + j
			for len(m.cells[r]) <= c {
				m.cells[r] = append(m.cells[r], "")
			}
			m.cells[r][c] = cellText(v)
		}
	}
}

// lastRow is the 1-based index of the last row holding a non-empty cell, or 0.
func (m *Memory) lastRow() int {
	for i := len(m.cells) - 1; i >= 0; i-- {
		if len(trimRow(m.cells[i])) > 0 {
			return i + 1
		}
	}
	return 0
}

func trimRow(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	out := make([]string, end)
	copy(out, row[:end])
	return out
}

func mergeFormat(dst, src Format) Format {
	if src.Bold {
		dst.Bold = true
	}
	if src.FontSize > 0 {
		dst.FontSize = src.FontSize
	}
	if src.Background != nil {
		bg := *src.Background
		dst.Background = &bg
	}
	if src.HorizontalAlignment != "" {
		dst.HorizontalAlignment = src.HorizontalAlignment
	}
	if src.WrapStrategy != "" {
		dst.WrapStrategy = src.WrapStrategy
	}
	return dst
}
