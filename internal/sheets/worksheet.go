package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/sheets/v4"
)

// Worksheet is one tab of a remote spreadsheet. It is safe for concurrent use
// but does not serialize multi-step sequences; callers own that.
type Worksheet struct {
	client        *Client
	spreadsheetID string
	title         string
	sheetID       int64
}

func (w *Worksheet) Title() string {
	return w.title
}

// Values reads every populated row of the worksheet as text.
func (w *Worksheet) Values(ctx context.Context) ([][]string, error) {
	log.Debug().Str("sheet", w.title).Msg("Reading all values")
	raw, err := w.client.readRange(ctx, w.spreadsheetID, qualify(w.title, "A:ZZ"), "")
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(raw))
	for i, row := range raw {
		rows[i] = rowText(row)
	}
	log.Debug().Str("sheet", w.title).Int("rows", len(rows)).Msg("Read all values")
	return rows, nil
}

// RowValues reads a single 1-based row, trimmed of trailing empty cells.
func (w *Worksheet) RowValues(ctx context.Context, row int) ([]string, error) {
	raw, err := w.client.readRange(ctx, w.spreadsheetID, qualify(w.title, fmt.Sprintf("%d:%d", row, row)), "")
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return rowText(raw[0]), nil
}

// ColumnValues reads a single 1-based column down to its last populated cell.
func (w *Worksheet) ColumnValues(ctx context.Context, col int) ([]string, error) {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return nil, fmt.Errorf("invalid column %d: %w", col, err)
	}
	raw, err := w.client.readRange(ctx, w.spreadsheetID, qualify(w.title, name+":"+name), "COLUMNS")
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return rowText(raw[0]), nil
}

func (w *Worksheet) UpdateRange(ctx context.Context, r Range, values [][]interface{}, mode InputMode) error {
	a1, err := r.A1()
	if err != nil {
		return err
	}
	log.Debug().Str("sheet", w.title).Str("range", a1).Str("mode", string(mode)).Msg("Updating range")
	return w.client.updateRange(ctx, w.spreadsheetID, qualify(w.title, a1), values, mode)
}

// AppendRows appends rows below the last populated row of the worksheet.
func (w *Worksheet) AppendRows(ctx context.Context, rows [][]interface{}, mode InputMode) error {
	log.Debug().Str("sheet", w.title).Int("rows", len(rows)).Str("mode", string(mode)).Msg("Appending rows")
	return w.client.appendRows(ctx, w.spreadsheetID, qualify(w.title, "A1"), rows, mode)
}

// DeleteRow removes the 1-based row, shifting later rows up.
func (w *Worksheet) DeleteRow(ctx context.Context, row int) error {
	if row < 1 {
		return fmt.Errorf("invalid row index %d", row)
	}
	log.Debug().Str("sheet", w.title).Int("row", row).Msg("Deleting row")
	return w.client.batchUpdate(ctx, w.spreadsheetID, []*sheets.Request{{
		DeleteDimension: &sheets.DeleteDimensionRequest{
			Range: &sheets.DimensionRange{
				SheetId:    w.sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(row - 1),
				EndIndex:   int64(row),
			},
		},
	}})
}

// Format applies every format in one batch request.
func (w *Worksheet) Format(ctx context.Context, formats ...RangeFormat) error {
	requests := make([]*sheets.Request, 0, len(formats))
	for _, f := range formats {
		req, ok := repeatCell(w.sheetID, f)
		if !ok {
			continue
		}
		requests = append(requests, req)
	}
	log.Debug().Str("sheet", w.title).Int("ranges", len(requests)).Msg("Formatting ranges")
	return w.client.batchUpdate(ctx, w.spreadsheetID, requests)
}

// repeatCell builds a RepeatCell request whose field mask names only the attributes set in f.
func repeatCell(sheetID int64, f RangeFormat) (*sheets.Request, bool) {
	cf := &sheets.CellFormat{}
	var fields []string

	if f.Format.Bold || f.Format.FontSize > 0 {
		cf.TextFormat = &sheets.TextFormat{}
		if f.Format.Bold {
			cf.TextFormat.Bold = true
			fields = append(fields, "textFormat.bold")
		}
		if f.Format.FontSize > 0 {
			cf.TextFormat.FontSize = f.Format.FontSize
			fields = append(fields, "textFormat.fontSize")
		}
	}
	if bg := f.Format.Background; bg != nil {
		cf.BackgroundColor = &sheets.Color{
			Red:             bg.Red,
			Green:           bg.Green,
			Blue:            bg.Blue,
			ForceSendFields: []string{"Red", "Green", "Blue"},
		}
		fields = append(fields, "backgroundColor")
	}
	if f.Format.HorizontalAlignment != "" {
		cf.HorizontalAlignment = f.Format.HorizontalAlignment
		fields = append(fields, "horizontalAlignment")
	}
	if f.Format.WrapStrategy != "" {
		cf.WrapStrategy = f.Format.WrapStrategy
		fields = append(fields, "wrapStrategy")
	}
	if len(fields) == 0 {
		return nil, false
	}

	for i, field := range fields {
		fields[i] = "userEnteredFormat." + field
	}

	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    int64(f.Range.StartRow - 1),
				EndRowIndex:      int64(f.Range.EndRow),
				StartColumnIndex: int64(f.Range.StartCol - 1),
				EndColumnIndex:   int64(f.Range.EndCol),
				ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
			},
			Cell:   &sheets.CellData{UserEnteredFormat: cf},
			Fields: strings.Join(fields, ","),
		},
	}, true
}

func rowText(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = cellText(v)
	}
	return out
}

// cellText renders a cell the way the Sheets UI shows an unformatted value.
func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", t)
	}
}
