package inventory

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// ReadWorkbook returns the rows of the first worksheet of an .xlsx document,
// ready for UploadRows. Rows with no content are dropped.
func ReadWorkbook(r io.Reader) ([][]interface{}, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, fmt.Errorf("workbook has no worksheets")
	}

	cells, err := f.GetRows(sheetList[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheetList[0], err)
	}

	rows := make([][]interface{}, 0, len(cells))
	for _, row := range cells {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		out := make([]interface{}, len(row))
		for i, v := range row {
			out[i] = v
		}
		rows = append(rows, out)
	}

	log.Debug().Str("sheet", sheetList[0]).Int("rows", len(rows)).Msg("Read workbook")
	return rows, nil
}
