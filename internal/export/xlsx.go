package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/gradebook/internal/apperr"
	"github.com/shrimpsizemoose/gradebook/internal/models"
	"github.com/shrimpsizemoose/gradebook/internal/store"
)

const SheetName = "학생정보"

// NewWorkbook lays out the joined view in a single sheet with a bold,
// filterable header row.
func NewWorkbook(rows []models.ExportRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for col, h := range Header {
		cell := fmt.Sprintf("%s1", colName(col+1))
		if err := f.SetCellStr(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("set cell %s: %w", cell, err)
		}
	}

	for r, row := range Table(rows) {
		for c, val := range row {
			cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
			if err := f.SetCellStr(SheetName, cell, val); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		// scores go in as numbers so the sheet can sum them
		if score := rows[r].Score; score != nil {
			cell := fmt.Sprintf("%s%d", colName(colScore+1), r+2)
			if err := f.SetCellFloat(SheetName, cell, *score, -1, 64); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	if err := applyHeaderStyle(f, SheetName, len(Header)); err != nil {
		return nil, err
	}
	return f, nil
}

func applyHeaderStyle(f *excelize.File, sheet string, cols int) error {
	end := colName(cols) + "1"
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	_ = f.SetCellStyle(sheet, "A1", end, bold)
	_ = f.AutoFilter(sheet, "A1:"+end, nil)

	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	for c := 0; c < cols; c++ {
		w := 10.0
		for _, row := range rows {
			if c < len(row) {
				// hangul renders about twice as wide as latin
				if lw := float64(len([]rune(row[c]))) * 2; lw > w {
					w = lw
				}
			}
		}
		if w > 40 {
			w = 40
		}
		_ = f.SetColWidth(sheet, colName(c+1), colName(c+1), w)
	}
	return nil
}

// ExportXLSX writes the joined view of st to an .xlsx workbook at path and
// returns the number of data rows written.
func ExportXLSX(st store.RecordStore, path string) (int, error) {
	rows, err := st.ExportRows()
	if err != nil {
		return 0, err
	}

	f, err := NewWorkbook(rows)
	if err != nil {
		return 0, apperr.IO("export xlsx", err)
	}
	defer f.Close()

	if err := writeFile(path, func(w io.Writer) error { return f.Write(w) }); err != nil {
		return 0, apperr.IO("export xlsx", err)
	}

	logger.Info.Printf("Exported %d rows to %s", len(rows), path)
	return len(rows), nil
}

func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}
