package store

import (
	"encoding/json"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Sheet1"

// WriteXLSX writes t to a single-sheet workbook with a styled, frozen header row.
func WriteXLSX(path string, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := writeRow(f, xlsxSheet, 1, stringsToCells(t.Columns)); err != nil {
		return err
	}
	applyHeaderStyle(f, xlsxSheet, len(t.Columns))

	for i, row := range t.Rows {
		if err := writeRow(f, xlsxSheet, i+2, xlsxCells(row, len(t.Columns))); err != nil {
			return err
		}
	}
	applyAutoWidth(f, xlsxSheet, t)
	return f.SaveAs(path)
}

func xlsxCells(row []any, n int) []any {
	out := make([]any, n)
	for i := range out {
		if i >= len(row) || row[i] == nil {
			out[i] = ""
			continue
		}
		switch v := row[i].(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				out[i] = n
			} else if f, err := v.Float64(); err == nil {
				out[i] = f
			} else {
				out[i] = v.String()
			}
		case string, int, int64, float64, bool:
			out[i] = v
		default:
			out[i] = FormatCell(v)
		}
	}
	return out
}

func stringsToCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func writeRow(f *excelize.File, sheet string, rowIndex int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowIndex)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func applyHeaderStyle(f *excelize.File, sheet string, cols int) {
	if f == nil || cols <= 0 {
		return
	}
	styleID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E79"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "D9D9D9", Style: 1},
			{Type: "right", Color: "D9D9D9", Style: 1},
			{Type: "top", Color: "D9D9D9", Style: 1},
			{Type: "bottom", Color: "D9D9D9", Style: 1},
		},
	})
	if err != nil {
		return
	}
	start, _ := excelize.CoordinatesToCellName(1, 1)
	end, _ := excelize.CoordinatesToCellName(cols, 1)
	_ = f.SetCellStyle(sheet, start, end, styleID)
	_ = f.SetRowHeight(sheet, 1, 20)
	_ = f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		Split:       true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// applyAutoWidth sizes columns from the header and the first rows; review
// text would otherwise blow every column up to the cap.
func applyAutoWidth(f *excelize.File, sheet string, t Table) {
	const sampleRows = 50
	for i, h := range t.Columns {
		maxLen := len([]rune(h))
		for r := 0; r < len(t.Rows) && r < sampleRows; r++ {
			if i >= len(t.Rows[r]) {
				continue
			}
			if l := len([]rune(FormatCell(t.Rows[r][i]))); l > maxLen {
				maxLen = l
			}
		}
		w := float64(maxLen + 2)
		if w < 10 {
			w = 10
		}
		if w > 60 {
			w = 60
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			continue
		}
		_ = f.SetColWidth(sheet, col, col, w)
	}
}
