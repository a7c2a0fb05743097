package export

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"h2scenarios/internal/dataset"
)

// maxSheetName is Excel's limit on worksheet names.
const maxSheetName = 31

// WriteXLSX writes one worksheet per category. Row 1 holds the column
// names with key columns marked by a trailing " *"; missing cells are left
// blank.
func WriteXLSX(path string, tables []dataset.Category) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}

	for i, t := range tables {
		sheet := t.Name
		if len(sheet) > maxSheetName {
			sheet = sheet[:maxSheetName]
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("xlsx: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx: %s: %w", sheet, err)
		}

		cols, rows := t.Frame.Records()
		header := make([]interface{}, len(cols))
		for j, c := range cols {
			if t.Frame.IsIndex(c) {
				header[j] = c + " *"
			} else {
				header[j] = c
			}
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("xlsx: %s: %w", sheet, err)
		}
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("xlsx: %s: %w", sheet, err)
		}

		for r, row := range rows {
			cells := make([]interface{}, len(row))
			for j, v := range row {
				if x, ok := v.(float64); ok && math.IsNaN(x) {
					continue
				}
				cells[j] = v
			}
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
				return fmt.Errorf("xlsx: %s row %d: %w", sheet, r+2, err)
			}
		}
		if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("xlsx: %s: %w", sheet, err)
		}
	}

	if len(tables) > 0 {
		f.SetActiveSheet(0)
	}
	return f.SaveAs(path)
}
