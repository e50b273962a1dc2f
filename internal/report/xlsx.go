package report

import (
	"fmt"
	"io"
	"os"

	"github.com/KaramelBytes/census-cli/internal/census"
	"github.com/KaramelBytes/census-cli/internal/utils"
	"github.com/xuri/excelize/v2"
)

const (
	StatsSheet    = "State Stats"
	AnalysisSheet = "Analysis"
)

// Workbook builds the two-sheet export: display rows on StatsSheet and the
// narrative in a single cell on AnalysisSheet.
func Workbook(ds census.Dataset, narrative string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", StatsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	if err := writeStats(f, ds); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeAnalysis(f, narrative); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func writeStats(f *excelize.File, ds census.Dataset) error {
	for i, h := range Header() {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(StatsSheet, cell, h); err != nil {
			return fmt.Errorf("xlsx: header %s: %w", h, err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := 18.0
		if i == 0 {
			width = 24
		}
		if err := f.SetColWidth(StatsSheet, col, col, width); err != nil {
			return err
		}
	}
	for r, rec := range ds.Rows {
		for c, v := range Cells(rec) {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(StatsSheet, cell, v); err != nil {
				return fmt.Errorf("xlsx: %s: %w", cell, err)
			}
		}
	}
	return nil
}

func writeAnalysis(f *excelize.File, narrative string) error {
	if _, err := f.NewSheet(AnalysisSheet); err != nil {
		return fmt.Errorf("xlsx: add sheet: %w", err)
	}
	if err := f.SetCellValue(AnalysisSheet, "A1", "Analysis"); err != nil {
		return err
	}
	if err := f.SetCellValue(AnalysisSheet, "A2", narrative); err != nil {
		return err
	}
	if err := f.SetColWidth(AnalysisSheet, "A", "A", 120); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}
	return f.SetCellStyle(AnalysisSheet, "A2", "A2", style)
}

// WriteXLSX writes the workbook to w.
func WriteXLSX(w io.Writer, ds census.Dataset, narrative string) error {
	f, err := Workbook(ds, narrative)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook to path atomically.
func SaveXLSX(path string, ds census.Dataset, narrative string) error {
	return utils.SafeWrite(path, func(out *os.File) error {
		return WriteXLSX(out, ds, narrative)
	})
}
