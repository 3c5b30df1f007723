// Package export writes comparison results as spreadsheets.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/xuri/excelize/v2"

	"co2dash/internal/logging"
	"co2dash/internal/modules/emissions/service"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	SeriesSheet  = "Emissions"
	AverageSheet = "Global average"
)

// WriteComparison writes one column per country on the first sheet, keyed by
// year, and the global average on the second. Years a country has no value
// for are left blank.
func WriteComparison(w io.Writer, res service.ComparisonResult, logger *slog.Logger) error {
	f := excelize.NewFile()
	defer logging.SafeClose(f, logger, "close workbook")

	if err := f.SetSheetName("Sheet1", SeriesSheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	if err := writeSeriesSheet(f, res); err != nil {
		return err
	}
	if _, err := f.NewSheet(AverageSheet); err != nil {
		return fmt.Errorf("export: add sheet: %w", err)
	}
	if err := writeAverageSheet(f, res); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeSeriesSheet(f *excelize.File, res service.ComparisonResult) error {
	unit := "Mt"
	if res.Request.Options.ShowDensity {
		unit = "t/km²"
	}
	headers := []any{"Year"}
	for _, cs := range res.Countries {
		headers = append(headers, fmt.Sprintf("%s (%s)", cs.Country.Name, unit))
	}
	if err := f.SetSheetRow(SeriesSheet, "A1", &headers); err != nil {
		return fmt.Errorf("export: header row: %w", err)
	}
	if err := f.SetColWidth(SeriesSheet, "A", "A", 10); err != nil {
		return fmt.Errorf("export: column width: %w", err)
	}
	if len(res.Countries) > 0 {
		last, err := excelize.ColumnNumberToName(len(res.Countries) + 1)
		if err != nil {
			return fmt.Errorf("export: column name: %w", err)
		}
		if err := f.SetColWidth(SeriesSheet, "B", last, 22); err != nil {
			return fmt.Errorf("export: column width: %w", err)
		}
	}

	yearSet := map[int]bool{}
	for _, cs := range res.Countries {
		for _, p := range cs.Series {
			yearSet[p.Year] = true
		}
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	for i, year := range years {
		row := i + 2
		if err := setCell(f, SeriesSheet, 1, row, year); err != nil {
			return err
		}
		for j, cs := range res.Countries {
			v, ok := cs.Series.Lookup(year)
			if !ok {
				continue
			}
			if err := setCell(f, SeriesSheet, j+2, row, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeAverageSheet(f *excelize.File, res service.ComparisonResult) error {
	if err := f.SetSheetRow(AverageSheet, "A1", &[]any{"Year", "Average CO₂ (Mt)"}); err != nil {
		return fmt.Errorf("export: header row: %w", err)
	}
	for i, p := range res.GlobalAverage {
		if err := setCell(f, AverageSheet, 1, i+2, p.Year); err != nil {
			return err
		}
		if err := setCell(f, AverageSheet, 2, i+2, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("export: cell name: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("export: set %s!%s: %w", sheet, cell, err)
	}
	return nil
}
