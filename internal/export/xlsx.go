// Package export renders a market collection as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kjannette/watchtower-backend/internal/models"
	"github.com/kjannette/watchtower-backend/internal/report"
)

const (
	MarketsSheet = "Markets"
	SummarySheet = "Summary"
)

// Headers is the Markets sheet header row: the report columns plus the
// derived category.
var Headers = append(append([]string{}, report.Columns...), "Category")

// WriteWorkbook writes records to w as an .xlsx file.
func WriteWorkbook(w io.Writer, records []models.MarketRecord) error {
	f, err := Build(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Build assembles the workbook in memory.
func Build(records []models.MarketRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", MarketsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeMarkets(f, records); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, records); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeMarkets(f *excelize.File, records []models.MarketRecord) error {
	sw, err := f.NewStreamWriter(MarketsSheet)
	if err != nil {
		return fmt.Errorf("markets stream: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	head := make([]any, len(Headers))
	for i, h := range Headers {
		head[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", head, excelize.RowOpts{}); err != nil {
		return fmt.Errorf("markets header: %w", err)
	}

	for i, m := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			m.Rank, m.Platform, m.Question, m.URL, m.MarketPrice,
			m.ModelEstimate, m.Edge, m.AlphaScore, m.Confidence, m.KellyFraction,
			m.Recommendation, m.MentionCount, m.ArticleCount, m.HoursUntilClose,
			m.Validated, report.Classify(m.Recommendation).String(),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("markets row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush markets: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, records []models.MarketRecord) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}

	sum := report.Summarize(records)
	rows := [][]any{
		{"Total markets", sum.TotalMarkets},
		{"Average edge", report.FormatPercent(sum.AvgEdge)},
		{"High confidence", sum.HighConfidence},
		{"Strong buys", sum.StrongBuys},
		{},
		{"Category", "Count"},
	}
	counts := report.CategoryCounts(records)
	for _, c := range report.Categories {
		rows = append(rows, []any{c.String(), counts[c.String()]})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("summary row %d: %w", i+1, err)
		}
	}
	return nil
}
