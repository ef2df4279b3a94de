// Package export renders the run report as an XLSX workbook.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary = "Summary"
	SheetResults = "Results"
	SheetUsage   = "Usage"
)

// SummaryRow is one key/value line of the summary sheet.
type SummaryRow struct {
	Key   string
	Value any
}

// ResultRow mirrors one processed document.
type ResultRow struct {
	SourceID       string
	SourcePath     string
	Status         string
	OutputPath     string
	ElapsedSeconds float64
	Tracks         int
	Model          string
	Provider       string
	Tokens         int
	Cost           float64
	Error          string
}

// UsageRow is one model or provider usage line; Scope is "model" or "provider".
type UsageRow struct {
	Scope  string
	Name   string
	Count  int
	Tokens int
	Cost   float64
}

type RunWorkbook struct {
	Summary []SummaryRow
	Results []ResultRow
	Usage   []UsageRow
}

// Build lays the workbook out on three sheets.
func Build(wb RunWorkbook) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetResults, SheetUsage} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	summary := make([][]any, 0, len(wb.Summary))
	for _, r := range wb.Summary {
		summary = append(summary, []any{r.Key, r.Value})
	}
	if err := writeTable(f, SheetSummary, []string{"Metric", "Value"}, summary); err != nil {
		return nil, err
	}

	results := make([][]any, 0, len(wb.Results))
	for _, r := range wb.Results {
		results = append(results, []any{
			r.SourceID, r.SourcePath, r.Status, r.OutputPath, r.ElapsedSeconds,
			r.Tracks, r.Model, r.Provider, r.Tokens, r.Cost, truncate(r.Error, 500),
		})
	}
	if err := writeTable(f, SheetResults, []string{
		"Source ID", "Source Path", "Status", "Output Path", "Elapsed (s)",
		"Tracks", "Model", "Provider", "Tokens", "Cost", "Error",
	}, results); err != nil {
		return nil, err
	}

	usage := make([][]any, 0, len(wb.Usage))
	for _, r := range wb.Usage {
		usage = append(usage, []any{r.Scope, r.Name, r.Count, r.Tokens, r.Cost})
	}
	if err := writeTable(f, SheetUsage, []string{"Scope", "Name", "Count", "Tokens", "Cost"}, usage); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(SheetSummary, "A", "A", 28)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)
	_ = f.SetColWidth(SheetResults, "A", "B", 48) // id, path
	_ = f.SetColWidth(SheetResults, "D", "D", 48) // output
	_ = f.SetColWidth(SheetResults, "G", "G", 32) // model
	_ = f.SetColWidth(SheetResults, "K", "K", 60) // error
	_ = f.SetColWidth(SheetUsage, "B", "B", 32)
	return f, nil
}

func writeTable(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Bytes renders the workbook in memory.
func Bytes(wb RunWorkbook) ([]byte, error) {
	f, err := Build(wb)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders the workbook and replaces path atomically.
func WriteFile(path string, wb RunWorkbook) error {
	data, err := Bytes(wb)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".xlsx-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
