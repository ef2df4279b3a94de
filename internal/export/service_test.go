package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleWorkbook() RunWorkbook {
	return RunWorkbook{
		Summary: []SummaryRow{{Key: "processed_files", Value: 2}, {Key: "default_model", Value: "m1"}},
		Results: []ResultRow{
			{SourceID: "a.pdf", Status: "success", Tracks: 5, Model: "m1", Provider: "A", Tokens: 120},
			{SourceID: "b.pdf", Status: "failed", Error: strings.Repeat("x", 600)},
		},
		Usage: []UsageRow{{Scope: "model", Name: "m1", Count: 1, Tokens: 120, Cost: 0.5}},
	}
}

func TestBytesLaysOutSheets(t *testing.T) {
	data, err := Bytes(sampleWorkbook())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetSummary, SheetResults, SheetUsage}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"processed_files", "2"}, summary[1])

	results, err := f.GetRows(SheetResults)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Source ID", results[0][0])
	assert.Equal(t, "a.pdf", results[1][0])
	assert.Equal(t, "5", results[1][5])
	assert.Equal(t, 500, len([]rune(results[2][10])))

	usage, err := f.GetRows(SheetUsage)
	require.NoError(t, err)
	assert.Equal(t, []string{"model", "m1", "1", "120", "0.5"}, usage[1])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteFile(path, sampleWorkbook()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(SheetResults)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
