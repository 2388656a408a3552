package extract

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().Value = v
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestSpreadsheetExtract(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"Company Name:", "Acme Corp"},
		{"Ticker", "ACME"},
		{"Total Debt", "5,200,000"},
		{"Shareholders Equity", "$8,000,000"},
		{"Fiscal Year", "2025"},
		{"Prepared By", "Finance Team"},
	})

	e := NewSpreadsheetExtractor()
	ex, err := e.Extract(context.Background(), Document{Name: "balance.xlsx", Data: data})
	require.NoError(t, err)

	assert.InDelta(t, 0.9, ex.Confidence, 0.001)
	assert.Equal(t, "Acme Corp", ex.Facts["company_name"].Value)
	assert.Equal(t, "ACME", ex.Facts["ticker"].Value)
	assert.Equal(t, 5200000.0, ex.Facts["total_debt"].Value)
	// Dollar signs and separators are stripped before parsing.
	assert.Equal(t, 8000000.0, ex.Facts["total_equity"].Value)
	assert.Equal(t, 2025.0, ex.Facts["fiscal_year"].Value)
	// Unrecognized labels are ignored.
	assert.Len(t, ex.Facts, 5)
}

func TestSpreadsheetExtractNoRecognizedRows(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"Quarterly Headcount", "410"},
	})

	e := NewSpreadsheetExtractor()
	_, err := e.Extract(context.Background(), Document{Name: "hr.xlsx", Data: data})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no recognized rows")
}

func TestSpreadsheetExtractCorruptFile(t *testing.T) {
	e := NewSpreadsheetExtractor()
	_, err := e.Extract(context.Background(), Document{Name: "bad.xlsx", Data: []byte("not a zip")})
	assert.Error(t, err)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "total debt", normalizeLabel("  Total   Debt: "))
	assert.Equal(t, "cash", normalizeLabel("CASH"))
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, 1250.5, coerceValue("1,250.5"))
	assert.Equal(t, 99.0, coerceValue("$99"))
	assert.Equal(t, "n/a", coerceValue("n/a"))
}

func TestPickerRouting(t *testing.T) {
	llm := NewLLMExtractor(nil, "model")
	sheet := NewSpreadsheetExtractor()
	p := NewPicker(llm, sheet)

	assert.Equal(t, "spreadsheet", p.ForDocument(Document{Name: "b.xlsx"}).Name())
	assert.Equal(t, "spreadsheet", p.ForDocument(Document{Name: "b", MIME: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}).Name())
	assert.Equal(t, "llm", p.ForDocument(Document{Name: "report.txt"}).Name())
}
