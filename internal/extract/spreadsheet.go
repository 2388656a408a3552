package extract

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// labelAliases maps spreadsheet row labels to canonical fact names.
var labelAliases = map[string]string{
	"company":             "company_name",
	"company name":        "company_name",
	"ticker":              "ticker",
	"symbol":              "ticker",
	"total debt":          "total_debt",
	"total liabilities":   "total_liabilities",
	"total assets":        "total_assets",
	"total equity":        "total_equity",
	"shareholders equity": "total_equity",
	"current assets":      "current_assets",
	"current liabilities": "current_liabilities",
	"cash":                "cash",
	"cash and equivalents": "cash",
	"revenue":             "revenue",
	"total revenue":       "revenue",
	"net income":          "net_income",
	"fiscal year":         "fiscal_year",
}

// SpreadsheetExtractor parses balance-sheet style XLSX exports: label in the
// first column, value in the second. No LLM round trip is needed for
// structured uploads, so confidence is fixed and high.
type SpreadsheetExtractor struct{}

// NewSpreadsheetExtractor creates the XLSX extractor.
func NewSpreadsheetExtractor() *SpreadsheetExtractor {
	return &SpreadsheetExtractor{}
}

// Name implements Extractor.
func (e *SpreadsheetExtractor) Name() string { return "spreadsheet" }

// Extract implements Extractor.
func (e *SpreadsheetExtractor) Extract(ctx context.Context, doc Document) (*Extraction, error) {
	f, err := xlsx.OpenBinary(doc.Data)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open spreadsheet %s", doc.Name)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("extract: spreadsheet %s has no sheets", doc.Name)
	}

	facts := make(map[string]ExtractedFact)
	for _, row := range f.Sheets[0].Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: spreadsheet cancelled")
		}
		if len(row.Cells) < 2 {
			continue
		}
		label := normalizeLabel(row.Cells[0].String())
		name, ok := labelAliases[label]
		if !ok {
			continue
		}
		rawValue := strings.TrimSpace(row.Cells[1].String())
		if rawValue == "" {
			continue
		}
		facts[name] = ExtractedFact{Value: coerceValue(rawValue)}
	}

	if len(facts) == 0 {
		return nil, eris.Errorf("extract: no recognized rows in %s", doc.Name)
	}

	return &Extraction{Facts: facts, Confidence: 0.9}, nil
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ":")
	return strings.Join(strings.Fields(s), " ")
}

// coerceValue parses numeric cells, stripping thousands separators. Cells
// that do not parse stay as strings.
func coerceValue(raw string) any {
	cleaned := strings.ReplaceAll(raw, ",", "")
	cleaned = strings.TrimPrefix(cleaned, "$")
	if v, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return v
	}
	return raw
}
