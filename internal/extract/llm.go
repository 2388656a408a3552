package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/finsight-labs/finsight/pkg/anthropic"
)

const extractSystemPrompt = `You are a financial document analyst. Extract facts from the document below.

Return ONLY a JSON object with this shape:
{
  "confidence": 0.0-1.0,
  "facts": {
    "<fact_name>": {"value": <number or string>, "unit": "<optional unit>"}
  }
}

Use snake_case fact names. Prefer these canonical names when the document
supports them: company_name, ticker, total_debt, total_assets, total_equity,
current_assets, current_liabilities, cash, revenue, net_income, fiscal_year.
Numbers must be plain (no currency symbols, no thousands separators).
Only include facts the document actually states. If the document is not a
financial document, return {"confidence": 0, "facts": {}}.`

// maxDocumentChars bounds how much document text is sent per request.
const maxDocumentChars = 60000

// LLMExtractor extracts facts from free-form documents via Claude.
type LLMExtractor struct {
	client anthropic.Client
	model  string
}

// NewLLMExtractor creates an LLM-backed extractor.
func NewLLMExtractor(client anthropic.Client, model string) *LLMExtractor {
	return &LLMExtractor{client: client, model: model}
}

// Name implements Extractor.
func (e *LLMExtractor) Name() string { return "llm" }

// Extract implements Extractor. The document bytes are treated as text;
// binary formats should be routed to a structured extractor instead.
func (e *LLMExtractor) Extract(ctx context.Context, doc Document) (*Extraction, error) {
	text := string(doc.Data)
	if len(text) > maxDocumentChars {
		text = text[:maxDocumentChars]
	}
	if strings.TrimSpace(text) == "" {
		return nil, eris.Errorf("extract: document %s is empty", doc.Name)
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 2048,
		System:    []anthropic.SystemBlock{{Text: extractSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: "Document: " + doc.Name + "\n\n" + text},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: document %s", doc.Name)
	}

	var raw strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}

	extraction, err := parseExtractionJSON(raw.String())
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse response for %s", doc.Name)
	}

	zap.L().Debug("extract: llm extraction complete",
		zap.String("document", doc.Name),
		zap.Int("facts", len(extraction.Facts)),
		zap.Float64("confidence", extraction.Confidence),
	)
	return extraction, nil
}

// parseExtractionJSON parses the model's JSON reply, tolerating markdown
// code fences around the object.
func parseExtractionJSON(raw string) (*Extraction, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "{"); i > 0 {
		raw = raw[i:]
	}
	if i := strings.LastIndex(raw, "}"); i >= 0 {
		raw = raw[:i+1]
	}

	var parsed struct {
		Confidence float64 `json:"confidence"`
		Facts      map[string]struct {
			Value any    `json:"value"`
			Unit  string `json:"unit"`
		} `json:"facts"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, eris.Wrap(err, "unmarshal extraction")
	}

	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}

	facts := make(map[string]ExtractedFact, len(parsed.Facts))
	for name, f := range parsed.Facts {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" || f.Value == nil {
			continue
		}
		facts[name] = ExtractedFact{Value: f.Value, Unit: f.Unit}
	}

	return &Extraction{Facts: facts, Confidence: parsed.Confidence}, nil
}
