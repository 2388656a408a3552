// Package extract turns user-supplied documents into structured facts.
// Two extractors exist: an LLM-backed one for free-form documents and a
// direct spreadsheet parser for structured balance-sheet exports.
package extract

import (
	"context"
	"path/filepath"
	"strings"
)

// Document is one uploaded file.
type Document struct {
	Name string
	MIME string
	Data []byte
}

// Extraction is the structured output for one document. Confidence is the
// extractor's own 0..1 quality estimate for the whole document; per-fact
// confidence is derived from it at ingest time.
type Extraction struct {
	Facts      map[string]ExtractedFact
	Confidence float64
}

// ExtractedFact is a single fact pulled from a document, before it is
// normalized into the pipeline's fact contract.
type ExtractedFact struct {
	Value any
	Unit  string
}

// Extractor produces facts from one document.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, doc Document) (*Extraction, error)
}

// Picker selects the extractor for a document.
type Picker struct {
	llm         Extractor
	spreadsheet Extractor
}

// NewPicker creates a picker routing spreadsheets to the structured parser
// and everything else to the LLM extractor.
func NewPicker(llm, spreadsheet Extractor) *Picker {
	return &Picker{llm: llm, spreadsheet: spreadsheet}
}

// ForDocument returns the extractor to use for doc.
func (p *Picker) ForDocument(doc Document) Extractor {
	if isSpreadsheet(doc) && p.spreadsheet != nil {
		return p.spreadsheet
	}
	return p.llm
}

func isSpreadsheet(doc Document) bool {
	if strings.Contains(doc.MIME, "spreadsheet") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(doc.Name))
	return ext == ".xlsx"
}
