package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-labs/finsight/internal/fact"
)

type mockSearcher struct {
	symbol   string
	err      error
	lastName string
}

func (m *mockSearcher) SearchSymbol(_ context.Context, name string) (string, error) {
	m.lastName = name
	return m.symbol, m.err
}

func docFact(name, value string) fact.Fact {
	return fact.New(name, value, fact.SourceDocument, "doc", 85)
}

func TestResolveExplicitTickerWins(t *testing.T) {
	searcher := &mockSearcher{symbol: "OTHER"}
	r := NewResolver(searcher)

	got := r.Resolve(context.Background(), fact.Set{
		"ticker":       docFact("ticker", " acme "),
		"company_name": docFact("company_name", "Acme Corp"),
	})

	assert.Equal(t, "ACME", got)
	// The searcher is never consulted when the ticker fact is usable.
	assert.Empty(t, searcher.lastName)
}

func TestResolveFallsBackToNameSearch(t *testing.T) {
	searcher := &mockSearcher{symbol: "acn"}
	r := NewResolver(searcher)

	got := r.Resolve(context.Background(), fact.Set{
		"company_name": docFact("company_name", "Accenture plc"),
	})

	assert.Equal(t, "ACN", got)
	assert.Equal(t, "accenture", searcher.lastName)
}

func TestResolveBadTickerFactStillSearches(t *testing.T) {
	searcher := &mockSearcher{symbol: "ACME"}
	r := NewResolver(searcher)

	got := r.Resolve(context.Background(), fact.Set{
		"ticker":       docFact("ticker", "not a ticker at all"),
		"company_name": docFact("company_name", "Acme Corp"),
	})

	assert.Equal(t, "ACME", got)
}

func TestResolveSearchErrorDegrades(t *testing.T) {
	r := NewResolver(&mockSearcher{err: errors.New("search down")})

	got := r.Resolve(context.Background(), fact.Set{
		"company_name": docFact("company_name", "Acme Corp"),
	})

	assert.Empty(t, got)
}

func TestResolveNoSearcherNoName(t *testing.T) {
	r := NewResolver(nil)
	assert.Empty(t, r.Resolve(context.Background(), fact.Set{}))
	assert.Empty(t, r.Resolve(context.Background(), fact.Set{
		"company_name": docFact("company_name", "Acme Corp"),
	}))
}

func TestResolveRejectsJunkSearchResult(t *testing.T) {
	r := NewResolver(&mockSearcher{symbol: "not a symbol"})

	got := r.Resolve(context.Background(), fact.Set{
		"company_name": docFact("company_name", "Acme Corp"),
	})
	assert.Empty(t, got)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp.", "acme"},
		{"Acme Holdings, Inc.", "acme"},
		{"Nestlé S.A.", "nestle"},
		{"Smith & Wesson", "smith wesson"},
		{"Johnson-Johnson", "johnson johnson"},
		{"  ", ""},
		{"Inc", "inc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), tt.in)
	}
}
