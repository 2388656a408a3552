package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, handler http.HandlerFunc) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL)), srv
}

func TestProfile(t *testing.T) {
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "ACME", r.URL.Query().Get("symbol"))
		w.Write([]byte(`[{"symbol": "ACME", "companyName": "Acme Corp", "sector": "Industrials", "marketCap": 1200000000}]`))
	})

	p, err := c.Profile(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", p.CompanyName)
	assert.Equal(t, "Industrials", p.Sector)
	assert.Equal(t, 1200000000.0, p.MarketCap)
}

func TestProfileEmptyResponse(t *testing.T) {
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := c.Profile(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no profile")
}

func TestBalanceSheetRequestsLatestAnnual(t *testing.T) {
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balance-sheet-statement", r.URL.Path)
		assert.Equal(t, "annual", r.URL.Query().Get("period"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Write([]byte(`[{"symbol": "ACME", "fiscalYear": "2025", "totalAssets": 9000000, "totalDebt": 2000000}]`))
	})

	bs, err := c.BalanceSheet(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "2025", bs.FiscalYear)
	assert.Equal(t, 9000000.0, bs.TotalAssets)
}

func TestExecutives(t *testing.T) {
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/key-executives", r.URL.Path)
		w.Write([]byte(`[{"title": "CEO", "name": "Jane Smith"}, {"title": "CFO", "name": "Bob Jones"}]`))
	})

	execs, err := c.Executives(context.Background(), "ACME")
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "Jane Smith", execs[0].Name)
}

func TestSearchSymbol(t *testing.T) {
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search-name", r.URL.Path)
		assert.Equal(t, "acme", r.URL.Query().Get("query"))
		w.Write([]byte(`[{"symbol": "ACME", "name": "Acme Corp"}]`))
	})

	sym, err := c.SearchSymbol(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "ACME", sym)
}

func TestSearchSymbolNoMatch(t *testing.T) {
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := c.SearchSymbol(context.Background(), "nonexistent")
	assert.Error(t, err)
}
