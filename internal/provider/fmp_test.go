package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/pkg/fmp"
	"github.com/finsight-labs/finsight/pkg/httpapi"
)

// mockFMP implements fmp.Client with canned responses.
type mockFMP struct {
	profile      *fmp.Profile
	balanceSheet *fmp.BalanceSheet
	income       *fmp.IncomeStatement
	ratios       *fmp.Ratios
	execs        []fmp.Executive
	quote        *fmp.Quote
	err          error
	incomeErr    error
}

func (m *mockFMP) Profile(context.Context, string) (*fmp.Profile, error) {
	return m.profile, m.err
}
func (m *mockFMP) BalanceSheet(context.Context, string) (*fmp.BalanceSheet, error) {
	return m.balanceSheet, m.err
}
func (m *mockFMP) IncomeStatement(context.Context, string) (*fmp.IncomeStatement, error) {
	if m.incomeErr != nil {
		return nil, m.incomeErr
	}
	return m.income, m.err
}
func (m *mockFMP) Ratios(context.Context, string) (*fmp.Ratios, error) {
	return m.ratios, m.err
}
func (m *mockFMP) Executives(context.Context, string) ([]fmp.Executive, error) {
	return m.execs, m.err
}
func (m *mockFMP) Quote(context.Context, string) (*fmp.Quote, error) {
	return m.quote, m.err
}
func (m *mockFMP) SearchSymbol(context.Context, string) (string, error) {
	return "", m.err
}

func TestFMPSupportsEverything(t *testing.T) {
	p := NewFMP(&mockFMP{})
	for _, c := range capability.All() {
		assert.True(t, p.Supports(c), string(c))
	}
}

func TestFMPProfile(t *testing.T) {
	p := NewFMP(&mockFMP{profile: &fmp.Profile{
		Symbol:      "ACME",
		CompanyName: "Acme Corp",
		Sector:      "Industrials",
		MarketCap:   5e9,
	}})

	res, err := p.Fetch(context.Background(), capability.Profile, "ACME", nil)
	require.NoError(t, err)

	assert.Equal(t, fmpConfidence, res.Confidence)
	assert.Equal(t, "Acme Corp", res.Facts["company_name"].String())
	assert.Equal(t, "ACME", res.Facts["ticker"].String())
	assert.Equal(t, "fmp", res.Facts["ticker"].SourceName)
	// Empty optional fields are omitted entirely, not stored as blanks.
	_, ok := res.Facts["website"]
	assert.False(t, ok)
}

func TestFMPStatementsToleratesMissingIncome(t *testing.T) {
	p := NewFMP(&mockFMP{
		balanceSheet: &fmp.BalanceSheet{
			TotalAssets:        100,
			TotalDebt:          40,
			TotalEquity:        60,
			CurrentAssets:      30,
			CurrentLiabilities: 20,
			FiscalYear:         "2025",
		},
		incomeErr: errors.New("income endpoint down"),
	})

	res, err := p.Fetch(context.Background(), capability.FinancialStatements, "ACME", nil)
	require.NoError(t, err)

	v, _ := res.Facts["total_assets"].Float()
	assert.Equal(t, 100.0, v)
	assert.Equal(t, "2025", res.Facts["fiscal_year"].String())
	_, ok := res.Facts["revenue"]
	assert.False(t, ok)
}

func TestFMPStatementsRequiresBalanceSheet(t *testing.T) {
	p := NewFMP(&mockFMP{err: errors.New("no data")})
	_, err := p.Fetch(context.Background(), capability.FinancialStatements, "ACME", nil)
	assert.Error(t, err)
}

func TestFMPExecutivesJoined(t *testing.T) {
	p := NewFMP(&mockFMP{execs: []fmp.Executive{
		{Title: "CEO", Name: "Jane Smith"},
		{Title: "CFO", Name: "Bob Jones"},
	}})

	res, err := p.Fetch(context.Background(), capability.Executives, "ACME", nil)
	require.NoError(t, err)
	assert.Equal(t, "CEO: Jane Smith; CFO: Bob Jones", res.Facts["executives"].String())
}

func TestFMPRatiosPrefixed(t *testing.T) {
	p := NewFMP(&mockFMP{ratios: &fmp.Ratios{CurrentRatio: 1.8, DebtToEquity: 0.6}})

	res, err := p.Fetch(context.Background(), capability.Ratios, "ACME", nil)
	require.NoError(t, err)

	// Reported ratios never collide with locally computed metrics.
	_, hasComputedName := res.Facts["current_ratio"]
	assert.False(t, hasComputedName)
	v, _ := res.Facts["reported_current_ratio"].Float()
	assert.Equal(t, 1.8, v)
}

func TestFMPThrottledMapped(t *testing.T) {
	p := NewFMP(&mockFMP{err: &httpapi.StatusError{StatusCode: 429}})
	_, err := p.Fetch(context.Background(), capability.Quote, "ACME", nil)
	assert.True(t, IsThrottled(err))
}

func TestFMPUnauthorizedMapped(t *testing.T) {
	p := NewFMP(&mockFMP{err: &httpapi.StatusError{StatusCode: 403}})
	_, err := p.Fetch(context.Background(), capability.Profile, "ACME", nil)
	assert.True(t, IsUnauthorized(err))
}
