package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/pkg/alphavantage"
)

type mockAlphaVantage struct {
	overview *alphavantage.Overview
	quote    *alphavantage.GlobalQuote
	err      error
}

func (m *mockAlphaVantage) Overview(context.Context, string) (*alphavantage.Overview, error) {
	return m.overview, m.err
}
func (m *mockAlphaVantage) GlobalQuote(context.Context, string) (*alphavantage.GlobalQuote, error) {
	return m.quote, m.err
}

func TestAlphaVantageSupports(t *testing.T) {
	p := NewAlphaVantage(&mockAlphaVantage{})
	assert.True(t, p.Supports(capability.Profile))
	assert.True(t, p.Supports(capability.Quote))
	assert.False(t, p.Supports(capability.Executives))
}

func TestAlphaVantageProfile(t *testing.T) {
	p := NewAlphaVantage(&mockAlphaVantage{overview: &alphavantage.Overview{
		Symbol:    "ACME",
		Name:      "Acme Corp",
		Sector:    "Industrials",
		MarketCap: "5000000000",
	}})

	res, err := p.Fetch(context.Background(), capability.Profile, "ACME", nil)
	require.NoError(t, err)

	assert.Equal(t, avConfidence, res.Confidence)
	assert.Equal(t, "Acme Corp", res.Facts["company_name"].String())
	v, ok := res.Facts["market_cap"].Float()
	assert.True(t, ok)
	assert.Equal(t, 5e9, v)
}

func TestAlphaVantageSkipsNoneAndUnparsable(t *testing.T) {
	p := NewAlphaVantage(&mockAlphaVantage{overview: &alphavantage.Overview{
		Symbol:    "ACME",
		Name:      "Acme Corp",
		Industry:  "None",
		MarketCap: "n/a",
	}})

	res, err := p.Fetch(context.Background(), capability.Profile, "ACME", nil)
	require.NoError(t, err)

	_, hasIndustry := res.Facts["industry"]
	assert.False(t, hasIndustry)
	_, hasMarketCap := res.Facts["market_cap"]
	assert.False(t, hasMarketCap)
}

func TestAlphaVantageQuote(t *testing.T) {
	q := &alphavantage.GlobalQuote{}
	q.Quote.Symbol = "ACME"
	q.Quote.Price = "42.50"
	p := NewAlphaVantage(&mockAlphaVantage{quote: q})

	res, err := p.Fetch(context.Background(), capability.Quote, "ACME", nil)
	require.NoError(t, err)

	v, _ := res.Facts["price"].Float()
	assert.Equal(t, 42.50, v)
}

func TestAlphaVantageQuoteBadPrice(t *testing.T) {
	q := &alphavantage.GlobalQuote{}
	q.Quote.Symbol = "ACME"
	q.Quote.Price = "not-a-number"
	p := NewAlphaVantage(&mockAlphaVantage{quote: q})

	_, err := p.Fetch(context.Background(), capability.Quote, "ACME", nil)
	assert.Error(t, err)
}

func TestAlphaVantageThrottledMapped(t *testing.T) {
	p := NewAlphaVantage(&mockAlphaVantage{err: alphavantage.ErrThrottled})
	_, err := p.Fetch(context.Background(), capability.Profile, "ACME", nil)
	assert.True(t, IsThrottled(err))
}

func TestAlphaVantageUnsupportedCapability(t *testing.T) {
	p := NewAlphaVantage(&mockAlphaVantage{})
	_, err := p.Fetch(context.Background(), capability.Executives, "ACME", nil)
	assert.Error(t, err)
}
