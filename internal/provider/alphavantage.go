package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/fact"
	"github.com/finsight-labs/finsight/pkg/alphavantage"
)

// avConfidence reflects Alpha Vantage's aggregated, sometimes-stale data.
const avConfidence = 80

// AlphaVantage adapts the Alpha Vantage client to the provider contract.
type AlphaVantage struct {
	client alphavantage.Client
}

// NewAlphaVantage creates the Alpha Vantage provider adapter.
func NewAlphaVantage(client alphavantage.Client) *AlphaVantage {
	return &AlphaVantage{client: client}
}

// Name implements Provider.
func (p *AlphaVantage) Name() string { return "alphavantage" }

// Supports implements Provider. The overview endpoint covers profile,
// trailing-twelve-month statement fragments, and reported ratios.
func (p *AlphaVantage) Supports(c capability.Capability) bool {
	switch c {
	case capability.Profile, capability.FinancialStatements, capability.Ratios, capability.Quote:
		return true
	}
	return false
}

// Fetch implements Provider. Alpha Vantage hides throttling inside 200
// responses; the client surfaces it as ErrThrottled and it is re-mapped to
// the taxonomy here.
func (p *AlphaVantage) Fetch(ctx context.Context, c capability.Capability, subject string, _ Params) (*RawResult, error) {
	var (
		result *RawResult
		err    error
	)
	switch c {
	case capability.Profile:
		result, err = p.overviewFacts(ctx, subject, profileFields)
	case capability.FinancialStatements:
		result, err = p.overviewFacts(ctx, subject, statementFields)
	case capability.Ratios:
		result, err = p.overviewFacts(ctx, subject, ratioFields)
	case capability.Quote:
		result, err = p.quote(ctx, subject)
	default:
		err = fmt.Errorf("alphavantage: unsupported capability %s", c)
	}
	if err != nil {
		if errors.Is(err, alphavantage.ErrThrottled) {
			return nil, &ThrottledError{Provider: p.Name()}
		}
		return nil, classifyHTTPError(p.Name(), err)
	}
	return result, nil
}

type fieldKind int

const (
	profileFields fieldKind = iota
	statementFields
	ratioFields
)

func (p *AlphaVantage) overviewFacts(ctx context.Context, symbol string, kind fieldKind) (*RawResult, error) {
	ov, err := p.client.Overview(ctx, symbol)
	if err != nil {
		return nil, err
	}

	facts := fact.Set{}
	addStr := func(name, value string) {
		if value != "" && value != "None" {
			facts[name] = fact.New(name, value, fact.SourceProvider, p.Name(), avConfidence)
		}
	}
	addNum := func(name, raw string) {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v != 0 {
			facts[name] = fact.New(name, v, fact.SourceProvider, p.Name(), avConfidence)
		}
	}

	switch kind {
	case profileFields:
		addStr("company_name", ov.Name)
		addStr("ticker", ov.Symbol)
		addStr("sector", ov.Sector)
		addStr("industry", ov.Industry)
		addNum("market_cap", ov.MarketCap)
	case statementFields:
		// Overview carries trailing-twelve-month fragments only.
		addNum("revenue", ov.RevenueTTM)
		addStr("fiscal_year", ov.FiscalYearEnd)
	case ratioFields:
		addNum("reported_net_margin", ov.ProfitMargin)
		addNum("reported_return_on_equity", ov.ReturnOnEquityTTM)
	}

	if len(facts) == 0 {
		return nil, fmt.Errorf("alphavantage: overview for %s held no usable fields", symbol)
	}
	return &RawResult{Facts: facts, Endpoint: "/query?function=OVERVIEW", Confidence: avConfidence}, nil
}

func (p *AlphaVantage) quote(ctx context.Context, symbol string) (*RawResult, error) {
	q, err := p.client.GlobalQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	price, err := strconv.ParseFloat(q.Quote.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: bad price %q for %s", q.Quote.Price, symbol)
	}
	facts := fact.Set{
		"price": fact.New("price", price, fact.SourceProvider, p.Name(), avConfidence),
	}
	return &RawResult{Facts: facts, Endpoint: "/query?function=GLOBAL_QUOTE", Confidence: avConfidence}, nil
}
