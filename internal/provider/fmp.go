package provider

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/fact"
	"github.com/finsight-labs/finsight/pkg/fmp"
)

// fmpConfidence is the confidence assigned to facts normalized from FMP.
// Aggregated commercial data: high, but below a primary regulatory source.
const fmpConfidence = 90

// FMP adapts the Financial Modeling Prep client to the provider contract.
type FMP struct {
	client fmp.Client
}

// NewFMP creates the FMP provider adapter.
func NewFMP(client fmp.Client) *FMP {
	return &FMP{client: client}
}

// Name implements Provider.
func (p *FMP) Name() string { return "fmp" }

// Supports implements Provider. FMP serves every capability.
func (p *FMP) Supports(capability.Capability) bool { return true }

// Fetch implements Provider.
func (p *FMP) Fetch(ctx context.Context, c capability.Capability, subject string, _ Params) (*RawResult, error) {
	var (
		result *RawResult
		err    error
	)
	switch c {
	case capability.Profile:
		result, err = p.profile(ctx, subject)
	case capability.FinancialStatements:
		result, err = p.statements(ctx, subject)
	case capability.Executives:
		result, err = p.executives(ctx, subject)
	case capability.Ratios:
		result, err = p.ratios(ctx, subject)
	case capability.Quote:
		result, err = p.quote(ctx, subject)
	default:
		err = fmt.Errorf("fmp: unsupported capability %s", c)
	}
	if err != nil {
		return nil, classifyHTTPError(p.Name(), err)
	}
	return result, nil
}

func (p *FMP) profile(ctx context.Context, symbol string) (*RawResult, error) {
	prof, err := p.client.Profile(ctx, symbol)
	if err != nil {
		return nil, err
	}

	facts := fact.Set{}
	add := func(name string, value any) {
		facts[name] = fact.New(name, value, fact.SourceProvider, p.Name(), fmpConfidence)
	}
	add("company_name", prof.CompanyName)
	add("ticker", prof.Symbol)
	if prof.Industry != "" {
		add("industry", prof.Industry)
	}
	if prof.Sector != "" {
		add("sector", prof.Sector)
	}
	if prof.Website != "" {
		add("website", prof.Website)
	}
	if prof.CEO != "" {
		add("ceo", prof.CEO)
	}
	if prof.MarketCap > 0 {
		add("market_cap", prof.MarketCap)
	}

	return &RawResult{Facts: facts, Endpoint: "/stable/profile", Confidence: fmpConfidence}, nil
}

func (p *FMP) statements(ctx context.Context, symbol string) (*RawResult, error) {
	bs, err := p.client.BalanceSheet(ctx, symbol)
	if err != nil {
		return nil, err
	}

	facts := fact.Set{}
	add := func(name string, value float64) {
		if value != 0 {
			facts[name] = fact.New(name, value, fact.SourceProvider, p.Name(), fmpConfidence)
		}
	}
	add("total_assets", bs.TotalAssets)
	add("total_debt", bs.TotalDebt)
	add("total_equity", bs.TotalEquity)
	add("total_liabilities", bs.TotalLiabilities)
	add("cash", bs.CashAndCashEquivalents)
	add("current_assets", bs.CurrentAssets)
	add("current_liabilities", bs.CurrentLiabilities)
	if bs.FiscalYear != "" {
		facts["fiscal_year"] = fact.New("fiscal_year", bs.FiscalYear, fact.SourceProvider, p.Name(), fmpConfidence)
	}

	// The income statement rounds out the picture but its absence should
	// not void a good balance sheet.
	if is, err := p.client.IncomeStatement(ctx, symbol); err == nil {
		add("revenue", is.Revenue)
		add("net_income", is.NetIncome)
	} else {
		zap.L().Warn("fmp: income statement unavailable",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	}

	return &RawResult{Facts: facts, Endpoint: "/stable/balance-sheet-statement", Confidence: fmpConfidence}, nil
}

func (p *FMP) executives(ctx context.Context, symbol string) (*RawResult, error) {
	execs, err := p.client.Executives(ctx, symbol)
	if err != nil {
		return nil, err
	}

	entries := make([]string, 0, len(execs))
	for _, e := range execs {
		entries = append(entries, strings.TrimSpace(e.Title+": "+e.Name))
	}
	facts := fact.Set{
		"executives": fact.New("executives", strings.Join(entries, "; "), fact.SourceProvider, p.Name(), fmpConfidence),
	}
	return &RawResult{Facts: facts, Endpoint: "/stable/key-executives", Confidence: fmpConfidence}, nil
}

func (p *FMP) ratios(ctx context.Context, symbol string) (*RawResult, error) {
	r, err := p.client.Ratios(ctx, symbol)
	if err != nil {
		return nil, err
	}

	facts := fact.Set{}
	add := func(name string, value float64) {
		if value != 0 {
			facts[name] = fact.New(name, value, fact.SourceProvider, p.Name(), fmpConfidence)
		}
	}
	add("reported_current_ratio", r.CurrentRatio)
	add("reported_debt_to_equity", r.DebtToEquity)
	add("reported_net_margin", r.NetProfitMargin)
	add("reported_return_on_equity", r.ReturnOnEquity)

	return &RawResult{Facts: facts, Endpoint: "/stable/ratios", Confidence: fmpConfidence}, nil
}

func (p *FMP) quote(ctx context.Context, symbol string) (*RawResult, error) {
	q, err := p.client.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	facts := fact.Set{
		"price": fact.New("price", q.Price, fact.SourceProvider, p.Name(), fmpConfidence),
	}
	return &RawResult{Facts: facts, Endpoint: "/stable/quote", Confidence: fmpConfidence}, nil
}
