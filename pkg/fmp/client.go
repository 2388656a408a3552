// Package fmp is a thin client for the Financial Modeling Prep API.
package fmp

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/finsight-labs/finsight/pkg/httpapi"
)

const defaultBaseURL = "https://financialmodelingprep.com/stable"

// Client defines the FMP operations used by the orchestration core.
type Client interface {
	Profile(ctx context.Context, symbol string) (*Profile, error)
	BalanceSheet(ctx context.Context, symbol string) (*BalanceSheet, error)
	IncomeStatement(ctx context.Context, symbol string) (*IncomeStatement, error)
	Ratios(ctx context.Context, symbol string) (*Ratios, error)
	Executives(ctx context.Context, symbol string) ([]Executive, error)
	Quote(ctx context.Context, symbol string) (*Quote, error)
	SearchSymbol(ctx context.Context, name string) (string, error)
}

// Profile is a company profile record.
type Profile struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	Industry    string  `json:"industry"`
	Sector      string  `json:"sector"`
	Website     string  `json:"website"`
	CEO         string  `json:"ceo"`
	Employees   string  `json:"fullTimeEmployees"`
	MarketCap   float64 `json:"marketCap"`
	Description string  `json:"description"`
}

// BalanceSheet is the latest annual balance sheet.
type BalanceSheet struct {
	Symbol                 string  `json:"symbol"`
	FiscalYear             string  `json:"fiscalYear"`
	Date                   string  `json:"date"`
	TotalAssets            float64 `json:"totalAssets"`
	TotalDebt              float64 `json:"totalDebt"`
	TotalEquity            float64 `json:"totalStockholdersEquity"`
	TotalLiabilities       float64 `json:"totalLiabilities"`
	CashAndCashEquivalents float64 `json:"cashAndCashEquivalents"`
	CurrentAssets          float64 `json:"totalCurrentAssets"`
	CurrentLiabilities     float64 `json:"totalCurrentLiabilities"`
}

// IncomeStatement is the latest annual income statement.
type IncomeStatement struct {
	Symbol     string  `json:"symbol"`
	FiscalYear string  `json:"fiscalYear"`
	Date       string  `json:"date"`
	Revenue    float64 `json:"revenue"`
	NetIncome  float64 `json:"netIncome"`
}

// Ratios is the latest annual ratio set.
type Ratios struct {
	Symbol             string  `json:"symbol"`
	CurrentRatio       float64 `json:"currentRatio"`
	DebtToEquity       float64 `json:"debtToEquityRatio"`
	NetProfitMargin    float64 `json:"netProfitMargin"`
	ReturnOnEquity     float64 `json:"returnOnEquity"`
	InterestCoverage   float64 `json:"interestCoverageRatio"`
}

// Executive is one company officer.
type Executive struct {
	Title string `json:"title"`
	Name  string `json:"name"`
}

// Quote is a delayed market quote.
type Quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

type searchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc httpapi.Doer) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    httpapi.Doer
	limiter *rate.Limiter
}

// NewClient creates an FMP client. FMP allows bursts but enforces a
// per-minute budget; 5 req/s with burst 5 stays well inside the paid tiers.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    httpapi.NewHTTPClient(30 * time.Second),
		limiter: rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, path string, query url.Values, out any) error {
	query.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "fmp: create request")
	}
	return httpapi.GetJSON(req, c.http, c.limiter, "fmp", out)
}

func (c *httpClient) Profile(ctx context.Context, symbol string) (*Profile, error) {
	var out []Profile
	if err := c.get(ctx, "/profile", url.Values{"symbol": {symbol}}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, eris.Errorf("fmp: no profile for %s", symbol)
	}
	return &out[0], nil
}

func (c *httpClient) BalanceSheet(ctx context.Context, symbol string) (*BalanceSheet, error) {
	var out []BalanceSheet
	query := url.Values{"symbol": {symbol}, "period": {"annual"}, "limit": {"1"}}
	if err := c.get(ctx, "/balance-sheet-statement", query, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, eris.Errorf("fmp: no balance sheet for %s", symbol)
	}
	return &out[0], nil
}

func (c *httpClient) IncomeStatement(ctx context.Context, symbol string) (*IncomeStatement, error) {
	var out []IncomeStatement
	query := url.Values{"symbol": {symbol}, "period": {"annual"}, "limit": {"1"}}
	if err := c.get(ctx, "/income-statement", query, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, eris.Errorf("fmp: no income statement for %s", symbol)
	}
	return &out[0], nil
}

func (c *httpClient) Ratios(ctx context.Context, symbol string) (*Ratios, error) {
	var out []Ratios
	query := url.Values{"symbol": {symbol}, "period": {"annual"}, "limit": {"1"}}
	if err := c.get(ctx, "/ratios", query, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, eris.Errorf("fmp: no ratios for %s", symbol)
	}
	return &out[0], nil
}

func (c *httpClient) Executives(ctx context.Context, symbol string) ([]Executive, error) {
	var out []Executive
	if err := c.get(ctx, "/key-executives", url.Values{"symbol": {symbol}}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, eris.Errorf("fmp: no executives for %s", symbol)
	}
	return out, nil
}

func (c *httpClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var out []Quote
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, eris.Errorf("fmp: no quote for %s", symbol)
	}
	return &out[0], nil
}

func (c *httpClient) SearchSymbol(ctx context.Context, name string) (string, error) {
	var out []searchResult
	query := url.Values{"query": {name}, "limit": {"1"}}
	if err := c.get(ctx, "/search-name", query, &out); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", eris.Errorf("fmp: no symbol match for %q", name)
	}
	return out[0].Symbol, nil
}
