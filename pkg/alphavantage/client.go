// Package alphavantage is a thin client for the Alpha Vantage API.
//
// Alpha Vantage reports throttling inside a 200 response body ("Note" or
// "Information" fields) rather than with a 429, so the client sniffs those
// fields and surfaces ErrThrottled.
package alphavantage

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/finsight-labs/finsight/pkg/httpapi"
)

const defaultBaseURL = "https://www.alphavantage.co"

// ErrThrottled is returned when the API signals its rate limit was hit.
var ErrThrottled = eris.New("alphavantage: rate limit reached")

// Client defines the Alpha Vantage operations used by the orchestration core.
type Client interface {
	Overview(ctx context.Context, symbol string) (*Overview, error)
	GlobalQuote(ctx context.Context, symbol string) (*GlobalQuote, error)
}

// Overview is the company overview payload. Numeric fields arrive as
// strings and are passed through as-is; adapters parse what they need.
type Overview struct {
	Symbol             string `json:"Symbol"`
	Name               string `json:"Name"`
	Description        string `json:"Description"`
	Sector             string `json:"Sector"`
	Industry           string `json:"Industry"`
	MarketCap          string `json:"MarketCapitalization"`
	RevenueTTM         string `json:"RevenueTTM"`
	ProfitMargin       string `json:"ProfitMargin"`
	ReturnOnEquityTTM  string `json:"ReturnOnEquityTTM"`
	FiscalYearEnd      string `json:"FiscalYearEnd"`

	// Throttle signals hidden in 200 responses.
	Note        string `json:"Note,omitempty"`
	Information string `json:"Information,omitempty"`
}

// GlobalQuote is the current quote payload.
type GlobalQuote struct {
	Quote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note        string `json:"Note,omitempty"`
	Information string `json:"Information,omitempty"`
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

// NewClient creates an Alpha Vantage client. The free tier allows 5
// requests per minute; the limiter keeps bursts from burning the quota.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    httpapi.NewHTTPClient(30 * time.Second),
		limiter: rate.NewLimiter(rate.Every(13*time.Second), 2),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, function, symbol string, out any) error {
	query := url.Values{
		"function": {function},
		"symbol":   {symbol},
		"apikey":   {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+query.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "alphavantage: create request")
	}
	return httpapi.GetJSON(req, c.http, c.limiter, "alphavantage", out)
}

func (c *httpClient) Overview(ctx context.Context, symbol string) (*Overview, error) {
	var out Overview
	if err := c.get(ctx, "OVERVIEW", symbol, &out); err != nil {
		return nil, err
	}
	if err := throttleCheck(out.Note, out.Information); err != nil {
		return nil, err
	}
	if out.Symbol == "" {
		return nil, eris.Errorf("alphavantage: no overview for %s", symbol)
	}
	return &out, nil
}

func (c *httpClient) GlobalQuote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	var out GlobalQuote
	if err := c.get(ctx, "GLOBAL_QUOTE", symbol, &out); err != nil {
		return nil, err
	}
	if err := throttleCheck(out.Note, out.Information); err != nil {
		return nil, err
	}
	if out.Quote.Symbol == "" {
		return nil, eris.Errorf("alphavantage: no quote for %s", symbol)
	}
	return &out, nil
}

func throttleCheck(fields ...string) error {
	for _, f := range fields {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "rate limit") || strings.Contains(lower, "call frequency") {
			return ErrThrottled
		}
	}
	return nil
}
