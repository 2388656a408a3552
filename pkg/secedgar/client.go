// Package secedgar is a thin client for the SEC EDGAR company facts API.
// EDGAR requires a descriptive User-Agent and tolerates at most 10
// requests per second.
package secedgar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/finsight-labs/finsight/pkg/httpapi"
)

const (
	defaultDataBaseURL = "https://data.sec.gov"
	defaultFileBaseURL = "https://www.sec.gov"
)

// Client defines the EDGAR operations used by the orchestration core.
type Client interface {
	ResolveCIK(ctx context.Context, ticker string) (string, error)
	CompanyFacts(ctx context.Context, cik string) (*CompanyFacts, error)
}

// CompanyFacts is the XBRL company facts payload, reduced to the us-gaap
// concepts the adapters read.
type CompanyFacts struct {
	CIK        int                   `json:"cik"`
	EntityName string                `json:"entityName"`
	Facts      map[string]ConceptMap `json:"facts"`
}

// ConceptMap maps concept tag to its reported units.
type ConceptMap map[string]Concept

// Concept holds every reported unit series for one tag.
type Concept struct {
	Label string                 `json:"label"`
	Units map[string][]FactPoint `json:"units"`
}

// FactPoint is one reported value.
type FactPoint struct {
	End   string  `json:"end"`
	Value float64 `json:"val"`
	Form  string  `json:"form"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"`
}

// LatestAnnual returns the most recent 10-K value for a us-gaap tag, in USD.
func (cf *CompanyFacts) LatestAnnual(tag string) (float64, bool) {
	gaap, ok := cf.Facts["us-gaap"]
	if !ok {
		return 0, false
	}
	concept, ok := gaap[tag]
	if !ok {
		return 0, false
	}
	points, ok := concept.Units["USD"]
	if !ok {
		return 0, false
	}

	var best *FactPoint
	for i := range points {
		p := &points[i]
		if p.Form != "10-K" {
			continue
		}
		if best == nil || p.End > best.End {
			best = p
		}
	}
	if best == nil {
		return 0, false
	}
	return best.Value, true
}

type tickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURLs overrides the data and file base URLs (tests).
func WithBaseURLs(dataURL, fileURL string) Option {
	return func(c *httpClient) {
		c.dataBaseURL = dataURL
		c.fileBaseURL = fileURL
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc httpapi.Doer) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	userAgent   string
	dataBaseURL string
	fileBaseURL string
	http        httpapi.Doer
	limiter     *rate.Limiter
}

// NewClient creates an EDGAR client. userAgent must identify the caller
// per SEC fair-access policy.
func NewClient(userAgent string, opts ...Option) Client {
	c := &httpClient{
		userAgent:   userAgent,
		dataBaseURL: defaultDataBaseURL,
		fileBaseURL: defaultFileBaseURL,
		http:        httpapi.NewHTTPClient(30 * time.Second),
		limiter:     rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "secedgar: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return httpapi.GetJSON(req, c.http, c.limiter, "secedgar", out)
}

// ResolveCIK maps a ticker to a zero-padded 10-digit CIK.
func (c *httpClient) ResolveCIK(ctx context.Context, ticker string) (string, error) {
	var entries map[string]tickerEntry
	if err := c.get(ctx, c.fileBaseURL+"/files/company_tickers.json", &entries); err != nil {
		return "", err
	}

	want := strings.ToUpper(strings.TrimSpace(ticker))
	for _, e := range entries {
		if strings.ToUpper(e.Ticker) == want {
			return fmt.Sprintf("%010d", e.CIK), nil
		}
	}
	return "", eris.Errorf("secedgar: no CIK for ticker %s", ticker)
}

// CompanyFacts fetches the XBRL facts for a zero-padded CIK.
func (c *httpClient) CompanyFacts(ctx context.Context, cik string) (*CompanyFacts, error) {
	var out CompanyFacts
	url := c.dataBaseURL + "/api/xbrl/companyfacts/CIK" + cik + ".json"
	if err := c.get(ctx, url, &out); err != nil {
		return nil, err
	}
	if len(out.Facts) == 0 {
		return nil, eris.Errorf("secedgar: no facts for CIK %s", cik)
	}
	return &out, nil
}
