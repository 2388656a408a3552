// Package httpapi holds the small shared plumbing for provider HTTP
// clients: JSON GET with per-host rate limiting, transient retry, and a
// typed status error so callers can classify throttling and auth failures.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/finsight-labs/finsight/internal/resilience"
)

// StatusError is returned for non-2xx responses. Callers map 429 to
// throttling and 401/403 to authorization failures at their boundary.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// Doer abstracts *http.Client for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns an http.Client tuned for provider API calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// GetJSON performs a rate-limited GET and decodes the JSON response into
// out. Server-side transient statuses are retried with backoff; 429 and
// auth failures surface immediately as *StatusError.
func GetJSON(req *http.Request, client Doer, limiter *rate.Limiter, service string, out any) error {
	ctx := req.Context()
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return eris.Wrapf(err, "%s: rate limiter", service)
		}
	}

	body, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(service), func(ctx context.Context) ([]byte, error) {
		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, eris.Wrapf(err, "%s: send request", service)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: read response", service)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			serr := &StatusError{
				StatusCode: resp.StatusCode,
				Body:       string(data),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(serr, resp.StatusCode)
			}
			return nil, serr
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "%s: unmarshal response", service)
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(header, "%d", &secs); err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
