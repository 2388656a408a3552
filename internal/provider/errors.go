package provider

import (
	"errors"
	"fmt"
	"time"
)

// ThrottledError signals the provider rejected the call for rate reasons
// (HTTP 429 equivalent). The orchestrator cools the provider down briefly
// and moves on to the next one in the chain.
type ThrottledError struct {
	Provider   string
	RetryAfter time.Duration // zero when the provider gave no hint
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %s throttled (retry after %s)", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("provider %s throttled", e.Provider)
}

// UnauthorizedError signals an authorization failure (HTTP 401/403
// equivalent). This indicates a plan or credential problem, not a transient
// condition, so it earns a much longer cool-down than throttling.
type UnauthorizedError struct {
	Provider string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("provider %s unauthorized", e.Provider)
}

// IsThrottled reports whether err carries a ThrottledError.
func IsThrottled(err error) bool {
	var te *ThrottledError
	return errors.As(err, &te)
}

// IsUnauthorized reports whether err carries an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}
