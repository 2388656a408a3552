package provider

import (
	"errors"

	"github.com/finsight-labs/finsight/pkg/httpapi"
)

// classifyHTTPError maps transport-level status errors onto the provider
// error taxonomy at the adapter boundary. Anything unmapped stays a
// transient provider error and triggers fallback without a cool-down.
func classifyHTTPError(name string, err error) error {
	var serr *httpapi.StatusError
	if errors.As(err, &serr) {
		switch serr.StatusCode {
		case 429:
			return &ThrottledError{Provider: name, RetryAfter: serr.RetryAfter}
		case 401, 403:
			return &UnauthorizedError{Provider: name}
		}
	}
	return err
}
