package platform

import (
	"errors"
	"fmt"
	"net/http"
)

// Adapter error kinds. Auth and scope failures are fatal and surfaced to the
// operator; rate-limit and transient failures are retryable with backoff.
var (
	ErrAuth             = errors.New("platform credentials invalid or expired")
	ErrUnsupportedScope = errors.New("platform credentials missing required scope")
	ErrRateLimited      = errors.New("platform rate limit exceeded")
	ErrTransient        = errors.New("transient platform network error")
)

// Retryable reports whether a fetch error should be retried with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

// classifyStatus maps an upstream HTTP status onto the adapter error taxonomy.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuth
	case status == http.StatusForbidden:
		return ErrUnsupportedScope
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrTransient
	default:
		return fmt.Errorf("unexpected upstream status %d", status)
	}
}

// classifyTransport maps a transport-level failure. Timeouts, resets and
// cancelled deadlines all surface as transient so the sync run can back off
// and retry instead of hanging or failing permanently.
func classifyTransport(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
