package http

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Reason classifies why a fetch failed.
type Reason string

const (
	ReasonTransient  Reason = "transient-network"
	ReasonTimeout    Reason = "timeout"
	ReasonRedirects  Reason = "too-many-redirects"
	ReasonStatus     Reason = "non-200-status"
	ReasonInvalidURL Reason = "invalid-url"
	ReasonCanceled   Reason = "canceled"
	ReasonDisallowed Reason = "disallowed"
)

const (
	defaultMaxRetries  = 1
	defaultMaxRedirect = 10
)

// ErrTooManyRedirects is returned by the client's redirect policy.
var ErrTooManyRedirects = errors.New("too many redirects")

// RetryConfig holds retry configuration. Retries are immediate; pacing
// between items is the caller's concern.
type RetryConfig struct {
	// MaxRetries is the total number of attempts per fetch.
	MaxRetries int
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: defaultMaxRetries}
}

func (c RetryConfig) attempts() int {
	if c.MaxRetries < 1 {
		return defaultMaxRetries
	}
	return c.MaxRetries
}

// FetchError describes the last failed attempt of an exhausted fetch.
type FetchError struct {
	URL        string
	Reason     Reason
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed (%s after %d attempts): %v", e.URL, e.Reason, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s failed with status %d after %d attempts", e.URL, e.StatusCode, e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classify maps a transport error onto a failure reason.
func classify(err error) Reason {
	if errors.Is(err, ErrTooManyRedirects) {
		return ReasonRedirects
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	return ReasonTransient
}
