package threatintel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Reason classifies why a provider could not produce a signal
type Reason string

const (
	ReasonNotConfigured Reason = "not_configured"
	ReasonUnauthorized  Reason = "unauthorized"
	ReasonRateLimited   Reason = "rate_limited"
	ReasonTransient     Reason = "transient"
)

// ProviderError is the only error type an adapter returns. Provider specific
// status codes and error envelopes are folded into Reason before it leaves the
// adapter.
type ProviderError struct {
	Provider string
	Reason   Reason
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the taxonomy reason from err. Anything that is not a
// ProviderError is treated as transient.
func ReasonOf(err error) Reason {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return ReasonTransient
}

func notConfigured(provider, displayName, envKey string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Reason:   ReasonNotConfigured,
		Message:  fmt.Sprintf("%s API key not configured. Please add %s to the environment", displayName, envKey),
	}
}

// statusError maps a non-success HTTP status from an upstream API
func statusError(provider string, resp *http.Response) *ProviderError {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &ProviderError{Provider: provider, Reason: ReasonUnauthorized, Message: "API key invalid or unauthorized"}
	case http.StatusForbidden:
		return &ProviderError{Provider: provider, Reason: ReasonUnauthorized, Message: "API access forbidden - check subscription"}
	case http.StatusTooManyRequests:
		return &ProviderError{Provider: provider, Reason: ReasonRateLimited, Message: "API rate limit exceeded"}
	case http.StatusBadRequest:
		return &ProviderError{Provider: provider, Reason: ReasonTransient, Message: "invalid query format"}
	default:
		return &ProviderError{Provider: provider, Reason: ReasonTransient, Message: fmt.Sprintf("API error: status %d", resp.StatusCode)}
	}
}

// requestError wraps a transport failure (timeout, refused connection, ...)
func requestError(provider string, err error) *ProviderError {
	// url.Error repeats the request URL, which may carry a key in its query string
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	msg := "request failed"
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = "request timed out"
	}
	return &ProviderError{Provider: provider, Reason: ReasonTransient, Message: msg, Err: err}
}

func decodeError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Reason: ReasonTransient, Message: "decode response", Err: err}
}

func localRateLimited(provider string) *ProviderError {
	return &ProviderError{Provider: provider, Reason: ReasonRateLimited, Message: "local request quota exhausted"}
}

// isPlaceholderKey reports whether key was left at its sample .env value
func isPlaceholderKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}
	return strings.HasPrefix(key, "your_") && strings.HasSuffix(key, "_here")
}
