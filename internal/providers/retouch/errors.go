package retouch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind tags every failure crossing the provider boundary. Raw failures are
// classified exactly once, here; the rest of the system only sees these
// variants.
type Kind string

const (
	// KindBlocked: the service refused the request (policy/safety).
	KindBlocked Kind = "blocked"
	// KindEmptyResponse: the call succeeded but carried no usable image.
	KindEmptyResponse Kind = "empty_response"
	// KindTransient: rate-limited or overloaded; a manual retry may succeed.
	KindTransient Kind = "transient"
	// KindFatal: anything else; the message is surfaced verbatim.
	KindFatal Kind = "fatal"
)

// Error is the classified form of a provider failure.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindBlocked:
		return "retouch blocked: " + e.Message
	case KindEmptyResponse:
		return "retouch returned no image"
	case KindTransient:
		return "retouch service busy: " + e.Message
	default:
		return "retouch failed: " + e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether a manual regenerate is worth offering.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindEmptyResponse
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// classifyStatus maps an HTTP failure from the provider to an error kind.
func classifyStatus(status int, message string, cause error) *Error {
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return newError(KindTransient, message, cause)
	case strings.Contains(lower, "overloaded") || strings.Contains(lower, "rate limit"):
		return newError(KindTransient, message, cause)
	case strings.Contains(lower, "safety") || strings.Contains(lower, "blocked") || strings.Contains(lower, "prohibited"):
		return newError(KindBlocked, message, cause)
	default:
		return newError(KindFatal, fmt.Sprintf("status %d: %s", status, message), cause)
	}
}

// classifyTransport maps connection-level failures.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindTransient, err.Error(), err)
	}
	return newError(KindFatal, err.Error(), err)
}
