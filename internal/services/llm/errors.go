package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"quill/internal/services"
)

// ErrAPIKeyMissing is returned before any request when no API key is set.
var ErrAPIKeyMissing = errors.New("api key required")

// StatusError is a non-2xx reply from the completion endpoint.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

type emptyReplyError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

// Marker classifies a client error as one of the services markers so callers
// can pick an operator hint and an HTTP status.
func Marker(err error) error {
	var statusErr *StatusError
	var netErr net.Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAPIKeyMissing):
		return services.ErrConfiguration
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return services.ErrConfiguration
		case statusErr.StatusCode == http.StatusRequestTimeout:
			return services.ErrTimeout
		case statusErr.Retryable():
			return services.ErrTransient
		default:
			return services.ErrExternalService
		}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return services.ErrTimeout
	default:
		return services.ErrExternalService
	}
}
