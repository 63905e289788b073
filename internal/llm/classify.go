package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ClassifyTransportError maps transport-level failures (from http.Client.Do)
// to a classified ProviderError.
func ClassifyTransportError(provider string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(provider, KindTimeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewProviderError(provider, KindTimeout, "request timed out", err)
	}
	return NewProviderError(provider, KindNetwork, fmt.Sprintf("network error: %v", err), err)
}

// ClassifyStatus maps a non-2xx HTTP status to a classified ProviderError.
func ClassifyStatus(provider string, status int, body string) *ProviderError {
	msg := fmt.Sprintf("status %d: %s", status, truncate(body, 512))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewProviderError(provider, KindAuth, msg, nil)
	case status == http.StatusTooManyRequests:
		return NewProviderError(provider, KindRateLimit, msg, nil)
	case status == http.StatusRequestTimeout:
		return NewProviderError(provider, KindTimeout, msg, nil)
	case status >= 500:
		return NewProviderError(provider, KindUnavailable, msg, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return NewProviderError(provider, KindBadRequest, msg, nil)
	default:
		return NewProviderError(provider, KindAPIError, msg, nil)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
