package llm

import "fmt"

// ErrorKind classifies provider failures for the retry policy.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindNetwork     ErrorKind = "network"
	KindRateLimit   ErrorKind = "rate_limit"
	KindUnavailable ErrorKind = "service_unavailable"
	KindAuth        ErrorKind = "auth"
	KindAPIError    ErrorKind = "api_error"
	KindBadRequest  ErrorKind = "bad_request"
)

// ProviderError describes a failed provider call with its classification.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error kind warrants a retry. Anything not
// explicitly retryable is treated as permanent.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork, KindRateLimit, KindUnavailable:
		return true
	default:
		return false
	}
}

// NewProviderError builds a classified provider error.
func NewProviderError(provider string, kind ErrorKind, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message, Err: err}
}
