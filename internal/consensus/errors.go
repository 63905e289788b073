package consensus

import "fmt"

// ParseError indicates malformed model output that survived all recovery
// tiers. It carries the raw text for audit.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "parse: " + e.Reason
}

func parseErrorf(raw, format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...), Raw: raw}
}

// ZeroResponseError indicates that every participant failed in a round. It
// aborts the run immediately and maps to exit code 2.
type ZeroResponseError struct {
	Round   int
	Failed  []FailedModel
	Message string
}

func (e *ZeroResponseError) Error() string {
	return e.Message
}

// QuorumError indicates some but insufficient responses in a round. Distinct
// from ZeroResponseError for operator diagnosis; maps to exit code 3.
type QuorumError struct {
	Round    int
	Received int
	Required int
	Failed   []FailedModel
	Message  string
}

func (e *QuorumError) Error() string {
	return e.Message
}

// InternalError wraps an unexpected defect. Always fatal, never silently
// swallowed; maps to exit code 4.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return "internal: " + e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
