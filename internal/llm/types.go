package llm

import "context"

// Role is the message role used in chat exchanges.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message represents a single message sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the input for chat providers. Adapters enforce their own
// timeout and token limits; the consensus layer never reads provider output
// directly, it hands the raw text to the response parser.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// Provider defines the contract for model providers. Complete returns the
// raw text emitted by the model; structured decoding happens upstream.
type Provider interface {
	Name() string
	SupportsJSON() bool
	Complete(ctx context.Context, req Request) (string, error)
}
