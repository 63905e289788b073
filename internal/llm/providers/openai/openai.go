package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
)

// Provider implements an OpenAI-compatible chat adapter.
type Provider struct {
	name    string
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewProvider constructs a Provider with sane defaults.
func NewProvider(name, baseURL, apiKey string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Provider{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Name returns provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// SupportsJSON reports that the chat completions API accepts a JSON
// response format.
func (p *Provider) SupportsJSON() bool {
	return true
}

// Complete executes a non-streaming chat completion and returns the raw
// assistant text.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	if req.Model == "" {
		return "", llm.NewProviderError(p.name, llm.KindBadRequest, "model is required", nil)
	}
	if p.apiKey == "" {
		return "", llm.NewProviderError(p.name, llm.KindAuth, "missing API key", nil)
	}

	body := chatRequest{
		Model:       req.Model,
		Messages:    toMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", llm.NewProviderError(p.name, llm.KindBadRequest, fmt.Sprintf("marshal request: %v", err), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", llm.NewProviderError(p.name, llm.KindBadRequest, fmt.Sprintf("build request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	res, err := p.client.Do(httpReq)
	if err != nil {
		return "", llm.ClassifyTransportError(p.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return "", llm.ClassifyStatus(p.name, res.StatusCode, string(b))
	}

	var resp chatResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", llm.NewProviderError(p.name, llm.KindAPIError, fmt.Sprintf("decode response: %v", err), err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.NewProviderError(p.name, llm.KindAPIError, "empty choices", nil)
	}

	return resp.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string  `json:"finish_reason"`
		Message      message `json:"message"`
	} `json:"choices"`
}

func toMessages(msgs []llm.Message) []message {
	out := make([]message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
