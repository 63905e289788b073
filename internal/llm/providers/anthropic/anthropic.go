package anthropic

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

const apiVersion = "2023-06-01"

// Provider implements an Anthropic Messages API adapter.
type Provider struct {
	name    string
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewProvider constructs a Provider with sane defaults.
func NewProvider(name, baseURL, apiKey string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
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

func (p *Provider) Name() string {
	return p.name
}

// SupportsJSON is false: the Messages API has no JSON response mode, JSON
// output is requested through the system prompt only.
func (p *Provider) SupportsJSON() bool {
	return false
}

// Complete executes a non-streaming message call and returns the raw text.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	if req.Model == "" {
		return "", llm.NewProviderError(p.name, llm.KindBadRequest, "model is required", nil)
	}
	if p.apiKey == "" {
		return "", llm.NewProviderError(p.name, llm.KindAuth, "missing API key", nil)
	}

	body := messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = 2048
	}
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			body.System = m.Content
			continue
		}
		body.Messages = append(body.Messages, message{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", llm.NewProviderError(p.name, llm.KindBadRequest, fmt.Sprintf("marshal request: %v", err), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", llm.NewProviderError(p.name, llm.KindBadRequest, fmt.Sprintf("build request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	res, err := p.client.Do(httpReq)
	if err != nil {
		return "", llm.ClassifyTransportError(p.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return "", llm.ClassifyStatus(p.name, res.StatusCode, string(b))
	}

	var resp messagesResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", llm.NewProviderError(p.name, llm.KindAPIError, fmt.Sprintf("decode response: %v", err), err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", llm.NewProviderError(p.name, llm.KindAPIError, "empty content", nil)
	}

	return sb.String(), nil
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}
