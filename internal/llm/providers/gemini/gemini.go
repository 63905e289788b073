package gemini

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

// Provider implements a Google Gemini generateContent adapter.
type Provider struct {
	name    string
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewProvider constructs a Provider with sane defaults.
func NewProvider(name, baseURL, apiKey string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
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

func (p *Provider) SupportsJSON() bool {
	return true
}

// Complete executes a generateContent call and returns the raw text.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	if req.Model == "" {
		return "", llm.NewProviderError(p.name, llm.KindBadRequest, "model is required", nil)
	}
	if p.apiKey == "" {
		return "", llm.NewProviderError(p.name, llm.KindAuth, "missing API key", nil)
	}

	body := generateRequest{
		GenerationConfig: generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.JSONMode {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			body.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			continue
		}
		body.Contents = append(body.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", llm.NewProviderError(p.name, llm.KindBadRequest, fmt.Sprintf("marshal request: %v", err), err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, req.Model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", llm.NewProviderError(p.name, llm.KindBadRequest, fmt.Sprintf("build request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(httpReq)
	if err != nil {
		return "", llm.ClassifyTransportError(p.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return "", llm.ClassifyStatus(p.name, res.StatusCode, string(b))
	}

	var resp generateResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", llm.NewProviderError(p.name, llm.KindAPIError, fmt.Sprintf("decode response: %v", err), err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", llm.NewProviderError(p.name, llm.KindAPIError, "empty candidates", nil)
	}

	var sb strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	return sb.String(), nil
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}
