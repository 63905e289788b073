package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
)

func TestCompleteSendsRequestAndParsesResponse(t *testing.T) {
	t.Parallel()

	p := NewProvider("openai", "http://mock", "key", 5*time.Second)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer key", r.Header.Get("Authorization"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			var reqBody map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &reqBody))
			require.Equal(t, "gpt-4o-mini", reqBody["model"])
			rf, ok := reqBody["response_format"].(map[string]interface{})
			require.True(t, ok)
			require.Equal(t, "json_object", rf["type"])

			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body: io.NopCloser(strings.NewReader(`{
					"choices": [{
						"index": 0,
						"finish_reason": "stop",
						"message": {"role": "assistant", "content": "{\"answer\": \"hello\"}"}
					}]
				}`)),
			}, nil
		}),
	}

	raw, err := p.Complete(context.Background(), llm.Request{
		Model: "gpt-4o-mini",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "hi"},
		},
		JSONMode: true,
	})
	require.NoError(t, err)
	require.Equal(t, `{"answer": "hello"}`, raw)
}

func TestCompleteClassifiesHTTPErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   llm.ErrorKind
	}{
		{http.StatusUnauthorized, llm.KindAuth},
		{http.StatusTooManyRequests, llm.KindRateLimit},
		{http.StatusServiceUnavailable, llm.KindUnavailable},
		{http.StatusBadRequest, llm.KindBadRequest},
	}

	for _, tc := range cases {
		p := NewProvider("openai", "http://mock", "key", time.Second)
		p.client = &http.Client{
			Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: tc.status,
					Header:     make(http.Header),
					Body:       io.NopCloser(strings.NewReader(`{"error": "nope"}`)),
				}, nil
			}),
		}

		_, err := p.Complete(context.Background(), llm.Request{Model: "m"})
		var pe *llm.ProviderError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, tc.kind, pe.Kind)
	}
}

func TestCompleteMissingAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider("openai", "http://mock", "", time.Second)
	_, err := p.Complete(context.Background(), llm.Request{Model: "m"})
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, llm.KindAuth, pe.Kind)
	require.False(t, pe.Retryable())
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
