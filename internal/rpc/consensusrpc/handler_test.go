package consensusrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kamal-haider/ai-consensus-cli/internal/rpc"
)

type stubRunner struct {
	events []rpc.RunEvent
	err    error
	got    rpc.RunConsensusRequest
}

func (s *stubRunner) Run(r *http.Request, req rpc.RunConsensusRequest) (<-chan rpc.RunEvent, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan rpc.RunEvent, len(s.events))
	for _, ev := range s.events {
		out <- ev
	}
	close(out)
	return out, nil
}

func TestHandlerStreamsNDJSON(t *testing.T) {
	runner := &stubRunner{events: []rpc.RunEvent{
		{Type: "run_started"},
		{Type: "round_started", Round: 1},
		{Type: "result", Done: true, Output: "final answer", StopReason: "consensus_reached", ConsensusReached: true},
	}}
	handler := NewHandler(runner, nil)

	body := bytes.NewBufferString(`{"prompt":"what is consensus?"}`)
	req := httptest.NewRequest(http.MethodPost, "/consensus/run", body)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	resp := rr.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	require.Equal(t, "what is consensus?", runner.got.Prompt)

	var events []rpc.RunEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var ev rpc.RunEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	require.Equal(t, "run_started", events[0].Type)
	last := events[2]
	require.True(t, last.Done)
	require.True(t, last.ConsensusReached)
	require.Equal(t, "final answer", last.Output)
}

func TestHandlerRejectsNonPost(t *testing.T) {
	handler := NewHandler(&stubRunner{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/consensus/run", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandlerRejectsEmptyPrompt(t *testing.T) {
	handler := NewHandler(&stubRunner{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/consensus/run", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerRejectsBadJSON(t *testing.T) {
	handler := NewHandler(&stubRunner{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/consensus/run", bytes.NewBufferString(`{not json`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
