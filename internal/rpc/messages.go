package rpc

// RunConsensusRequest starts a consensus run on the daemon. Zero-value
// optional fields fall back to the daemon's configuration.
type RunConsensusRequest struct {
	RunID       string `json:"run_id,omitempty"`
	Prompt      string `json:"prompt"`
	MaxRounds   int    `json:"max_rounds,omitempty"`
	StrictJSON  bool   `json:"strict_json,omitempty"`
	OmitSummary bool   `json:"omit_summary,omitempty"`
	ShareMode   string `json:"share_mode,omitempty"`
}

// RunEvent streams run progress and the terminal result back to the
// client. Progress events mirror the engine's audit trace; the final
// event carries Done plus either the result fields or Error.
type RunEvent struct {
	Type    string         `json:"type"`
	RunID   string         `json:"run_id,omitempty"`
	Round   int            `json:"round,omitempty"`
	Model   string         `json:"model,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`

	Done             bool   `json:"done,omitempty"`
	Output           string `json:"output,omitempty"`
	StopReason       string `json:"stop_reason,omitempty"`
	ConsensusReached bool   `json:"consensus_reached,omitempty"`
	RoundsCompleted  int    `json:"rounds_completed,omitempty"`
	Error            string `json:"error,omitempty"`
	ExitCode         int    `json:"exit_code,omitempty"`
}

// RunStreamRequest is the bidirectional stream payload for Connect RPC.
// The first message must carry Run; later messages may request
// cancellation.
type RunStreamRequest struct {
	Run    *RunConsensusRequest `json:"run,omitempty"`
	Cancel bool                 `json:"cancel,omitempty"`
	RunID  string               `json:"run_id,omitempty"`
}
