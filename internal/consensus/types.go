package consensus

import (
	"github.com/kamal-haider/ai-consensus-cli/internal/config"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
)

// Role of a model within a round.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleMediator    Role = "mediator"
)

// PromptRequest is the value object describing one outbound model call.
// Constructed per call, never mutated.
type PromptRequest struct {
	UserPrompt      string
	SystemPrompt    string
	RoundIndex      int
	Role            Role
	InputDigest     *Digest
	CandidateAnswer string
}

// Response is the structured result of one successful model call. Produced
// by the response parser; read-only thereafter. Approve and Critical are nil
// in round 1.
type Response struct {
	ModelName  string   `json:"model_name"`
	Answer     string   `json:"answer"`
	Approve    *bool    `json:"approve,omitempty"`
	Critical   *bool    `json:"critical,omitempty"`
	Objections []string `json:"objections,omitempty"`
	Missing    []string `json:"missing,omitempty"`
	Edits      []string `json:"edits,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Raw        string   `json:"raw,omitempty"`
}

// FailedModel records a call that failed irrecoverably or after exhausting
// retries, in place of a Response.
type FailedModel struct {
	ModelName string        `json:"model_name"`
	Kind      llm.ErrorKind `json:"kind"`
	Message   string        `json:"message"`
}

// Digest is a bounded, deterministically ordered summary of participant
// feedback. Immutable once built; rebuilt, never patched, each round.
type Digest struct {
	CommonPoints   []string `json:"common_points"`
	Objections     []string `json:"objections"`
	Missing        []string `json:"missing"`
	SuggestedEdits []string `json:"suggested_edits"`
}

// MediatorState is the mediator's current synthesis. One live instance per
// run, replaced after each mediator call; superseded instances stay in round
// history for truncation and audit.
type MediatorState struct {
	CandidateAnswer     string   `json:"candidate_answer"`
	Rationale           string   `json:"rationale"`
	ApprovalCount       int      `json:"approval_count"`
	CriticalObjections  []string `json:"critical_objections,omitempty"`
	DisagreementSummary string   `json:"disagreement_summary,omitempty"`
}

// Synthesis is the parsed mediator round-1 output.
type Synthesis struct {
	CandidateAnswer string
	Rationale       string
	CommonPoints    []string
	Objections      []string
	Missing         []string
	SuggestedEdits  []string
}

// Update is the parsed mediator round-2+ output.
type Update struct {
	CandidateAnswer string
	Rationale       string
}

// Result is the terminal value of one consensus run.
type Result struct {
	RunID            string        `json:"run_id"`
	Output           string        `json:"output"`
	ConsensusReached bool          `json:"consensus_reached"`
	StopReason       StopReason    `json:"stop_reason"`
	RoundsCompleted  int           `json:"rounds_completed"`
	MediatorState    MediatorState `json:"mediator_state"`
	Responses        []Response    `json:"responses,omitempty"`
	Digest           Digest        `json:"digest"`
	FailedModels     []FailedModel `json:"failed_models,omitempty"`
	Trace            []Event       `json:"trace,omitempty"`
}

// RunConfig is re-exported for call sites that only import consensus.
type RunConfig = config.RunConfig
