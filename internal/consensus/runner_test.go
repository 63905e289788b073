package consensus

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamal-haider/ai-consensus-cli/internal/config"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/mock"
)

func testRunConfig(maxRounds int) config.RunConfig {
	return config.RunConfig{
		Participants: []config.ModelConfig{
			{Name: "alpha"}, {Name: "beta"}, {Name: "gamma"},
		},
		Mediator:        config.ModelConfig{Name: "arbiter"},
		MaxRounds:       maxRounds,
		ApprovalRatio:   0.67,
		ChangeThreshold: 0.10,
		ShareMode:       config.ShareDigest,
	}
}

// buildRegistry wires one mock provider per model so each can carry its
// own script.
func buildRegistry(t *testing.T, scripts map[string][]mock.ScriptedReply) (*llm.Registry, map[string]*mock.Provider) {
	t.Helper()
	reg := llm.NewRegistry()
	providers := make(map[string]*mock.Provider, len(scripts))
	for name, script := range scripts {
		p := &mock.Provider{NameValue: "mock-" + name, JSONSupport: true, Scripted: script}
		providers[name] = p
		reg.RegisterProvider("provider-"+name, p)
		reg.RegisterModel(name, llm.ModelRoute{Provider: "provider-" + name, Model: name + "-v1"})
	}
	return reg, providers
}

func answerReply(text string) mock.ScriptedReply {
	return mock.ScriptedReply{Raw: fmt.Sprintf(`{"answer": %q, "confidence": 0.9}`, text)}
}

func approveReply() mock.ScriptedReply {
	return mock.ScriptedReply{Raw: `{"approve": true, "critical": false, "objections": [], "missing": [], "edits": []}`}
}

func rejectReply(objection string) mock.ScriptedReply {
	return mock.ScriptedReply{Raw: fmt.Sprintf(
		`{"approve": false, "critical": false, "objections": [%q], "missing": [], "edits": []}`, objection)}
}

func synthesisReply(candidate string) mock.ScriptedReply {
	return mock.ScriptedReply{Raw: fmt.Sprintf(
		`{"candidate_answer": %q, "rationale": "merged participant answers"}`, candidate)}
}

func updateReply(candidate string) mock.ScriptedReply {
	return mock.ScriptedReply{Raw: fmt.Sprintf(
		`{"candidate_answer": %q, "rationale": "revised after critiques"}`, candidate)}
}

func TestRunReachesConsensus(t *testing.T) {
	reg, providers := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha":   {answerReply("answer from alpha"), approveReply()},
		"beta":    {answerReply("answer from beta"), approveReply()},
		"gamma":   {answerReply("answer from gamma"), approveReply()},
		"arbiter": {synthesisReply("the synthesized answer")},
	})

	r := NewRunner(reg, testRunConfig(3), zap.NewNop())
	result, err := r.Run(context.Background(), "what is the answer?")
	require.NoError(t, err)

	require.True(t, result.ConsensusReached)
	require.Equal(t, StopConsensusReached, result.StopReason)
	require.Equal(t, 2, result.RoundsCompleted)
	require.Equal(t, "the synthesized answer", result.Output)
	require.NotEmpty(t, result.RunID)
	require.Empty(t, result.FailedModels)

	// One answer plus one critique per participant; mediator called once.
	require.Equal(t, 2, providers["alpha"].Calls())
	require.Equal(t, 1, providers["arbiter"].Calls())

	// Responses stay in canonical model-name order per round.
	require.Equal(t, "alpha", result.Responses[0].ModelName)
	require.Equal(t, "beta", result.Responses[1].ModelName)
	require.Equal(t, "gamma", result.Responses[2].ModelName)

	require.Equal(t, EventRunStarted, result.Trace[0].Type)
	require.Equal(t, EventRunComplete, result.Trace[len(result.Trace)-1].Type)
}

func TestRunZeroResponses(t *testing.T) {
	authErr := llm.NewProviderError("mock", llm.KindAuth, "invalid api key", nil)
	fail := mock.ScriptedReply{Err: authErr}
	reg, _ := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha":   {fail},
		"beta":    {fail},
		"gamma":   {fail},
		"arbiter": {synthesisReply("unused")},
	})

	r := NewRunner(reg, testRunConfig(3), zap.NewNop())
	_, err := r.Run(context.Background(), "prompt")
	var zre *ZeroResponseError
	require.ErrorAs(t, err, &zre)
	require.Equal(t, 1, zre.Round)
	require.Len(t, zre.Failed, 3)
}

func TestRunBelowQuorum(t *testing.T) {
	netErr := llm.NewProviderError("mock", llm.KindNetwork, "connection refused", nil)
	reg, _ := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha":   {answerReply("only survivor")},
		"beta":    {{Err: netErr}},
		"gamma":   {{Err: netErr}},
		"arbiter": {synthesisReply("unused")},
	})

	r := NewRunner(reg, testRunConfig(3), zap.NewNop())
	_, err := r.Run(context.Background(), "prompt")
	var qe *QuorumError
	require.ErrorAs(t, err, &qe)
	require.Equal(t, 1, qe.Received)
	require.Equal(t, 2, qe.Required)
	require.Len(t, qe.Failed, 2)
}

func TestRunToleratesMinorityFailure(t *testing.T) {
	timeoutErr := llm.NewProviderError("mock", llm.KindTimeout, "deadline exceeded", nil)
	reg, _ := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha":   {answerReply("a"), approveReply()},
		"beta":    {answerReply("b"), approveReply()},
		"gamma":   {{Err: timeoutErr}, {Err: timeoutErr}},
		"arbiter": {synthesisReply("candidate")},
	})

	cfg := testRunConfig(3)
	r := NewRunner(reg, cfg, zap.NewNop())
	result, err := r.Run(context.Background(), "prompt")
	require.NoError(t, err)

	// 2 of 3 meets quorum but not the approval bar (ceil(0.67*3)=3), so
	// the run ends at the round limit instead of consensus.
	require.False(t, result.ConsensusReached)
	require.NotEmpty(t, result.FailedModels)
	require.Equal(t, "gamma", result.FailedModels[0].ModelName)
	require.Equal(t, llm.KindTimeout, result.FailedModels[0].Kind)
}

func TestRunUnparseableResponseCountsAsFailure(t *testing.T) {
	reg, _ := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha":   {answerReply("good"), approveReply()},
		"beta":    {answerReply("also good"), approveReply()},
		"gamma":   {{Raw: "not json at all"}, approveReply()},
		"arbiter": {synthesisReply("candidate")},
	})

	r := NewRunner(reg, testRunConfig(2), zap.NewNop())
	result, err := r.Run(context.Background(), "prompt")
	require.NoError(t, err)

	require.NotEmpty(t, result.FailedModels)
	require.Equal(t, "gamma", result.FailedModels[0].ModelName)
	require.Equal(t, llm.KindAPIError, result.FailedModels[0].Kind)
}

func TestRunMaxRoundsAppendsDisagreementSummary(t *testing.T) {
	reg, _ := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha":   {answerReply("a"), rejectReply("too shallow")},
		"beta":    {answerReply("b"), rejectReply("too shallow")},
		"gamma":   {answerReply("c"), rejectReply("misses context")},
		"arbiter": {synthesisReply("first candidate")},
	})

	r := NewRunner(reg, testRunConfig(2), zap.NewNop())
	result, err := r.Run(context.Background(), "prompt")
	require.NoError(t, err)

	require.False(t, result.ConsensusReached)
	require.Equal(t, StopMaxRounds, result.StopReason)
	require.Equal(t, 2, result.RoundsCompleted)
	require.Contains(t, result.Output, "first candidate")
	require.Contains(t, result.Output, "## Remaining Disagreements")
	require.Contains(t, result.Output, "too shallow")
}

func TestRunOmitSummary(t *testing.T) {
	reg, _ := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha":   {answerReply("a"), rejectReply("objection")},
		"beta":    {answerReply("b"), rejectReply("objection")},
		"gamma":   {answerReply("c"), rejectReply("objection")},
		"arbiter": {synthesisReply("candidate only")},
	})

	r := NewRunner(reg, testRunConfig(2), zap.NewNop())
	r.OmitSummary = true
	result, err := r.Run(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "candidate only", result.Output)
}

func TestRunMediatorFailureIsFatal(t *testing.T) {
	authErr := llm.NewProviderError("mock", llm.KindAuth, "bad key", nil)
	reg, _ := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha":   {answerReply("a")},
		"beta":    {answerReply("b")},
		"gamma":   {answerReply("c")},
		"arbiter": {{Err: authErr}},
	})

	r := NewRunner(reg, testRunConfig(3), zap.NewNop())
	_, err := r.Run(context.Background(), "prompt")
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, llm.KindAuth, pe.Kind)
}

func TestRunMediatorUpdateBetweenRounds(t *testing.T) {
	reg, providers := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha": {answerReply("a"), rejectReply("expand the intro"), approveReply()},
		"beta":  {answerReply("b"), rejectReply("expand the intro"), approveReply()},
		"gamma": {answerReply("c"), rejectReply("expand the intro"), approveReply()},
		"arbiter": {
			synthesisReply("short answer lacking introduction entirely for everyone"),
			updateReply("a thoroughly expanded answer with a proper introduction section"),
		},
	})

	r := NewRunner(reg, testRunConfig(4), zap.NewNop())
	result, err := r.Run(context.Background(), "prompt")
	require.NoError(t, err)

	require.True(t, result.ConsensusReached)
	require.Equal(t, 3, result.RoundsCompleted)
	require.Equal(t, "a thoroughly expanded answer with a proper introduction section", result.Output)
	// Synthesis plus one update.
	require.Equal(t, 2, providers["arbiter"].Calls())
}

func TestRunTraceRedactsSecrets(t *testing.T) {
	reg, _ := buildRegistry(t, map[string][]mock.ScriptedReply{
		"alpha":   {answerReply("a"), approveReply()},
		"beta":    {answerReply("b"), approveReply()},
		"gamma":   {answerReply("c"), approveReply()},
		"arbiter": {synthesisReply("candidate")},
	})

	r := NewRunner(reg, testRunConfig(2), zap.NewNop())
	result, err := r.Run(context.Background(), `my key is api_key="sk-abc123456" please use it`)
	require.NoError(t, err)

	started := result.Trace[0]
	require.Equal(t, EventRunStarted, started.Type)
	prompt, _ := started.Payload["prompt"].(string)
	require.NotContains(t, prompt, "sk-abc123456")
	require.Contains(t, prompt, "[REDACTED]")
}
