package consensus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kamal-haider/ai-consensus-cli/internal/config"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
	"github.com/kamal-haider/ai-consensus-cli/internal/observability"
)

// Runner executes consensus runs against a resolved model registry.
// Zero-value optional fields are tolerated: a nil Logger logs nowhere,
// nil Metrics records nothing, a nil Recorder is replaced per run.
type Runner struct {
	Registry *llm.Registry
	Config   config.RunConfig
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Recorder *Recorder

	// OmitSummary suppresses the disagreement summary appended to the
	// output of non-consensus runs.
	OmitSummary bool
}

// NewRunner wires a runner with the given registry and run config.
func NewRunner(reg *llm.Registry, cfg config.RunConfig, logger *zap.Logger) *Runner {
	return &Runner{Registry: reg, Config: cfg, Logger: logger}
}

// Run executes one full consensus run for prompt. The returned error is
// one of the typed failures (ZeroResponseError, QuorumError, mediator
// provider errors wrapped) or an InternalError.
func (r *Runner) Run(ctx context.Context, prompt string) (*Result, error) {
	start := time.Now()
	cfg := r.Config
	runID := uuid.NewString()

	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", runID))

	rec := r.Recorder
	if rec == nil {
		rec = NewRecorder(nil)
	}

	n := len(cfg.Participants)
	quorum := cfg.Quorum()

	rec.Record(EventRunStarted, 0, "", map[string]any{
		"run_id":       runID,
		"prompt":       prompt,
		"participants": n,
		"quorum":       quorum,
		"max_rounds":   cfg.MaxRounds,
	})
	logger.Info("consensus run started",
		zap.Int("participants", n),
		zap.Int("quorum", quorum),
		zap.Int("max_rounds", cfg.MaxRounds))

	budget := NewContextBudget(cfg.MaxContextTokens)

	// Round 1: independent answers.
	rec.Record(EventRoundStarted, 1, "", nil)
	responses, failed := r.collectAnswers(ctx, rec, logger, prompt)
	if err := CheckRound(Collection{Responses: responses, Failed: failed}, n, quorum, 1); err != nil {
		return nil, r.abort(rec, logger, 1, err)
	}
	budget.Track(1, ResponseTokens(responses, nil))

	byRound := map[int][]Response{1: responses}
	allResponses := append([]Response(nil), responses...)
	allFailed := append([]FailedModel(nil), failed...)

	digest := BuildInitialDigest(responses)

	syn, err := r.synthesize(ctx, rec, logger, prompt, responses)
	if err != nil {
		return nil, r.abort(rec, logger, 1, fmt.Errorf("mediator synthesis: %w", err))
	}
	state := MediatorState{CandidateAnswer: syn.CandidateAnswer, Rationale: syn.Rationale}

	prevCandidate := ""
	roundsCompleted := 1
	stopReason := StopMaxRounds
	consensus := false

	for round := 2; round <= cfg.MaxRounds; round++ {
		rec.Record(EventRoundStarted, round, "", nil)

		shared := sharedResponses(byRound, budget)
		critiques, cFailed := r.collectCritiques(ctx, rec, logger, state.CandidateAnswer, digest, shared, round)
		allFailed = append(allFailed, cFailed...)
		if err := CheckRound(Collection{Responses: critiques, Failed: cFailed}, n, quorum, round); err != nil {
			return nil, r.abort(rec, logger, round, err)
		}
		allResponses = append(allResponses, critiques...)
		byRound[round] = critiques

		if dropped := budget.Track(round, ResponseTokens(critiques, &digest)); len(dropped) > 0 {
			rec.Record(EventContextTruncated, round, "", map[string]any{
				"dropped_rounds": dropped,
				"used_tokens":    budget.Used(),
			})
			r.Metrics.RecordContextTruncation(len(dropped))
			logger.Info("context truncated", zap.Ints("dropped_rounds", dropped))
		}

		tally := tallyCritiques(round, critiques)
		digest = UpdateDigest(digest, critiques)
		state.ApprovalCount = tally.Approvals
		state.CriticalObjections = criticalObjectionTexts(critiques)

		decision := EvaluateStop(cfg, tally, prevCandidate, state.CandidateAnswer)
		payload := map[string]any{
			"approvals":          tally.Approvals,
			"approvals_required": cfg.ApprovalsRequired(),
			"critical":           tally.CriticalObjections,
			"stop":               decision.Stop,
		}
		if decision.ChangeRatio >= 0 {
			payload["change_ratio"] = decision.ChangeRatio
		}
		if decision.Stop {
			payload["reason"] = string(decision.Reason)
		}
		rec.Record(EventConsensusChecked, round, "", payload)

		roundsCompleted = round
		if decision.Stop {
			stopReason = decision.Reason
			consensus = decision.Consensus
			break
		}

		prevCandidate = state.CandidateAnswer
		upd, err := r.update(ctx, rec, logger, state.CandidateAnswer, critiques)
		if err != nil {
			return nil, r.abort(rec, logger, round, fmt.Errorf("mediator update: %w", err))
		}
		state.CandidateAnswer = upd.CandidateAnswer
		state.Rationale = upd.Rationale
	}

	output := state.CandidateAnswer
	if !consensus && !r.OmitSummary {
		state.DisagreementSummary = DisagreementSummary(state, digest)
		output += "\n\n" + state.DisagreementSummary
	}

	rec.Record(EventRunComplete, roundsCompleted, "", map[string]any{
		"stop_reason":       string(stopReason),
		"consensus_reached": consensus,
		"rounds_completed":  roundsCompleted,
	})
	r.Metrics.RecordRun(string(stopReason), time.Since(start), roundsCompleted)
	logger.Info("consensus run complete",
		zap.String("stop_reason", string(stopReason)),
		zap.Bool("consensus", consensus),
		zap.Int("rounds", roundsCompleted))

	return &Result{
		RunID:            runID,
		Output:           output,
		ConsensusReached: consensus,
		StopReason:       stopReason,
		RoundsCompleted:  roundsCompleted,
		MediatorState:    state,
		Responses:        allResponses,
		Digest:           digest,
		FailedModels:     allFailed,
		Trace:            rec.Trace(),
	}, nil
}

func (r *Runner) abort(rec *Recorder, logger *zap.Logger, round int, err error) error {
	rec.Record(EventError, round, "", map[string]any{"error": err.Error()})
	var qe *QuorumError
	if errors.As(err, &qe) {
		r.Metrics.RecordQuorumFailure()
	}
	logger.Error("consensus run aborted", zap.Int("round", round), zap.Error(err))
	return err
}

// collectAnswers fans out round-1 calls to every participant and gathers
// results. Responses come back sorted by model name so downstream
// processing is deterministic regardless of completion order.
func (r *Runner) collectAnswers(ctx context.Context, rec *Recorder, logger *zap.Logger, prompt string) ([]Response, []FailedModel) {
	p := ParticipantPrompt(prompt)
	return r.fanOut(ctx, rec, logger, 1, func(ctx context.Context, mc config.ModelConfig) (Response, error) {
		raw, err := r.callModel(ctx, rec, mc, PromptRequest{
			SystemPrompt: p.System,
			UserPrompt:   p.User,
			RoundIndex:   1,
			Role:         RoleParticipant,
		})
		if err != nil {
			return Response{}, err
		}
		return ParseAnswer(raw, mc.Name, r.Config.StrictJSON)
	})
}

func (r *Runner) collectCritiques(ctx context.Context, rec *Recorder, logger *zap.Logger, candidate string, digest Digest, shared []Response, round int) ([]Response, []FailedModel) {
	p := CritiquePrompt(candidate, digest, shared, r.Config.ShareMode)
	return r.fanOut(ctx, rec, logger, round, func(ctx context.Context, mc config.ModelConfig) (Response, error) {
		raw, err := r.callModel(ctx, rec, mc, PromptRequest{
			SystemPrompt:    p.System,
			UserPrompt:      p.User,
			RoundIndex:      round,
			Role:            RoleParticipant,
			InputDigest:     &digest,
			CandidateAnswer: candidate,
		})
		if err != nil {
			return Response{}, err
		}
		return ParseCritique(raw, mc.Name, r.Config.StrictJSON)
	})
}

func (r *Runner) fanOut(ctx context.Context, rec *Recorder, logger *zap.Logger, round int, call func(context.Context, config.ModelConfig) (Response, error)) ([]Response, []FailedModel) {
	var (
		mu        sync.Mutex
		responses []Response
		failed    []FailedModel
		wg        sync.WaitGroup
	)
	for _, mc := range r.Config.Participants {
		wg.Add(1)
		go func(mc config.ModelConfig) {
			defer wg.Done()
			resp, err := call(ctx, mc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fm := toFailedModel(mc.Name, err)
				failed = append(failed, fm)
				r.Metrics.RecordModelFailure(string(RoleParticipant), mc.Name, string(fm.Kind))
				rec.Record(EventError, round, mc.Name, map[string]any{
					"kind":  string(fm.Kind),
					"error": fm.Message,
				})
				logger.Warn("participant failed",
					zap.String("model", mc.Name),
					zap.Int("round", round),
					zap.String("kind", string(fm.Kind)),
					zap.Error(err))
				return
			}
			responses = append(responses, resp)
		}(mc)
	}
	wg.Wait()

	sort.Slice(responses, func(i, j int) bool { return responses[i].ModelName < responses[j].ModelName })
	sort.Slice(failed, func(i, j int) bool { return failed[i].ModelName < failed[j].ModelName })
	return responses, failed
}

func (r *Runner) synthesize(ctx context.Context, rec *Recorder, logger *zap.Logger, prompt string, responses []Response) (Synthesis, error) {
	p := SynthesisPrompt(prompt, responses)
	raw, err := r.callModel(ctx, rec, r.Config.Mediator, PromptRequest{
		SystemPrompt: p.System,
		UserPrompt:   p.User,
		RoundIndex:   1,
		Role:         RoleMediator,
	})
	if err != nil {
		r.Metrics.RecordModelFailure(string(RoleMediator), r.Config.Mediator.Name, failureKind(err))
		return Synthesis{}, err
	}
	syn, err := ParseSynthesis(raw, r.Config.StrictJSON)
	if err != nil {
		r.Metrics.RecordModelFailure(string(RoleMediator), r.Config.Mediator.Name, failureKind(err))
		return Synthesis{}, err
	}
	logger.Debug("candidate synthesized", zap.Int("candidate_chars", len(syn.CandidateAnswer)))
	return syn, nil
}

func (r *Runner) update(ctx context.Context, rec *Recorder, logger *zap.Logger, candidate string, critiques []Response) (Update, error) {
	p := UpdatePrompt(candidate, critiques)
	raw, err := r.callModel(ctx, rec, r.Config.Mediator, PromptRequest{
		SystemPrompt:    p.System,
		UserPrompt:      p.User,
		Role:            RoleMediator,
		CandidateAnswer: candidate,
	})
	if err != nil {
		r.Metrics.RecordModelFailure(string(RoleMediator), r.Config.Mediator.Name, failureKind(err))
		return Update{}, err
	}
	upd, err := ParseUpdate(raw, r.Config.StrictJSON)
	if err != nil {
		r.Metrics.RecordModelFailure(string(RoleMediator), r.Config.Mediator.Name, failureKind(err))
		return Update{}, err
	}
	logger.Debug("candidate updated", zap.Int("candidate_chars", len(upd.CandidateAnswer)))
	return upd, nil
}

func (r *Runner) callModel(ctx context.Context, rec *Recorder, mc config.ModelConfig, pr PromptRequest) (string, error) {
	provider, route, err := r.Registry.Resolve(mc.Name)
	if err != nil {
		return "", &InternalError{Err: err}
	}

	if mc.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(mc.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	req := llm.Request{
		Model: route.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: pr.SystemPrompt},
			{Role: llm.RoleUser, Content: pr.UserPrompt},
		},
		MaxTokens:   route.MaxTokens,
		Temperature: route.Temperature,
		JSONMode:    provider.SupportsJSON(),
	}

	rec.Record(EventRequestIssued, pr.RoundIndex, mc.Name, map[string]any{"role": string(pr.Role)})
	r.Metrics.RecordModelRequest(string(pr.Role), mc.Name)

	raw, err := provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	rec.Record(EventResponseReceived, pr.RoundIndex, mc.Name, map[string]any{
		"role":  string(pr.Role),
		"chars": len(raw),
	})
	return raw, nil
}

func tallyCritiques(round int, critiques []Response) RoundTally {
	t := RoundTally{Round: round}
	for _, c := range critiques {
		if c.Approve != nil && *c.Approve {
			t.Approvals++
		}
		if c.Critical != nil && *c.Critical {
			t.CriticalObjections++
		}
		if len(c.Objections) > 0 || len(c.Missing) > 0 || len(c.Edits) > 0 {
			t.ChangesProposed = true
		}
	}
	return t
}

// criticalObjectionTexts collects the objection texts attached to
// critical critiques, falling back to a per-model marker when a critique
// is critical but lists no objections.
func criticalObjectionTexts(critiques []Response) []string {
	var out []string
	for _, c := range critiques {
		if c.Critical == nil || !*c.Critical {
			continue
		}
		if len(c.Objections) > 0 {
			out = append(out, c.Objections...)
			continue
		}
		out = append(out, fmt.Sprintf("%s flagged a critical issue", c.ModelName))
	}
	return out
}

// sharedResponses returns the responses of rounds still inside the
// context budget, oldest round first.
func sharedResponses(byRound map[int][]Response, budget *ContextBudget) []Response {
	var out []Response
	for _, round := range budget.Retained() {
		out = append(out, byRound[round]...)
	}
	return out
}

func toFailedModel(name string, err error) FailedModel {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return FailedModel{ModelName: name, Kind: pe.Kind, Message: pe.Message}
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return FailedModel{ModelName: name, Kind: llm.KindAPIError, Message: parseErr.Reason}
	}
	return FailedModel{ModelName: name, Kind: llm.KindAPIError, Message: err.Error()}
}

func failureKind(err error) string {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	return string(llm.KindAPIError)
}
