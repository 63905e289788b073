package consensusrpc

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kamal-haider/ai-consensus-cli/internal/config"
	"github.com/kamal-haider/ai-consensus-cli/internal/consensus"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
	"github.com/kamal-haider/ai-consensus-cli/internal/observability"
	"github.com/kamal-haider/ai-consensus-cli/internal/rpc"
)

// Runner executes a consensus run and yields streamed events.
type Runner interface {
	Run(r *http.Request, req rpc.RunConsensusRequest) (<-chan rpc.RunEvent, error)
}

// ConsensusRunner bridges the consensus engine to RPC events. One
// instance serves all requests; per-run state lives in the goroutine.
type ConsensusRunner struct {
	Registry *llm.Registry
	Config   config.RunConfig
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Run starts a consensus run, streaming trace events as they happen and
// a terminal event (result or error) before the channel closes.
func (cr *ConsensusRunner) Run(httpReq *http.Request, req rpc.RunConsensusRequest) (<-chan rpc.RunEvent, error) {
	out := make(chan rpc.RunEvent, 64)
	cfg := applyOverrides(cr.Config, req)

	go func() {
		defer close(out)
		ctx := httpReq.Context()

		runner := &consensus.Runner{
			Registry:    cr.Registry,
			Config:      cfg,
			Logger:      cr.Logger,
			Metrics:     cr.Metrics,
			OmitSummary: req.OmitSummary,
			Recorder: consensus.NewRecorder(func(ev consensus.Event) {
				select {
				case out <- toRunEvent(ev):
				case <-ctx.Done():
				}
			}),
		}

		result, err := runner.Run(ctx, req.Prompt)
		if err != nil {
			out <- rpc.RunEvent{
				Type:     "error",
				Done:     true,
				Error:    err.Error(),
				ExitCode: consensus.ExitCodeFor(err),
			}
			return
		}
		out <- rpc.RunEvent{
			Type:             "result",
			RunID:            result.RunID,
			Done:             true,
			Output:           result.Output,
			StopReason:       string(result.StopReason),
			ConsensusReached: result.ConsensusReached,
			RoundsCompleted:  result.RoundsCompleted,
			ExitCode:         consensus.ExitSuccess,
		}
	}()

	return out, nil
}

func toRunEvent(ev consensus.Event) rpc.RunEvent {
	return rpc.RunEvent{
		Type:    string(ev.Type),
		Round:   ev.Round,
		Model:   ev.Model,
		Payload: ev.Payload,
	}
}

func applyOverrides(cfg config.RunConfig, req rpc.RunConsensusRequest) config.RunConfig {
	if req.MaxRounds > 0 {
		cfg.MaxRounds = req.MaxRounds
	}
	if req.StrictJSON {
		cfg.StrictJSON = true
	}
	switch config.ShareMode(strings.ToLower(req.ShareMode)) {
	case config.ShareDigest:
		cfg.ShareMode = config.ShareDigest
	case config.ShareRaw:
		cfg.ShareMode = config.ShareRaw
	}
	return cfg
}
