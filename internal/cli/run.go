package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamal-haider/ai-consensus-cli/internal/consensus"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/configbuilder"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/retry"
	"github.com/kamal-haider/ai-consensus-cli/internal/logging"
	"github.com/kamal-haider/ai-consensus-cli/internal/output"
)

// NewRunCmd executes a consensus run in-process and prints the final
// answer.
func NewRunCmd(opts *Options) *cobra.Command {
	var (
		maxRounds   int
		strictJSON  bool
		noSummary   bool
		verbose     bool
		outputDir   string
		shareMode   string
		participant []string
		mediator    string
	)

	cmd := &cobra.Command{
		Use:   "run \"<prompt>\"",
		Short: "Run the consensus protocol against the configured models",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("prompt cannot be empty")
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			if maxRounds > 0 {
				cfg.Consensus.MaxRounds = maxRounds
			}
			if strictJSON {
				cfg.Consensus.StrictJSON = true
			}
			if shareMode != "" {
				cfg.Consensus.ShareMode = shareMode
			}
			if len(participant) > 0 {
				cfg.Consensus.Participants = participant
			}
			if mediator != "" {
				cfg.Consensus.Mediator = mediator
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runCfg, err := cfg.BuildRunConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			// Trace events stream to stderr as JSONL; stdout stays
			// reserved for the answer.
			var sink func(consensus.Event)
			if verbose {
				enc := json.NewEncoder(cmd.ErrOrStderr())
				sink = func(ev consensus.Event) {
					_ = enc.Encode(ev)
				}
			}
			recorder := consensus.NewRecorder(sink)

			registry, err := configbuilder.Build(cfg, configbuilder.Options{
				OnRetry: func(a retry.Attempt) {
					recorder.Record(consensus.EventRetryAttempted, 0, "", map[string]any{
						"provider": a.Provider,
						"attempt":  a.Attempt,
						"delay_ms": a.Delay.Milliseconds(),
						"error":    a.Err.Error(),
					})
				},
			})
			if err != nil {
				return err
			}

			runner := &consensus.Runner{
				Registry:    registry,
				Config:      runCfg,
				Logger:      logger,
				Recorder:    recorder,
				OmitSummary: noSummary,
			}

			result, err := runner.Run(cmd.Context(), prompt)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Output)

			if outputDir != "" {
				path, err := output.Save(result.Output, outputDir, prompt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved to %s\n", path)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "consensus=%t stop_reason=%s rounds=%d\n",
				result.ConsensusReached, result.StopReason, result.RoundsCompleted)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Override the configured round limit")
	cmd.Flags().BoolVar(&strictJSON, "strict-json", false, "Fail on malformed model output instead of attempting recovery")
	cmd.Flags().BoolVar(&noSummary, "no-consensus-summary", false, "Omit the disagreement summary from non-consensus output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Stream trace events to stderr as JSON lines")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Also save the answer to a file in this directory")
	cmd.Flags().StringVar(&shareMode, "share-mode", "", "What critics see: digest or raw")
	cmd.Flags().StringSliceVar(&participant, "participant", nil, "Override participant model names (repeatable)")
	cmd.Flags().StringVar(&mediator, "mediator", "", "Override the mediator model name")
	return cmd
}
