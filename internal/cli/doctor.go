package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewDoctorCmd returns a health-check command validating config and
// environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if _, err := cfg.BuildRunConfig(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, models: %d\n", len(cfg.Providers), len(cfg.Models))
			fmt.Fprintf(out, "Participants: %d, mediator: %s, max rounds: %d\n",
				len(cfg.Consensus.Participants), cfg.Consensus.Mediator, cfg.Consensus.MaxRounds)

			missing := 0
			for name, pc := range cfg.Providers {
				if pc.Type == "mock" || pc.APIKeyEnv == "" {
					continue
				}
				if os.Getenv(pc.APIKeyEnv) == "" {
					fmt.Fprintf(out, "WARNING: provider %q: %s is not set\n", name, pc.APIKeyEnv)
					missing++
				}
			}
			if missing == 0 {
				fmt.Fprintln(out, "All provider API keys present.")
			}
			return nil
		},
	}
}
