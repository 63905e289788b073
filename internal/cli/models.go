package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewModelsCmd lists the configured models and their roles.
func NewModelsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List configured models and their consensus roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			roles := make(map[string]string, len(cfg.Models))
			for _, name := range cfg.Consensus.Participants {
				roles[name] = "participant"
			}
			if cfg.Consensus.Mediator != "" {
				roles[cfg.Consensus.Mediator] = "mediator"
			}

			names := make([]string, 0, len(cfg.Models))
			for name := range cfg.Models {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROVIDER\tMODEL\tROLE")
			for _, name := range names {
				mc := cfg.Models[name]
				role := roles[name]
				if role == "" {
					role = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, mc.Provider, mc.ModelID, role)
			}
			return w.Flush()
		},
	}
}
