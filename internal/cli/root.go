package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kamal-haider/ai-consensus-cli/internal/config"
	"github.com/kamal-haider/ai-consensus-cli/internal/consensus"
	"github.com/kamal-haider/ai-consensus-cli/internal/version"
)

// Options holds global CLI options.
type Options struct {
	ConfigPath string
}

// NewRootCmd constructs the base CLI command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "aicx",
		Short:         "aicx – multi-model consensus runner",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// API keys are commonly kept in a local .env; absence is fine.
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (default: ./config.toml)")

	cmd.AddCommand(NewRunCmd(opts))
	cmd.AddCommand(NewRemoteCmd(opts))
	cmd.AddCommand(NewModelsCmd(opts))
	cmd.AddCommand(NewDoctorCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// exitError carries a process exit code determined before the generic
// error mapping, such as one reported by the daemon over the wire.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// Execute runs the root command and exits with the code matching the
// failure class.
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)

	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(consensus.ExitCodeFor(err))
}

// loadConfig wraps config loading with shared options.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
