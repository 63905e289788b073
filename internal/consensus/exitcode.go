package consensus

import (
	"errors"

	"github.com/kamal-haider/ai-consensus-cli/internal/config"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
)

// Process exit codes. Stable; scripts depend on them.
const (
	ExitSuccess  = 0
	ExitConfig   = 1
	ExitProvider = 2
	ExitQuorum   = 3
	ExitInternal = 4
)

// ExitCodeFor maps an error to its process exit code. A non-consensus
// run that completes normally is still a success; only aborts reach
// here.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		cfgErr   *config.ConfigError
		provErr  *llm.ProviderError
		zeroErr  *ZeroResponseError
		parseErr *ParseError
		quorErr  *QuorumError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &provErr), errors.As(err, &zeroErr), errors.As(err, &parseErr):
		return ExitProvider
	case errors.As(err, &quorErr):
		return ExitQuorum
	default:
		return ExitInternal
	}
}
