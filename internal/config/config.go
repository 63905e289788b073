package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from TOML
// and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Consensus ConsensusConfig           `mapstructure:"consensus"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Server    ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents a model provider entry such as OpenAI,
// Anthropic, or Gemini. API keys are never stored in the file; APIKeyEnv
// names the environment variable holding the secret.
type ProviderConfig struct {
	Type      string        `mapstructure:"type"`        // openai, anthropic, gemini, mock
	BaseURL   string        `mapstructure:"base_url"`    // API base URL override
	APIKeyEnv string        `mapstructure:"api_key_env"` // env var holding the API key
	Timeout   time.Duration `mapstructure:"timeout"`     // request timeout
}

// RetryConfig is the per-model retry policy.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	Jitter     bool          `mapstructure:"jitter"`
}

// ModelConfig binds a logical model name to a provider entry and generation
// parameters. Immutable after load.
type ModelConfig struct {
	Name           string       `mapstructure:"-"`
	Provider       string       `mapstructure:"provider"`
	ModelID        string       `mapstructure:"model_id"`
	Temperature    float64      `mapstructure:"temperature"`
	MaxTokens      int          `mapstructure:"max_tokens"`
	TimeoutSeconds int          `mapstructure:"timeout_seconds"`
	Weight         float64      `mapstructure:"weight"`
	Retry          *RetryConfig `mapstructure:"retry"`
}

// ConsensusConfig holds the run parameters for the consensus protocol.
type ConsensusConfig struct {
	Participants     []string `mapstructure:"participants"`
	Mediator         string   `mapstructure:"mediator"`
	MaxRounds        int      `mapstructure:"max_rounds"`
	ApprovalRatio    float64  `mapstructure:"approval_ratio"`
	ChangeThreshold  float64  `mapstructure:"change_threshold"`
	MaxContextTokens int      `mapstructure:"max_context_tokens"` // 0 = unlimited
	StrictJSON       bool     `mapstructure:"strict_json"`
	ShareMode        string   `mapstructure:"share_mode"`       // digest or raw
	ContextOverflow  string   `mapstructure:"context_overflow"` // truncate
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// RunConfig is the fully validated view handed to the consensus core. The
// core never re-validates it.
type RunConfig struct {
	Participants     []ModelConfig
	Mediator         ModelConfig
	MaxRounds        int
	ApprovalRatio    float64
	ChangeThreshold  float64
	MaxContextTokens int
	StrictJSON       bool
	ShareMode        ShareMode
}

// ShareMode controls what participants see in critique rounds.
type ShareMode string

const (
	ShareDigest ShareMode = "digest"
	ShareRaw    ShareMode = "raw"
)

// Quorum is the minimum number of successful responses to proceed with a
// round: ceil(2/3 * participants).
func (rc RunConfig) Quorum() int {
	n := len(rc.Participants)
	return (2*n + 2) / 3
}

// ApprovalsRequired is the approval threshold for consensus:
// ceil(approval_ratio * participants).
func (rc RunConfig) ApprovalsRequired() int {
	return int(math.Ceil(rc.ApprovalRatio * float64(len(rc.Participants))))
}

// ConfigError indicates invalid or missing configuration. It maps to exit
// code 1 and is never retried.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Message
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// Load reads configuration from the provided path or defaults to
// config/config.toml. Environment variables override file values (prefix:
// AICX_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AICX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, configErrorf("read config: %v", err)
		}
		// No file is fine: models may come entirely from env/flags in
		// mock-only runs; Validate still gates a usable setup.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configErrorf("unmarshal config: %v", err)
	}

	for name, m := range cfg.Models {
		m.Name = name
		cfg.Models[name] = m
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("consensus.max_rounds", 3)
	v.SetDefault("consensus.approval_ratio", 0.67)
	v.SetDefault("consensus.change_threshold", 0.10)
	v.SetDefault("consensus.max_context_tokens", 0)
	v.SetDefault("consensus.strict_json", false)
	v.SetDefault("consensus.share_mode", "digest")
	v.SetDefault("consensus.context_overflow", "truncate")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// Validate performs sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return configErrorf("at least one provider must be configured")
	}
	if len(c.Models) == 0 {
		return configErrorf("at least one model must be defined")
	}

	for name, p := range c.Providers {
		switch p.Type {
		case "openai", "anthropic", "gemini", "mock":
		case "":
			return configErrorf("provider %q must define type", name)
		default:
			return configErrorf("provider %q has unknown type %q", name, p.Type)
		}
	}

	for name, m := range c.Models {
		if m.Provider == "" {
			return configErrorf("model %q must reference provider", name)
		}
		if _, ok := c.Providers[m.Provider]; !ok {
			return configErrorf("model %q references unknown provider %q", name, m.Provider)
		}
		if m.Temperature < 0 || m.Temperature > 2 {
			return configErrorf("model %q temperature must be within [0,2]", name)
		}
		if m.MaxTokens < 0 {
			return configErrorf("model %q max_tokens cannot be negative", name)
		}
		if m.TimeoutSeconds < 0 {
			return configErrorf("model %q timeout_seconds cannot be negative", name)
		}
		if m.Weight < 0 {
			return configErrorf("model %q weight must be >= 0", name)
		}
		if m.Retry != nil {
			if m.Retry.MaxRetries < 0 {
				return configErrorf("model %q retry.max_retries must be >= 0", name)
			}
			if m.Retry.BaseDelay < 0 || m.Retry.MaxDelay < 0 {
				return configErrorf("model %q retry delays must be >= 0", name)
			}
		}
	}

	cc := c.Consensus
	if cc.MaxRounds < 1 {
		return configErrorf("consensus.max_rounds must be >= 1")
	}
	if cc.ApprovalRatio < 0 || cc.ApprovalRatio > 1 {
		return configErrorf("consensus.approval_ratio must be within [0,1]")
	}
	if cc.ChangeThreshold < 0 || cc.ChangeThreshold > 1 {
		return configErrorf("consensus.change_threshold must be within [0,1]")
	}
	if cc.MaxContextTokens < 0 {
		return configErrorf("consensus.max_context_tokens must be >= 0")
	}
	switch ShareMode(cc.ShareMode) {
	case ShareDigest, ShareRaw:
	default:
		return configErrorf("consensus.share_mode must be digest or raw, got %q", cc.ShareMode)
	}
	switch cc.ContextOverflow {
	case "", "truncate":
	default:
		return configErrorf("consensus.context_overflow must be truncate, got %q", cc.ContextOverflow)
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return configErrorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	return nil
}

// BuildRunConfig assembles the validated RunConfig for a consensus session.
// Participant names must be unique, resolve to defined models, and be
// disjoint from the mediator name.
func (c *Config) BuildRunConfig() (RunConfig, error) {
	cc := c.Consensus
	if len(cc.Participants) < 2 {
		return RunConfig{}, configErrorf("consensus.participants requires at least 2 models, got %d", len(cc.Participants))
	}
	if cc.Mediator == "" {
		return RunConfig{}, configErrorf("consensus.mediator is required")
	}

	seen := make(map[string]bool, len(cc.Participants))
	participants := make([]ModelConfig, 0, len(cc.Participants))
	for _, name := range cc.Participants {
		if seen[name] {
			return RunConfig{}, configErrorf("duplicate participant %q", name)
		}
		seen[name] = true
		if name == cc.Mediator {
			return RunConfig{}, configErrorf("mediator %q must not be a participant", name)
		}
		m, ok := c.Models[name]
		if !ok {
			return RunConfig{}, configErrorf("participant %q is not a defined model", name)
		}
		participants = append(participants, m)
	}

	mediator, ok := c.Models[cc.Mediator]
	if !ok {
		return RunConfig{}, configErrorf("mediator %q is not a defined model", cc.Mediator)
	}

	// Canonical participant order is by name; round execution and digest
	// construction both rely on it.
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].Name < participants[j].Name
	})

	return RunConfig{
		Participants:     participants,
		Mediator:         mediator,
		MaxRounds:        cc.MaxRounds,
		ApprovalRatio:    cc.ApprovalRatio,
		ChangeThreshold:  cc.ChangeThreshold,
		MaxContextTokens: cc.MaxContextTokens,
		StrictJSON:       cc.StrictJSON,
		ShareMode:        ShareMode(cc.ShareMode),
	}, nil
}
