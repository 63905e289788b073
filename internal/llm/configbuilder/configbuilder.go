// Package configbuilder turns validated configuration into a live model
// registry: providers constructed by type, API keys resolved from the
// environment, every provider wrapped with its retry policy.
package configbuilder

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/kamal-haider/ai-consensus-cli/internal/config"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/mock"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/providers/anthropic"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/providers/gemini"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/providers/openai"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/retry"
)

// Options tunes registry construction. The zero value is usable.
type Options struct {
	// OnRetry receives every retry attempt across all providers.
	OnRetry func(retry.Attempt)
	// LookupEnv overrides os.LookupEnv for API key resolution.
	LookupEnv func(string) (string, bool)
}

var defaultKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

const defaultProviderTimeout = 60 * time.Second

// Build constructs a registry from the configuration. Every model route
// gets its own retry-wrapped provider so per-model retry policies stay
// independent; a missing API key for a referenced provider is a
// configuration error, not a runtime one.
func Build(cfg *config.Config, opts Options) (*llm.Registry, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	reg := llm.NewRegistry()

	base := make(map[string]llm.Provider, len(cfg.Providers))
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p, err := buildProvider(name, cfg.Providers[name], lookup)
		if err != nil {
			return nil, err
		}
		base[name] = p
	}

	modelNames := make([]string, 0, len(cfg.Models))
	for name := range cfg.Models {
		modelNames = append(modelNames, name)
	}
	sort.Strings(modelNames)

	for _, name := range modelNames {
		mc := cfg.Models[name]
		inner, ok := base[mc.Provider]
		if !ok {
			return nil, fmt.Errorf("model %q references undefined provider %q", name, mc.Provider)
		}

		// One wrapped provider per model keeps retry policies isolated.
		wrapped := retry.Wrap(inner, retryConfig(mc.Retry))
		wrapped.OnRetry = opts.OnRetry
		providerKey := mc.Provider + "/" + name
		reg.RegisterProvider(providerKey, wrapped)
		reg.RegisterModel(name, llm.ModelRoute{
			Provider:    providerKey,
			Model:       mc.ModelID,
			Temperature: mc.Temperature,
			MaxTokens:   mc.MaxTokens,
			Weight:      mc.Weight,
		})
	}

	return reg, nil
}

func buildProvider(name string, pc config.ProviderConfig, lookup func(string) (string, bool)) (llm.Provider, error) {
	if pc.Type == "mock" {
		return &mock.Provider{NameValue: name, JSONSupport: true}, nil
	}

	keyEnv := pc.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultKeyEnv[pc.Type]
	}
	apiKey, ok := lookup(keyEnv)
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("provider %q: environment variable %s is not set", name, keyEnv)
	}

	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	switch pc.Type {
	case "openai":
		return openai.NewProvider(name, pc.BaseURL, apiKey, timeout), nil
	case "anthropic":
		return anthropic.NewProvider(name, pc.BaseURL, apiKey, timeout), nil
	case "gemini":
		return gemini.NewProvider(name, pc.BaseURL, apiKey, timeout), nil
	default:
		return nil, fmt.Errorf("provider %q: unknown type %q", name, pc.Type)
	}
}

func retryConfig(rc *config.RetryConfig) retry.Config {
	if rc == nil {
		return retry.DefaultConfig()
	}
	out := retry.DefaultConfig()
	if rc.MaxRetries >= 0 {
		out.MaxRetries = rc.MaxRetries
	}
	if rc.BaseDelay > 0 {
		out.BaseDelay = rc.BaseDelay
	}
	if rc.MaxDelay > 0 {
		out.MaxDelay = rc.MaxDelay
	}
	out.Jitter = rc.Jitter
	return out
}
