package configbuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kamal-haider/ai-consensus-cli/internal/config"
)

func fakeEnv(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {Type: "openai", APIKeyEnv: "OPENAI_API_KEY", Timeout: 30 * time.Second},
			"local":  {Type: "mock"},
		},
		Models: map[string]config.ModelConfig{
			"alpha": {Name: "alpha", Provider: "openai", ModelID: "gpt-4o", Temperature: 0.2, MaxTokens: 1024},
			"beta":  {Name: "beta", Provider: "local", ModelID: "mock-1"},
		},
	}
}

func TestBuildRegistersAllModels(t *testing.T) {
	reg, err := Build(testConfig(), Options{
		LookupEnv: fakeEnv(map[string]string{"OPENAI_API_KEY": "sk-test"}),
	})
	require.NoError(t, err)

	p, route, err := reg.Resolve("alpha")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, "gpt-4o", route.Model)
	require.InDelta(t, 0.2, route.Temperature, 1e-9)
	require.Equal(t, 1024, route.MaxTokens)

	_, _, err = reg.Resolve("beta")
	require.NoError(t, err)
}

func TestBuildMissingAPIKey(t *testing.T) {
	_, err := Build(testConfig(), Options{LookupEnv: fakeEnv(nil)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestBuildDefaultKeyEnvPerType(t *testing.T) {
	cfg := testConfig()
	pc := cfg.Providers["openai"]
	pc.APIKeyEnv = ""
	cfg.Providers["openai"] = pc

	_, err := Build(cfg, Options{LookupEnv: fakeEnv(map[string]string{"OPENAI_API_KEY": "sk-test"})})
	require.NoError(t, err)
}

func TestBuildUnknownProviderType(t *testing.T) {
	cfg := testConfig()
	cfg.Providers["weird"] = config.ProviderConfig{Type: "carrier-pigeon"}
	_, err := Build(cfg, Options{LookupEnv: fakeEnv(map[string]string{"OPENAI_API_KEY": "x"})})
	require.Error(t, err)
	require.Contains(t, err.Error(), "carrier-pigeon")
}

func TestBuildUndefinedProviderReference(t *testing.T) {
	cfg := testConfig()
	cfg.Models["gamma"] = config.ModelConfig{Name: "gamma", Provider: "nope"}
	_, err := Build(cfg, Options{LookupEnv: fakeEnv(map[string]string{"OPENAI_API_KEY": "x"})})
	require.Error(t, err)
	require.Contains(t, err.Error(), `undefined provider "nope"`)
}

func TestBuildMockNeedsNoKey(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{"local": {Type: "mock"}},
		Models: map[string]config.ModelConfig{
			"m": {Name: "m", Provider: "local", ModelID: "mock-1"},
		},
	}
	reg, err := Build(cfg, Options{LookupEnv: fakeEnv(nil)})
	require.NoError(t, err)
	_, _, err = reg.Resolve("m")
	require.NoError(t, err)
}
