package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.0, cfg.Orchestrator.CompletenessThreshold)
	assert.Equal(t, 20, cfg.Orchestrator.SummarizeThreshold)
	assert.Equal(t, 6000, cfg.Orchestrator.SummarizeTokenBudget)
	assert.Equal(t, 900, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 150, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	doc := `{
		"models": {"provider": "ollama", "interviewer": "llama3.1"},
		"orchestrator": {"summarize_threshold": 10},
		"retrieval": {"top_k": 5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden values.
	assert.Equal(t, ProviderOllama, cfg.Models.Provider)
	assert.Equal(t, "llama3.1", cfg.Models.Interviewer)
	assert.Equal(t, 10, cfg.Orchestrator.SummarizeThreshold)
	assert.Equal(t, 5, cfg.Retrieval.TopK)

	// Defaults retained.
	assert.Equal(t, 900, cfg.Retrieval.ChunkSize)
	assert.Equal(t, ModelGPT4oMini, cfg.Models.Extractor)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	require.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Models.Provider)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.Models.Provider = "cohere" }},
		{"zero max tokens", func(c *Config) { c.Models.MaxTokens = 0 }},
		{"zero timeout", func(c *Config) { c.Models.RequestTimeoutSeconds = 0 }},
		{"threshold too high", func(c *Config) { c.Orchestrator.CompletenessThreshold = 1.5 }},
		{"threshold negative", func(c *Config) { c.Orchestrator.CompletenessThreshold = -0.1 }},
		{"summarize too low", func(c *Config) { c.Orchestrator.SummarizeThreshold = 1 }},
		{"negative token budget", func(c *Config) { c.Orchestrator.SummarizeTokenBudget = -1 }},
		{"overlap exceeds size", func(c *Config) { c.Retrieval.ChunkOverlap = 900 }},
		{"zero k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"zero queries", func(c *Config) { c.Retrieval.MaxQueries = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestForRole(t *testing.T) {
	m := Default().Models
	assert.Equal(t, ModelGPT4o, m.ForRole(RoleInterviewer))
	assert.Equal(t, ModelGPT4oMini, m.ForRole(RolePlanner))
	assert.Equal(t, ModelGPT4o, m.ForRole("unknown"))
}

func TestAPIKeysFromEnv(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "sk-test")
	t.Setenv(EnvAnthropicKey, "ant-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.OpenAIKey)
	assert.Equal(t, "ant-test", cfg.AnthropicKey)
}
