// Package config provides configuration loading, validation, and defaults for
// the nestwise orchestrator. It handles a JSON config file plus environment
// variable API keys.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Provider identifiers for LLM backends.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Model name constants for the supported providers.
const (
	ModelGPT4o        = "gpt-4o"
	ModelGPT4oMini    = "gpt-4o-mini"
	ModelClaudeSonnet = "claude-sonnet-4-20250514"
	ModelClaudeHaiku  = "claude-3-5-haiku-latest"
	ModelLlama3       = "llama3.1"

	ModelOpenAIEmbedding = "text-embedding-3-small"
	ModelOllamaEmbedding = "nomic-embed-text"
)

// Agent role identifiers, used for per-role model selection and logging.
const (
	RoleInterviewer = "interviewer"
	RoleExtractor   = "extractor"
	RoleMatcher     = "matcher"
	RolePlanner     = "planner"
	RoleSummarizer  = "summarizer"
)

// Environment variable names for credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

// Models selects the provider and per-role model names.
type Models struct {
	// Provider is one of openai, anthropic, ollama.
	Provider string `json:"provider"`

	Interviewer string `json:"interviewer"`
	Extractor   string `json:"extractor"`
	Matcher     string `json:"matcher"`
	Planner     string `json:"planner"`
	Summarizer  string `json:"summarizer"`

	// MaxTokens is the reply budget per completion.
	MaxTokens int `json:"max_tokens"`

	// RequestTimeoutSeconds bounds every provider call.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`

	// OllamaHost is the Ollama server address when provider is ollama.
	OllamaHost string `json:"ollama_host,omitempty"`
}

// ForRole returns the configured model for an agent role.
func (m *Models) ForRole(role string) string {
	switch role {
	case RoleInterviewer:
		return m.Interviewer
	case RoleExtractor:
		return m.Extractor
	case RoleMatcher:
		return m.Matcher
	case RolePlanner:
		return m.Planner
	case RoleSummarizer:
		return m.Summarizer
	default:
		return m.Interviewer
	}
}

// RequestTimeout returns the per-call deadline as a duration.
func (m *Models) RequestTimeout() time.Duration {
	return time.Duration(m.RequestTimeoutSeconds) * time.Second
}

// Orchestrator tunes the routing and summarization thresholds.
type Orchestrator struct {
	// CompletenessThreshold is the weighted-completeness ratio required for
	// planning. 1.0 demands full completion.
	CompletenessThreshold float64 `json:"completeness_threshold"`

	// SummarizeThreshold is the interviewer message count at which the
	// summarizer compacts the conversation. The boundary is inclusive.
	SummarizeThreshold int `json:"summarize_threshold"`

	// SummarizeTokenBudget is the interviewer context token count that also
	// triggers compaction, regardless of message count. Zero disables the
	// token trigger.
	SummarizeTokenBudget int `json:"summarize_token_budget,omitempty"`

	// SnapshotDir is where committed session snapshots are written. Empty
	// disables snapshotting.
	SnapshotDir string `json:"snapshot_dir,omitempty"`
}

// Retrieval tunes corpus chunking and nearest-neighbor search.
type Retrieval struct {
	// CorpusDir is the directory of source documents loaded at startup.
	CorpusDir string `json:"corpus_dir"`

	// CachePath is the sqlite file caching chunks and embeddings across
	// restarts. Empty disables the cache.
	CachePath string `json:"cache_path,omitempty"`

	// ChunkSize and ChunkOverlap control the fixed-size overlapping splitter.
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`

	// TopK is the number of chunks returned per retrieval query.
	TopK int `json:"top_k"`

	// MaxQueries bounds the planner's retrieval round.
	MaxQueries int `json:"max_queries"`

	// EmbeddingModel names the embedding model for the configured provider.
	EmbeddingModel string `json:"embedding_model"`
}

// Config is the root configuration document.
type Config struct {
	Models       Models       `json:"models"`
	Orchestrator Orchestrator `json:"orchestrator"`
	Retrieval    Retrieval    `json:"retrieval"`

	// MetricsAddr is the listen address for the prometheus endpoint. Empty
	// disables the endpoint.
	MetricsAddr string `json:"metrics_addr,omitempty"`

	// Debug enables debug-level logging.
	Debug bool `json:"debug,omitempty"`

	// API keys are never read from the config file; they come from the
	// environment at load time.
	OpenAIKey    string `json:"-"`
	AnthropicKey string `json:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Models: Models{
			Provider:              ProviderOpenAI,
			Interviewer:           ModelGPT4o,
			Extractor:             ModelGPT4oMini,
			Matcher:               ModelGPT4oMini,
			Planner:               ModelGPT4oMini,
			Summarizer:            ModelGPT4oMini,
			MaxTokens:             4096,
			RequestTimeoutSeconds: 120,
			OllamaHost:            "http://localhost:11434",
		},
		Orchestrator: Orchestrator{
			CompletenessThreshold: 1.0,
			SummarizeThreshold:    20,
			SummarizeTokenBudget:  6000,
		},
		Retrieval: Retrieval{
			CorpusDir:      "./corpus",
			ChunkSize:      900,
			ChunkOverlap:   150,
			TopK:           3,
			MaxQueries:     3,
			EmbeddingModel: ModelOpenAIEmbedding,
		},
	}
}

// Load reads the config file at path, overlaying it onto the defaults, and
// pulls API keys from the environment. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.OpenAIKey = os.Getenv(EnvOpenAIKey)
	cfg.AnthropicKey = os.Getenv(EnvAnthropicKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Models.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q", c.Models.Provider)
	}

	if c.Models.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.Models.MaxTokens)
	}
	if c.Models.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", c.Models.RequestTimeoutSeconds)
	}

	if c.Orchestrator.CompletenessThreshold < 0 || c.Orchestrator.CompletenessThreshold > 1 {
		return fmt.Errorf("completeness_threshold must be in [0,1], got %g", c.Orchestrator.CompletenessThreshold)
	}
	if c.Orchestrator.SummarizeThreshold < 2 {
		return fmt.Errorf("summarize_threshold must be at least 2, got %d", c.Orchestrator.SummarizeThreshold)
	}
	if c.Orchestrator.SummarizeTokenBudget < 0 {
		return fmt.Errorf("summarize_token_budget must not be negative, got %d", c.Orchestrator.SummarizeTokenBudget)
	}

	r := &c.Retrieval
	if r.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", r.ChunkSize)
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", r.ChunkOverlap)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", r.TopK)
	}
	if r.MaxQueries <= 0 {
		return fmt.Errorf("max_queries must be positive, got %d", r.MaxQueries)
	}

	return nil
}
