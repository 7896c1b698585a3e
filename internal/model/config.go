package model

import "time"

// Config is the full application configuration. A copy is handed to each
// pipeline run at start; runs never observe changes made afterwards.
type Config struct {
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Agent       AgentConfig       `yaml:"agent"`
	HTTP        HTTPConfig        `yaml:"http"`
	Cache       CacheConfig       `yaml:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Output      OutputConfig      `yaml:"output"`
}

// PipelineConfig bounds the iteration loop and acceptance decision
type PipelineConfig struct {
	// MaxIterations bounds the verify/fix loop (1-10)
	MaxIterations int `yaml:"max_iterations"`

	// AcceptanceThreshold is the number of consecutive clean verification
	// passes required to accept (1-5)
	AcceptanceThreshold int `yaml:"acceptance_threshold"`

	// EnableReviewStage turns on the optional stage-4 review pass
	EnableReviewStage bool `yaml:"enable_review_stage"`

	// MaxRetries is the retry budget for a failed agent call
	MaxRetries int `yaml:"max_retries"`

	// StageTimeouts maps stage number (1..6) to the per-call deadline
	// in seconds for agent calls made in that stage
	StageTimeouts map[int]int `yaml:"stage_timeouts"`
}

// StageTimeout returns the agent-call deadline for a stage
func (c PipelineConfig) StageTimeout(stage int) time.Duration {
	if secs, ok := c.StageTimeouts[stage]; ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 5 * time.Minute
}

// Normalize clamps the configured bounds into their valid ranges
func (c *PipelineConfig) Normalize() {
	if c.MaxIterations < 1 {
		c.MaxIterations = 1
	}
	if c.MaxIterations > 10 {
		c.MaxIterations = 10
	}
	if c.AcceptanceThreshold < 1 {
		c.AcceptanceThreshold = 1
	}
	if c.AcceptanceThreshold > 5 {
		c.AcceptanceThreshold = 5
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}

// AgentConfig configures the LLM-backed analyzer and verifier agents
type AgentConfig struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string `yaml:"provider"`

	// Model name (provider-specific)
	Model string `yaml:"model"`

	// APIKey for OpenAI/Anthropic
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string `yaml:"base_url,omitempty"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// DocumentTokenBudget caps the token count of the document corpus
	// included in a single agent prompt; overflow is truncated and
	// reported as a set-level issue
	DocumentTokenBudget int `yaml:"document_token_budget"`

	// RequestsPerMinute is the client-side rate limit for agent calls
	RequestsPerMinute float64 `yaml:"requests_per_minute"`

	// System prompts are opaque; empty means the built-in default.
	// *PromptFile points at a prompt file with '#' comment lines stripped.
	AnalyzerPrompt     string `yaml:"analyzer_prompt,omitempty"`
	VerifierPrompt     string `yaml:"verifier_prompt,omitempty"`
	AnalyzerPromptFile string `yaml:"analyzer_prompt_file,omitempty"`
	VerifierPromptFile string `yaml:"verifier_prompt_file,omitempty"`

	// Proxy settings for the hand-rolled HTTP chat clients
	HTTPProxy  string `yaml:"http_proxy,omitempty"`
	HTTPSProxy string `yaml:"https_proxy,omitempty"`
	NoProxy    string `yaml:"no_proxy,omitempty"`
}

// HTTPConfig bounds remote document fetches
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// CacheConfig controls the parsed-document cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir,omitempty"` // empty: memory only
	TTL     time.Duration `yaml:"ttl"`
}

// ConcurrencyConfig bounds batch processing
type ConcurrencyConfig struct {
	// BatchWorkers is the number of concurrent pipeline runs in batch mode
	BatchWorkers int `yaml:"batch_workers"`
}

// OutputConfig controls result rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose"`
	IncludeFooter bool `yaml:"include_footer"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			MaxIterations:       5,
			AcceptanceThreshold: 3,
			EnableReviewStage:   false,
			MaxRetries:          2,
			StageTimeouts:       map[int]int{1: 300, 2: 240, 3: 180, 4: 120, 5: 240, 6: 60},
		},
		Agent: AgentConfig{
			Provider:            "openai",
			Model:               "gpt-4o-mini",
			Temperature:         0.1,
			MaxTokens:           4000,
			DocumentTokenBudget: 80000,
			RequestsPerMinute:   30,
		},
		HTTP: HTTPConfig{
			Timeout:           2 * time.Minute,
			UserAgent:         "Exigo/0.1 (+https://github.com/exigo-ai/exigo)",
			MaxBodyBytes:      2_000_000,
			RequestsPerSecond: 1,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			BatchWorkers: 4,
		},
		Output: OutputConfig{
			Verbose:       false,
			IncludeFooter: true,
		},
	}
}
