package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/exigo-ai/exigo/internal/model"
)

// ChatClient is a minimal chat-completion client. One client backs both
// agent roles; the role is carried entirely by the system prompt.
type ChatClient interface {
	// Name returns the provider name
	Name() string

	// Complete runs a single system+user exchange and returns the
	// model's text response
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one chat-completion exchange
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int

	// ForceJSON requests the provider's JSON response mode when it has one
	ForceJSON bool
}

// ChatResponse is the model's reply
type ChatResponse struct {
	Content    string
	Model      string
	TokensUsed int
}

// ClientConfig holds chat-client configuration
type ClientConfig struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout in seconds for the underlying HTTP client; per-call stage
	// deadlines arrive via context
	Timeout int

	MaxTokens   int
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel converts model.AgentConfig to a ClientConfig
func ConfigFromModel(cfg model.AgentConfig) ClientConfig {
	return ClientConfig{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		HTTPProxy:   cfg.HTTPProxy,
		HTTPSProxy:  cfg.HTTPSProxy,
		NoProxy:     cfg.NoProxy,
	}
}

// NewChatClient creates a chat client for the configured provider
func NewChatClient(config ClientConfig) (ChatClient, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIClient(config)

	case "anthropic", "claude":
		return NewAnthropicClient(config)

	case "ollama":
		return NewOllamaClient(config)

	default:
		return nil, fmt.Errorf("unknown agent provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}
