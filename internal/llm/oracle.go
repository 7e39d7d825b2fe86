package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Oracle turns a text prompt into a text completion.
// Implementations return *ErrOracleUnavailable when the backend cannot answer.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider is an Oracle backed by a concrete model endpoint.
type Provider interface {
	Oracle

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string

	// Ping checks that the endpoint is reachable and the credentials work.
	Ping(ctx context.Context) error
}

// ProviderKind selects the completion backend.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderGemini ProviderKind = "gemini"
)

// Config describes how to reach the completion backend.
type Config struct {
	Provider    ProviderKind
	BaseURL     string // OpenAI-compatible endpoints only
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // per completion; 0 means no limit
	Retry       RetryConfig
}

// DefaultConfig points at a local Ollama server through its OpenAI-compatible API.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderOpenAI,
		BaseURL:     "http://localhost:11434/v1",
		APIKey:      "ollama",
		Model:       "llama3.2",
		Temperature: 0.7,
		MaxTokens:   2000,
		Timeout:     30 * time.Second,
		Retry:       DefaultRetryConfig(),
	}
}

// New builds the provider named by cfg.Provider, wrapped with retries and logging.
func New(ctx context.Context, cfg Config) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch ProviderKind(strings.ToLower(string(cfg.Provider))) {
	case ProviderOpenAI, "":
		p, err = NewOpenAIProvider(cfg)
	case ProviderGemini:
		p, err = NewGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Retry.MaxAttempts > 1 {
		p = WithRetry(p, cfg.Retry)
	}
	return WithLogging(p), nil
}

// withTimeout bounds a single completion when a timeout is configured.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
