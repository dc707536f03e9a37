// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"errors"
)

// ErrEmbeddingsNotSupported is returned by providers without an embedding API.
var ErrEmbeddingsNotSupported = errors.New("embeddings not supported by this provider")

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Embed returns a fixed-dimension vector representation of text.
	Embed(ctx context.Context, model, text string) ([]float32, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
)

// Options carries provider construction settings.
type Options struct {
	// BaseURL is the Ollama endpoint (ignored by hosted providers).
	BaseURL string
	// APIKey authenticates hosted providers.
	APIKey string
	// ChatModel is the default completion model.
	ChatModel string
}

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, opts Options) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(opts.APIKey, opts.ChatModel)
	case ProviderOllama:
		return NewOllamaClient(opts.BaseURL, opts.ChatModel)
	default:
		return NewOllamaClient(opts.BaseURL, opts.ChatModel)
	}
}
