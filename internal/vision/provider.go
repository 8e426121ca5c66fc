// Package vision turns product-page screenshots into structured product
// facts using a vision-capable model.
package vision

import (
	"context"
	"fmt"
	"time"
)

// Provider abstracts a vision-capable model backend.
type Provider interface {
	// Describe sends an instruction prompt plus a PNG screenshot and
	// returns the model's raw text reply.
	Describe(ctx context.Context, prompt string, imagePNG []byte) (string, error)

	// Name returns the provider identifier.
	Name() string
}

// ProviderConfig holds common provider configuration.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	MaxTokens  int
	Timeout    time.Duration
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		MaxRetries: 3,
		MaxTokens:  2048,
		Timeout:    60 * time.Second,
	}
}

// NewProvider constructs a provider by identifier.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	switch name {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown vision provider: %s", name)
	}
}
