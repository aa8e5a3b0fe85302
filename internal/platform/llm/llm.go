// Package llm selects the language-model provider named in configuration.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/ereuna/internal/config"
	"github.com/phrazzld/ereuna/internal/generation"
	"github.com/phrazzld/ereuna/internal/platform/gemini"
	"github.com/phrazzld/ereuna/internal/platform/openai"
)

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (generation.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return gemini.NewProvider(ctx, logger, cfg)
	case config.ProviderOpenAI:
		return openai.NewProvider(logger, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}

// NewCaller builds the configured provider and wraps it in a retrying Caller.
func NewCaller(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*generation.Caller, error) {
	provider, err := NewProvider(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	policy, err := generation.NewRetryPolicy(cfg.MaxAttempts, cfg.BaseDelaySeconds, cfg.AttemptTimeoutSeconds)
	if err != nil {
		return nil, err
	}

	return generation.NewCaller(provider, policy)
}
