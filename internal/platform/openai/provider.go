package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/phrazzld/ereuna/internal/config"
	"github.com/phrazzld/ereuna/internal/generation"
)

const providerName = "openai"

// Provider implements generation.Provider using OpenAI chat completions.
type Provider struct {
	logger      *slog.Logger
	client      openaisdk.Client
	model       string
	temperature float64
}

var _ generation.Provider = (*Provider)(nil)

// NewProvider creates an OpenAI-backed provider. SDK-level retries are
// disabled because generation.Caller retries with its own policy.
func NewProvider(logger *slog.Logger, cfg config.LLMConfig, opts ...option.RequestOption) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	clientOpts = append(clientOpts, opts...)

	logger.Info("openai provider initialized", "model", cfg.ModelName)

	return &Provider{
		logger:      logger,
		client:      openaisdk.NewClient(clientOpts...),
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
	}, nil
}

// Name returns "openai".
func (p *Provider) Name() string {
	return providerName
}

// Send submits prompt as a single user message and returns the first
// choice's content.
func (p *Provider) Send(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(p.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
		Temperature: openaisdk.Float(p.temperature),
	})
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", generation.NewProviderError(providerName, generation.KindTransient, 0, generation.ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", generation.NewProviderError(providerName, generation.KindMalformedRequest, 0,
			fmt.Errorf("%w: completion stopped by content filter", generation.ErrContentBlocked))
	}

	text := choice.Message.Content
	if strings.TrimSpace(text) == "" {
		return "", generation.NewProviderError(providerName, generation.KindTransient, 0, generation.ErrEmptyResponse)
	}

	p.logger.DebugContext(ctx, "openai response received",
		"model", p.model,
		"length", len(text),
		"finish_reason", choice.FinishReason)

	return text, nil
}

// classifyError wraps an SDK error in a generation.ProviderError. Context
// cancellation passes through unchanged.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return generation.NewProviderError(providerName, generation.KindForStatus(apiErr.StatusCode), apiErr.StatusCode, err)
	}

	// Network failures and timeouts
	return generation.NewProviderError(providerName, generation.KindTransient, 0, err)
}
