package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/ereuna/internal/config"
	"github.com/phrazzld/ereuna/internal/generation"
	"google.golang.org/genai"
)

// Provider implements generation.Provider using Google's Gemini API.
type Provider struct {
	// logger is used for structured logging
	logger *slog.Logger

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string

	// generateConfig carries sampling settings
	generateConfig *genai.GenerateContentConfig
}

// Ensure Provider implements generation.Provider
var _ generation.Provider = (*Provider)(nil)

// Option customizes the underlying genai client.
type Option func(*genai.ClientConfig)

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(cc *genai.ClientConfig) {
		cc.HTTPClient = client
	}
}

// NewProvider creates a Gemini-backed provider from LLM configuration.
//
// Parameters:
//   - ctx: Context for client construction
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing API key, model name, base URL and temperature
//
// Returns:
//   - A ready Provider, or an error wrapping generation.ErrInvalidConfig when the
//     configuration is unusable
func NewProvider(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig, opts ...Option) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	}
	for _, opt := range opts {
		opt(clientConfig)
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	temperature := float32(cfg.Temperature)
	generateConfig := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}

	logger.Info("gemini provider initialized", "model", cfg.ModelName)

	return &Provider{
		logger:         logger,
		client:         client,
		model:          cfg.ModelName,
		generateConfig: generateConfig,
	}, nil
}

// Name returns "gemini".
func (p *Provider) Name() string {
	return providerName
}

// Send submits prompt to the configured Gemini model and returns the text of
// the first candidate.
func (p *Provider) Send(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), p.generateConfig)
	if err != nil {
		return "", classifyError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", generation.NewProviderError(providerName, generation.KindMalformedRequest, 0,
			fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", generation.NewProviderError(providerName, generation.KindMalformedRequest, 0,
			fmt.Errorf("%w: response stopped for safety", generation.ErrContentBlocked))
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", generation.NewProviderError(providerName, generation.KindTransient, 0, generation.ErrEmptyResponse)
	}

	p.logger.DebugContext(ctx, "gemini response received",
		"model", p.model,
		"length", len(text))

	return text, nil
}
