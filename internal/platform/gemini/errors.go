package gemini

import (
	"context"
	"errors"

	"github.com/phrazzld/ereuna/internal/generation"
	"google.golang.org/genai"
)

// providerName labels errors and log lines produced by this package.
const providerName = "gemini"

// classifyError wraps an SDK error in a generation.ProviderError. Context
// cancellation is returned unchanged so the caller can see it for what it is.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return generation.NewProviderError(providerName, generation.KindForStatus(apiErr.Code), apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return generation.NewProviderError(providerName, generation.KindForStatus(apiErrPtr.Code), apiErrPtr.Code, err)
	}

	// Network failures and timeouts
	return generation.NewProviderError(providerName, generation.KindTransient, 0, err)
}
