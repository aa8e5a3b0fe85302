package generation

import "context"

// Provider is a text-generation backend. It is the boundary between the
// report pipeline and external LLM services.
type Provider interface {
	// Send submits a fully formed prompt and returns the generated text.
	//
	// Failures should be returned as *ProviderError so that callers can tell
	// transient failures (timeouts, throttling, server errors) apart from
	// permanent ones (bad credentials, malformed requests). Any other error is
	// treated as transient.
	Send(ctx context.Context, prompt string) (string, error)

	// Name identifies the backend in logs.
	Name() string
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, prompt string) (string, error)

// Send calls f.
func (f ProviderFunc) Send(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Name returns "func".
func (f ProviderFunc) Name() string {
	return "func"
}
