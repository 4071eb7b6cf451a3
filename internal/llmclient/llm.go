package llmclient

import "context"

// Request is a single generation call to a provider.
type Request struct {
	Prompt string
	System string

	// Maximize selects the provider's large-output mode (bigger output
	// budget, higher cost/latency). Providers without such a mode ignore it.
	Maximize bool
}

// Client is a thin provider wrapper. It only focuses on the API call itself.
// Cross-cutting concerns (rate limiting, retries, logging) are applied by the
// dispatcher layer.
type Client interface {
	Name() string
	Close() error

	// CountTokens gives a rough token estimate for text, used for
	// rate-limit accounting and scheduler weighting.
	CountTokens(text string) int

	// MaxOutputTokens reports the output budget a call may consume,
	// which depends on whether the large-output mode is selected.
	MaxOutputTokens(maximize bool) int

	// Generate sends the request and returns the concatenated text content
	// of the (possibly streamed) response.
	Generate(ctx context.Context, req Request) (string, error)
}
