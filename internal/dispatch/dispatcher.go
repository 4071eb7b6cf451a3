package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"appforge/internal/llmclient"
	"appforge/internal/metrics"
)

// ErrEmptyPrompt is returned by Send when the prompt is empty.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// Dispatcher is the single call path to the generation API: estimate token
// cost, acquire a rate-limit slot, charge the token budget, then run the
// provider call under the retry orchestrator.
//
// The rate limiter and retryer are explicit fields invoked in sequence, so
// the admission order and the error propagation path are visible here rather
// than buried in a chain of wrapped closures.
type Dispatcher struct {
	client  llmclient.Client
	limiter *RateLimiter
	retryer *Retryer
	logger  *zap.Logger
}

// Config bundles the dispatcher's budgets and retry bounds.
type Config struct {
	RateLimit RateLimiterConfig
	Retry     RetryConfig
}

// DefaultConfig matches the reference deployment: 3 requests and 16000
// estimated tokens per minute, 5 retries between 5s and 120s of backoff.
func DefaultConfig() Config {
	return Config{
		RateLimit: RateLimiterConfig{
			RequestsPerMinute: 3,
			TokensPerMinute:   16000,
		},
		Retry: RetryConfig{
			MaxRetries: 5,
			BaseWait:   5 * time.Second,
			MaxWait:    120 * time.Second,
		},
	}
}

// New creates a Dispatcher around the given provider client.
func New(client llmclient.Client, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		client:  client,
		limiter: NewRateLimiter(cfg.RateLimit, logger),
		retryer: NewRetryer(cfg.Retry, logger),
		logger:  logger,
	}
	d.retryer.onRetry = func(class string, _ time.Duration) {
		metrics.GenerationRetriesTotal.WithLabelValues(client.Name(), class).Inc()
	}
	return d
}

// Client returns the underlying provider client.
func (d *Dispatcher) Client() llmclient.Client { return d.client }

// Send submits one generation request and returns the streamed text.
// maximize selects the provider's large-output mode; the token estimate
// charged against the rate limiter grows accordingly. On failure the
// terminal (non-retryable or retry-exhausted) error is returned as-is.
func (d *Dispatcher) Send(ctx context.Context, prompt, system string, maximize bool) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	estimate := llmclient.EstimateTokens(prompt) +
		llmclient.EstimateTokens(system) +
		d.client.MaxOutputTokens(maximize)

	if _, err := d.limiter.WaitIfNeeded(ctx); err != nil {
		return "", err
	}
	d.limiter.RegisterTokenUsage(estimate)
	metrics.GenerationTokensEstimated.WithLabelValues(d.client.Name()).Add(float64(estimate))

	start := time.Now()
	out, err := Do(ctx, d.retryer, func(ctx context.Context) (string, error) {
		return d.client.Generate(ctx, llmclient.Request{
			Prompt:   prompt,
			System:   system,
			Maximize: maximize,
		})
	})
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(d.client.Name(), "error").Inc()
		d.logger.Error("generation request failed",
			zap.String("provider", d.client.Name()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", err
	}

	metrics.GenerationRequestsTotal.WithLabelValues(d.client.Name(), "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(d.client.Name()).Observe(duration.Seconds())
	d.logger.Debug("generation request completed",
		zap.String("provider", d.client.Name()),
		zap.Duration("duration", duration),
		zap.Int("estimated_tokens", estimate),
		zap.Int("response_chars", len(out)),
	)
	return out, nil
}
