package dispatch

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds the retry loop and its backoff waits.
type RetryConfig struct {
	MaxRetries int
	BaseWait   time.Duration
	MaxWait    time.Duration
}

// Escalation constants for clustered rate-limit failures: while rate limits
// keep arriving within the clustering window the per-call backoff factor grows
// by escalationStep up to escalationCap, and the escalated wait is capped.
const (
	rateLimitClusterWindow = 2 * time.Minute
	escalationStep         = 1.5
	escalationCap          = 3.0
	escalatedWaitCap       = 120 * time.Second
)

// Retryer wraps single-shot calls with bounded, error-class-aware retries.
//
// rateLimitEncounters and lastRateLimit persist across calls so that clusters
// of provider rate limits escalate backoff; they are coarse-grained,
// best-effort signals, not part of the success/failure contract.
type Retryer struct {
	cfg    RetryConfig
	logger *zap.Logger

	mu                  sync.Mutex
	rateLimitEncounters int
	lastRateLimit       time.Time

	// onRetry, when set, observes every retryable transition (for metrics).
	onRetry func(class string, wait time.Duration)

	// Injection points for tests.
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	uniform func(lo, hi float64) float64
}

// NewRetryer creates a Retryer with the given bounds.
func NewRetryer(cfg RetryConfig, logger *zap.Logger) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retryer{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		uniform: func(lo, hi float64) float64 {
			return lo + rand.Float64()*(hi-lo)
		},
	}
	r.sleep = r.sleepChunked
	return r
}

// Do runs op up to MaxRetries+1 times. Retryable failures wait according to
// their class before the next attempt; a non-retryable failure or exhausted
// retries returns the original error unmodified.
func Do[T any](ctx context.Context, r *Retryer, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	// Per-call escalation factor; cross-call clustering state lives on r.
	backoffFactor := 1.0

	for retries := 1; ; retries++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		info := Classify(err)
		if !info.Retryable() || retries > r.cfg.MaxRetries {
			r.logger.Error("non-retryable error or max retries exceeded",
				zap.String("error", info.Message),
				zap.Int("attempts", retries),
			)
			return zero, lastErr
		}

		wait := r.waitFor(info, retries, &backoffFactor)
		r.logger.Warn("retrying after error",
			zap.String("class", errorClass(info)),
			zap.String("error", info.Message),
			zap.Duration("wait", wait),
			zap.Int("retry", retries),
			zap.Int("max_retries", r.cfg.MaxRetries),
		)
		if r.onRetry != nil {
			r.onRetry(errorClass(info), wait)
		}

		if err := r.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

// waitFor computes the backoff for one retryable failure. retries is the
// 1-indexed attempt number.
func (r *Retryer) waitFor(info ClassifiedError, retries int, backoffFactor *float64) time.Duration {
	base := r.cfg.BaseWait.Seconds()
	maxWait := r.cfg.MaxWait.Seconds()

	var wait float64
	switch {
	case info.IsRateLimit:
		if info.RetryAfter > 0 {
			wait = float64(info.RetryAfter) + r.uniform(1, 5)
		} else {
			wait = 30.0 + r.uniform(1, 5)
		}
		if info.IsTokenLimit && wait < 60 {
			wait = 60
		}

		now := r.now()
		r.mu.Lock()
		r.rateLimitEncounters++
		clustered := !r.lastRateLimit.IsZero() && now.Sub(r.lastRateLimit) < rateLimitClusterWindow
		r.lastRateLimit = now
		r.mu.Unlock()

		if clustered {
			*backoffFactor = math.Min(*backoffFactor*escalationStep, escalationCap)
			wait = math.Min(wait*(*backoffFactor), escalatedWaitCap.Seconds())
			r.logger.Warn("multiple rate limits detected, extending wait",
				zap.Float64("backoff_factor", *backoffFactor),
				zap.Float64("wait_seconds", wait),
			)
		} else {
			*backoffFactor = 1.0
		}

	case info.IsOverloaded:
		wait = math.Min(maxWait, base*math.Pow(2, float64(retries-1)))
		if wait < 10 {
			wait = 10
		}
		wait += r.uniform(1, 5)

	case info.IsConnection || info.IsTimeout:
		wait = math.Min(maxWait, base*math.Pow(1.5, float64(retries-1)))
		wait += r.uniform(0, 2)

	default: // server error and any other retryable class
		wait = math.Min(maxWait, base*math.Pow(2, float64(retries-1)))
		wait += r.uniform(0, wait*0.1)
	}

	return time.Duration(wait * float64(time.Second))
}

// sleepChunked sleeps the full wait in 5-second chunks, logging progress at
// 15-second marks and inside the final 5 seconds. The effective wait is never
// shortened; cancellation aborts with the context error.
func (r *Retryer) sleepChunked(ctx context.Context, d time.Duration) error {
	const chunk = 5 * time.Second
	for remaining := d; remaining > 0; remaining -= chunk {
		secs := int(remaining.Seconds())
		if secs%15 == 0 || secs <= 5 {
			r.logger.Info("retrying", zap.Int("in_seconds", secs))
		}
		step := chunk
		if remaining < chunk {
			step = remaining
		}
		if err := sleepCtx(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// errorClass names the dominant classification for logs and metrics.
func errorClass(info ClassifiedError) string {
	switch {
	case info.IsTokenLimit:
		return "token_limit"
	case info.IsRateLimit:
		return "rate_limit"
	case info.IsOverloaded:
		return "overloaded"
	case info.IsConnection:
		return "connection"
	case info.IsTimeout:
		return "timeout"
	case info.IsServerError:
		return "server_error"
	default:
		return "other"
	}
}
