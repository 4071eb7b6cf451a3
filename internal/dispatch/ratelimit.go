package dispatch

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"appforge/internal/metrics"
)

// window is the sliding interval both budgets are measured against.
const window = time.Minute

// Token admission thresholds: block at 90% of the per-minute budget and wait
// until usage would fall back to 70%.
const (
	tokenHighWater = 0.9
	tokenLowWater  = 0.7
)

// RateLimiterConfig holds the per-minute budgets.
type RateLimiterConfig struct {
	RequestsPerMinute int
	TokensPerMinute   int
}

type tokenSample struct {
	at     time.Time
	tokens int
}

// RateLimiter is the admission gate in front of the generation API. It tracks
// request timestamps and estimated token usage over a sliding one-minute
// window and blocks callers that would exceed either budget.
//
// Safe for concurrent use. The budget check and record append are atomic
// under the mutex except for the sleep itself, so a burst of threads waking
// from the same sleep can over-admit by at most the number of sleepers; the
// window is re-validated after every sleep, which keeps the excess bounded.
type RateLimiter struct {
	cfg    RateLimiterConfig
	logger *zap.Logger

	mu       sync.Mutex
	requests []time.Time
	samples  []tokenSample

	// Injection points for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a rate limiter with the given per-minute budgets.
func NewRateLimiter(cfg RateLimiterConfig, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// RegisterTokenUsage records an estimated token cost against the per-minute
// token budget. Never blocks.
func (rl *RateLimiter) RegisterTokenUsage(tokens int) {
	if tokens <= 0 {
		return
	}
	rl.mu.Lock()
	rl.samples = append(rl.samples, tokenSample{at: rl.now(), tokens: tokens})
	rl.mu.Unlock()
}

// WaitIfNeeded blocks until issuing one more request stays under both
// budgets, then records the request. It returns the number of live requests
// observed before this call was admitted (informational).
//
// The mutex is released for the duration of the sleep so other goroutines can
// register usage; expired records are re-purged after waking.
func (rl *RateLimiter) WaitIfNeeded(ctx context.Context) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.purge(now)

	currentRequests := len(rl.requests)
	currentTokens := rl.liveTokens()

	rl.logger.Debug("rate limiter usage",
		zap.Int("requests", currentRequests),
		zap.Int("requests_limit", rl.cfg.RequestsPerMinute),
		zap.Int("tokens", currentTokens),
		zap.Int("tokens_limit", rl.cfg.TokensPerMinute),
	)

	wait, reason := rl.requiredWait(now, currentRequests, currentTokens)

	if wait > 0 {
		// Jitter spreads out goroutines that would otherwise wake together.
		wait += time.Duration((0.5 + rand.Float64()*1.5) * float64(time.Second))
		rl.logger.Warn("rate limiting",
			zap.String("reason", reason),
			zap.Duration("wait", wait),
		)
		metrics.RateLimitWaitSeconds.Observe(wait.Seconds())

		rl.mu.Unlock()
		err := rl.sleep(ctx, wait)
		rl.mu.Lock()
		if err != nil {
			return currentRequests, err
		}

		now = rl.now()
		rl.purge(now)
	}

	rl.requests = append(rl.requests, now)
	return currentRequests, nil
}

// requiredWait computes how long admission must be delayed, preferring the
// larger of the request-budget and token-budget waits.
func (rl *RateLimiter) requiredWait(now time.Time, currentRequests, currentTokens int) (time.Duration, string) {
	var wait time.Duration
	var reason string

	if rl.cfg.RequestsPerMinute > 0 && currentRequests >= rl.cfg.RequestsPerMinute {
		untilSlot := rl.requests[0].Add(window).Sub(now)
		if untilSlot > wait {
			wait = untilSlot
			reason = "request limit"
		}
	}

	limit := float64(rl.cfg.TokensPerMinute)
	if limit > 0 && float64(currentTokens) >= tokenHighWater*limit {
		// Walk samples oldest-first and wait until enough of them age out to
		// bring usage down to the low-water mark. The wait is pinned to the
		// expiry of the first sample whose cumulative removal satisfies the
		// target, which slightly over-waits when several samples expire at
		// once; that approximation is intentional.
		sorted := slices.Clone(rl.samples)
		slices.SortStableFunc(sorted, func(a, b tokenSample) int {
			return a.at.Compare(b.at)
		})

		toExpire := float64(currentTokens) - tokenLowWater*limit
		expired := 0
		for _, s := range sorted {
			expired += s.tokens
			if float64(expired) >= toExpire {
				tokenWait := s.at.Add(window).Sub(now)
				if tokenWait > wait {
					wait = tokenWait
					reason = "token limit"
				}
				break
			}
		}
	}

	return wait, reason
}

// purge drops records that have aged out of the window. Callers hold the mutex.
func (rl *RateLimiter) purge(now time.Time) {
	cutoff := now.Add(-window)

	live := rl.requests[:0]
	for _, t := range rl.requests {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	rl.requests = live

	liveSamples := rl.samples[:0]
	for _, s := range rl.samples {
		if s.at.After(cutoff) {
			liveSamples = append(liveSamples, s)
		}
	}
	rl.samples = liveSamples
}

func (rl *RateLimiter) liveTokens() int {
	total := 0
	for _, s := range rl.samples {
		total += s.tokens
	}
	return total
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
