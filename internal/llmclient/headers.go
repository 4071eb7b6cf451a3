package llmclient

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitHeaders represents normalized provider rate-limit signals.
type RateLimitHeaders struct {
	RetryAfterSeconds int

	LimitRequests     int
	LimitTokens       int
	RemainingRequests int
	RemainingTokens   int

	ResetRequests time.Duration
	ResetTokens   time.Duration
}

// RateLimitHeaderAware is an optional interface for clients that expose the
// most recently observed provider rate-limit headers.
type RateLimitHeaderAware interface {
	LastRateLimitHeaders() (RateLimitHeaders, bool)
}

// parseRateLimitHeaders parses the common x-ratelimit-* / retry-after header
// family. Unparseable values are skipped rather than treated as errors.
func parseRateLimitHeaders(h http.Header) (RateLimitHeaders, bool) {
	out := RateLimitHeaders{}
	found := false

	readInt := func(key string) (int, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	readDur := func(key string) (time.Duration, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		// Providers send either seconds ("30") or Go-style durations ("6m0s").
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second, true
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		return d, true
	}

	if v, ok := readInt("retry-after"); ok {
		out.RetryAfterSeconds = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-limit-requests"); ok {
		out.LimitRequests = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-limit-tokens"); ok {
		out.LimitTokens = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-remaining-requests"); ok {
		out.RemainingRequests = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-remaining-tokens"); ok {
		out.RemainingTokens = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-requests"); ok {
		out.ResetRequests = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-tokens"); ok {
		out.ResetTokens = v
		found = true
	}

	return out, found
}

// headerRecorder holds the last observed rate-limit headers for a client.
// Embedded by providers that surface headers.
type headerRecorder struct {
	mu      sync.RWMutex
	last    RateLimitHeaders
	hasLast bool
}

func (r *headerRecorder) record(h http.Header) {
	parsed, ok := parseRateLimitHeaders(h)
	if !ok {
		return
	}
	r.mu.Lock()
	r.last = parsed
	r.hasLast = true
	r.mu.Unlock()
}

func (r *headerRecorder) LastRateLimitHeaders() (RateLimitHeaders, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.hasLast
}
