package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"

	"appforge/internal/llmclient"
)

// ClassifiedError is the classifier's verdict on a failed call. Flags are not
// mutually exclusive; a rate-limit rejection mentioning tokens sets both
// IsRateLimit and IsTokenLimit.
type ClassifiedError struct {
	IsRateLimit   bool
	RetryAfter    int // seconds; 0 when the provider gave no hint
	IsTokenLimit  bool
	IsConnection  bool
	IsTimeout     bool
	IsServerError bool
	IsOverloaded  bool
	Message       string
}

// Retryable reports whether the failure is worth another attempt.
func (c ClassifiedError) Retryable() bool {
	return c.IsRateLimit || c.IsConnection || c.IsTimeout || c.IsServerError || c.IsOverloaded
}

var (
	retryAfterRe = regexp.MustCompile(`retry[\s-]after[:\s]+(\d+)`)
	jsonBodyRe   = regexp.MustCompile(`(\{.*\})`)
)

type providerErrBody struct {
	Error struct {
		Type string `json:"type"`
	} `json:"error"`
}

// Classify maps a failure to a ClassifiedError. Structured error values are
// inspected first; everything else falls back to substring heuristics on the
// lower-cased message. Malformed structured bodies are ignored, never fatal.
func Classify(err error) ClassifiedError {
	out := ClassifiedError{Message: err.Error()}
	lower := strings.ToLower(out.Message)

	var apiErr *llmclient.APIError
	if errors.As(err, &apiErr) {
		if strings.Contains(apiErr.Type, "overloaded") {
			out.IsOverloaded = true
		}
		if len(apiErr.Body) > 0 {
			var parsed providerErrBody
			if json.Unmarshal(apiErr.Body, &parsed) == nil &&
				strings.Contains(parsed.Error.Type, "overloaded") {
				out.IsOverloaded = true
			}
		}
		if apiErr.StatusCode >= 500 {
			out.IsServerError = true
		}
	} else if strings.Contains(lower, `"type":"error"`) || strings.Contains(lower, `'type': 'error'`) {
		// Some transports stringify the provider body into the message.
		if m := jsonBodyRe.FindString(lower); m != "" {
			var parsed providerErrBody
			normalized := strings.ReplaceAll(m, "'", `"`)
			if json.Unmarshal([]byte(normalized), &parsed) == nil &&
				strings.Contains(parsed.Error.Type, "overloaded") {
				out.IsOverloaded = true
			}
		}
	}

	if strings.Contains(lower, "overloaded") {
		out.IsOverloaded = true
	}

	if strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "429") ||
		strings.Contains(lower, "too many requests") {
		out.IsRateLimit = true

		if m := retryAfterRe.FindStringSubmatch(lower); m != nil {
			if n, convErr := strconv.Atoi(m[1]); convErr == nil {
				out.RetryAfter = n
			}
		}
		if strings.Contains(lower, "token") &&
			(strings.Contains(lower, "limit") || strings.Contains(lower, "exceed")) {
			out.IsTokenLimit = true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		out.IsTimeout = true
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout") {
		out.IsTimeout = true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) || strings.Contains(lower, "connection") {
		out.IsConnection = true
	}

	return out
}
