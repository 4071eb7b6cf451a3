package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"appforge/internal/llmclient"
)

func TestClassifyMessageHeuristics(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ClassifiedError
	}{
		{
			name: "rate limit keyword",
			err:  errors.New("rate_limit_error: spread out your requests"),
			want: ClassifiedError{IsRateLimit: true},
		},
		{
			name: "status 429",
			err:  errors.New("unexpected status 429 Too Many Requests"),
			want: ClassifiedError{IsRateLimit: true},
		},
		{
			name: "retry-after hint",
			err:  errors.New("429 too many requests, retry-after: 12"),
			want: ClassifiedError{IsRateLimit: true, RetryAfter: 12},
		},
		{
			name: "retry after colon form",
			err:  errors.New("rate_limit hit; retry after: 45 seconds"),
			want: ClassifiedError{IsRateLimit: true, RetryAfter: 45},
		},
		{
			name: "token budget exhausted",
			err:  errors.New("429 input tokens per minute limit exceeded"),
			want: ClassifiedError{IsRateLimit: true, IsTokenLimit: true},
		},
		{
			name: "connection refused",
			err:  errors.New("dial tcp: connection refused"),
			want: ClassifiedError{IsConnection: true},
		},
		{
			name: "timeout message",
			err:  errors.New("request timeout after 600s"),
			want: ClassifiedError{IsTimeout: true},
		},
		{
			name: "overloaded message",
			err:  errors.New("upstream overloaded, try again"),
			want: ClassifiedError{IsOverloaded: true},
		},
		{
			name: "stringified provider body",
			err:  errors.New(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`),
			want: ClassifiedError{IsOverloaded: true},
		},
		{
			name: "single-quoted provider body",
			err:  errors.New(`{'type': 'error', 'error': {'type': 'overloaded_error'}}`),
			want: ClassifiedError{IsOverloaded: true},
		},
		{
			name: "unmatched error",
			err:  errors.New("invalid argument"),
			want: ClassifiedError{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			tc.want.Message = tc.err.Error()
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyStructuredErrors(t *testing.T) {
	t.Run("api error 5xx", func(t *testing.T) {
		err := &llmclient.APIError{StatusCode: 503, Type: "api_error", Message: "upstream unavailable"}
		got := Classify(err)
		assert.True(t, got.IsServerError)
		assert.True(t, got.Retryable())
	})

	t.Run("api error overloaded type", func(t *testing.T) {
		err := &llmclient.APIError{StatusCode: 529, Type: "overloaded_error", Message: "Overloaded"}
		got := Classify(err)
		assert.True(t, got.IsOverloaded)
		assert.True(t, got.IsServerError)
	})

	t.Run("overloaded json body", func(t *testing.T) {
		err := &llmclient.APIError{
			StatusCode: 529,
			Type:       "api_error",
			Message:    "unavailable",
			Body:       []byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`),
		}
		assert.True(t, Classify(err).IsOverloaded)
	})

	t.Run("malformed json body ignored", func(t *testing.T) {
		err := &llmclient.APIError{
			StatusCode: 503,
			Type:       "api_error",
			Message:    "unavailable",
			Body:       []byte(`{"error": not json`),
		}
		got := Classify(err)
		assert.False(t, got.IsOverloaded)
		assert.True(t, got.IsServerError)
	})

	t.Run("wrapped api error", func(t *testing.T) {
		err := fmt.Errorf("generate: %w", &llmclient.APIError{StatusCode: 500, Type: "api_error", Message: "boom"})
		assert.True(t, Classify(err).IsServerError)
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		assert.True(t, Classify(context.DeadlineExceeded).IsTimeout)
	})

	t.Run("net op error", func(t *testing.T) {
		err := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
		assert.True(t, Classify(err).IsConnection)
	})
}

func TestRetryableFlags(t *testing.T) {
	assert.False(t, ClassifiedError{}.Retryable())
	assert.False(t, ClassifiedError{IsTokenLimit: true}.Retryable(), "token limit alone is not retryable")
	assert.True(t, ClassifiedError{IsRateLimit: true}.Retryable())
	assert.True(t, ClassifiedError{IsConnection: true}.Retryable())
	assert.True(t, ClassifiedError{IsTimeout: true}.Retryable())
	assert.True(t, ClassifiedError{IsServerError: true}.Retryable())
	assert.True(t, ClassifiedError{IsOverloaded: true}.Retryable())
}
