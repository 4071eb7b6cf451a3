package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// AnthropicClient calls the Anthropic Messages API with streaming enabled.
// See: https://docs.anthropic.com/en/api/messages
type AnthropicClient struct {
	headerRecorder

	http    *http.Client
	apiKey  string
	model   string
	baseURL string

	outputTokens   int
	maxOutput      int
	thinkingBudget int
}

const (
	anthropicVersion = "2023-06-01"
	// Beta header unlocking the 128k output window on supported models.
	anthropicLargeOutputBeta = "output-128k-2025-02-19"
)

// NewAnthropicClient creates an Anthropic client. If apiKey is empty, it falls
// back to the ANTHROPIC_API_KEY env var.
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = "claude-3-7-sonnet-20250219"
	}
	return &AnthropicClient{
		http:           &http.Client{Timeout: 10 * time.Minute},
		apiKey:         apiKey,
		model:          model,
		baseURL:        "https://api.anthropic.com/v1/messages",
		outputTokens:   25000,
		maxOutput:      128000,
		thinkingBudget: 16000,
	}, nil
}

func (a *AnthropicClient) Name() string { return "Anthropic:" + a.model }
func (a *AnthropicClient) Close() error { return nil }
func (a *AnthropicClient) CountTokens(text string) int {
	return EstimateTokens(strings.TrimSpace(text))
}

func (a *AnthropicClient) MaxOutputTokens(maximize bool) int {
	if maximize {
		return a.maxOutput
	}
	return a.outputTokens
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicReq struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Temp      float32            `json:"temperature"`
	System    string             `json:"system,omitempty"`
	Thinking  *anthropicThinking `json:"thinking,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
}

type anthropicErrBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// streamEvent is the subset of SSE payloads we care about.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate streams a completion and returns the concatenated text deltas.
func (a *AnthropicClient) Generate(ctx context.Context, greq Request) (string, error) {
	body := anthropicReq{
		Model:     a.model,
		MaxTokens: a.MaxOutputTokens(greq.Maximize),
		Temp:      1,
		System:    greq.System,
		Thinking:  &anthropicThinking{Type: "enabled", BudgetTokens: a.thinkingBudget},
		Messages:  []anthropicMessage{{Role: "user", Content: greq.Prompt}},
		Stream:    true,
	}
	b, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if greq.Maximize {
		req.Header.Set("anthropic-beta", anthropicLargeOutputBeta)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	a.record(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", a.statusError(resp)
	}

	return readTextStream(resp.Body)
}

// statusError converts a non-2xx response into an *APIError, keeping the raw
// body so the classifier can inspect structured provider errors.
func (a *AnthropicClient) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	const max = 2048
	if len(raw) > max {
		raw = raw[:max]
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(raw)),
		Body:       raw,
	}
	var parsed anthropicErrBody
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Type != "" {
		apiErr.Type = parsed.Error.Type
		apiErr.Message = parsed.Error.Message
	}
	if ra := resp.Header.Get("retry-after"); ra != "" {
		apiErr.Message = fmt.Sprintf("%s (retry-after: %s)", apiErr.Message, ra)
	}

	// Requests that exceed the model's context window never succeed on retry.
	if resp.StatusCode == 400 && strings.Contains(string(raw), "prompt is too long") {
		return NewPermanentError(apiErr)
	}
	return apiErr
}

// readTextStream consumes an SSE body and concatenates text deltas.
func readTextStream(r io.Reader) (string, error) {
	var out strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" {
				out.WriteString(ev.Delta.Text)
			}
		case "error":
			return "", &APIError{
				StatusCode: http.StatusServiceUnavailable,
				Type:       ev.Error.Type,
				Message:    ev.Error.Message,
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if out.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return out.String(), nil
}
