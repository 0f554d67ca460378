package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/signature"
	"github.com/langboard/engine/trigger"
)

const maxResponseExcerpt = 1024 // cap on stored response body

// invocationBody is the JSON body posted to a bot endpoint.
type invocationBody struct {
	Condition trigger.Condition `json:"condition"`
	Payload   json.RawMessage   `json:"payload"`
	Prompt    string            `json:"prompt,omitempty"`
}

// Result captures the outcome of one endpoint call.
type Result struct {
	StatusCode int
	Excerpt    string
	LatencyMs  int
	Error      string
}

// OK reports whether the call reached the endpoint and got a 2xx.
func (r Result) OK() bool {
	return r.Error == "" && r.StatusCode >= 200 && r.StatusCode < 300
}

// Sender performs HTTP invocation of endpoint bots.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given HTTP timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts an invocation to the bot's endpoint and returns the result.
// The bot's API key travels in the Authorization header and the body is
// HMAC-signed when the bot has a signing secret configured.
func (s *Sender) Send(ctx context.Context, b *bot.Bot, c trigger.Condition, payload json.RawMessage) Result {
	body, err := json.Marshal(invocationBody{
		Condition: c,
		Payload:   payload,
		Prompt:    b.Prompt,
	})
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal invocation: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.APIURL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Langboard/1.0")
	if b.APIKey != "" {
		req.Header.Set("Authorization", b.APIKey)
	}

	ts := time.Now().Unix()
	if b.APIKey != "" {
		req.Header.Set(signature.HeaderSignature, signature.Sign(body, b.APIKey, ts))
		req.Header.Set(signature.HeaderTimestamp, strconv.FormatInt(ts, 10))
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // URL is a user-configured bot endpoint.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	excerpt, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseExcerpt))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Excerpt:    string(excerpt),
		LatencyMs:  int(latency),
	}
}
