package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/langboard/engine/notify"
	"github.com/langboard/engine/observability"
	"github.com/langboard/engine/signature"
)

const (
	// DefaultSendTimeout bounds one delivery attempt.
	DefaultSendTimeout = 10 * time.Second

	maxResponseExcerpt = 1024
)

// Message is the payload posted to every destination.
type Message struct {
	// Event is the trigger condition name.
	Event string `json:"event"`

	// Data is the condition's wire payload.
	Data json.RawMessage `json:"data"`
}

// MessageSchema describes the Message wire format for the task registry.
var MessageSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"event": {"type": "string"},
		"data": {"type": "object"}
	},
	"required": ["event", "data"],
	"additionalProperties": false
}`)

// Fanout delivers one message to every configured destination. It is
// registered as the broker handler for the webhook send task.
type Fanout struct {
	store   Store
	bus     *notify.Bus
	client  *http.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

// FanoutOption configures optional fan-out collaborators.
type FanoutOption func(*Fanout)

// WithMetrics wires delivery counters into the sender.
func WithMetrics(m *observability.Metrics) FanoutOption {
	return func(f *Fanout) { f.metrics = m }
}

// NewFanout creates a fan-out sender.
func NewFanout(store Store, bus *notify.Bus, logger *slog.Logger, opts ...FanoutOption) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{
		store:  store,
		bus:    bus,
		client: &http.Client{Timeout: DefaultSendTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Handle is the broker handler for the webhook send task. One destination
// failing never stops delivery to the rest.
func (f *Fanout) Handle(ctx context.Context, payload json.RawMessage) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode webhook message: %w", err)
	}

	settings, err := f.store.ListSettings(ctx, ListOpts{})
	if err != nil {
		return fmt.Errorf("list webhook settings: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}

	for _, s := range settings {
		f.send(ctx, s, msg.Event, body)
	}
	return nil
}

// send posts the body to one destination. A 2xx advances the usage
// counter and announces the change; anything else produces one uniform
// failure log line with the url, status, and a response excerpt.
func (f *Fanout) send(ctx context.Context, s *Setting, event string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		f.logFailure(ctx, s.URL, 0, err.Error())
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Langboard/1.0")

	ts := time.Now().Unix()
	req.Header.Set(signature.HeaderSignature, signature.Sign(body, s.Secret, ts))
	req.Header.Set(signature.HeaderTimestamp, strconv.FormatInt(ts, 10))

	resp, err := f.client.Do(req) //nolint:gosec // URL is a user-configured destination.
	if err != nil {
		f.logFailure(ctx, s.URL, 0, err.Error())
		return
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseExcerpt))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logFailure(ctx, s.URL, resp.StatusCode, string(excerpt))
		return
	}
	if f.metrics != nil {
		f.metrics.RecordWebhookSend("success")
	}

	now := time.Now().UTC()
	count, err := f.store.RecordUse(ctx, s.ID, now)
	if err != nil {
		f.logger.ErrorContext(ctx, "webhook accounting failed", "setting_id", s.ID, "error", err)
		return
	}

	if f.bus != nil {
		f.bus.Publish(notify.TopicAppSettingUpdated, map[string]any{
			"setting_id":       s.ID.String(),
			"event":            event,
			"last_used_at":     now,
			"total_used_count": count,
		})
	}
	f.logger.DebugContext(ctx, "webhook delivered", "url", s.URL, "event", event, "status", resp.StatusCode)
}

func (f *Fanout) logFailure(ctx context.Context, url string, status int, excerpt string) {
	if f.metrics != nil {
		f.metrics.RecordWebhookSend("failure")
	}
	f.logger.ErrorContext(ctx, "webhook delivery failed",
		"url", url, "status", status, "excerpt", excerpt)
}
