// Package broker provides the dispatch queue: an asynchronous task broker
// with an in-process backend for development and tests and a Redis backend
// for production worker pools.
//
// A task name maps to exactly one handler registered at boot. Workers
// consume FIFO per task-name queue, fairly across queues. Ordering is not
// guaranteed across workers, and a task may be redelivered if a worker
// crashes before acknowledging; handlers are idempotent with respect to
// bot logs (they append, so a double run produces a duplicate line).
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/langboard/engine/id"
	"github.com/langboard/engine/trigger"
)

// Task names dispatched by the engine.
const (
	TaskRunBots     = "bot:run"
	TaskWebhookSend = "webhook:send"
)

// Envelope is the serialised message placed on the broker for one bot
// invocation. Exactly one bot is responsible for each envelope.
type Envelope struct {
	// BotID is the responsible bot.
	BotID id.ID `json:"bot_id"`

	// Condition is the trigger condition being dispatched.
	Condition trigger.Condition `json:"trigger_condition"`

	// Payload is the condition's wire payload.
	Payload json.RawMessage `json:"payload"`

	// ProjectID locates the dispatch in the board hierarchy.
	ProjectID id.ID `json:"project_id"`

	// EnqueuedAt is when the envelope was placed on the queue.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Attempt counts deliveries of this envelope, starting at 1.
	Attempt int `json:"attempt"`
}

// EnvelopeSchema describes the Envelope wire format for the task registry.
var EnvelopeSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"bot_id": {"type": "string"},
		"trigger_condition": {"type": "string"},
		"payload": {"type": "object"},
		"project_id": {"type": "string"},
		"enqueued_at": {"type": "string", "format": "date-time"},
		"attempt": {"type": "integer", "minimum": 1}
	},
	"required": ["bot_id", "trigger_condition", "payload"]
}`)

// Handler consumes one task payload. Handlers recover locally: an error
// return is logged by the broker, never propagated further.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Broker enqueues async tasks for background consumption.
type Broker interface {
	// EnqueueAsync places a payload on the task's queue without blocking.
	EnqueueAsync(ctx context.Context, task string, payload json.RawMessage) error
}

// Registry maps task names to their single handler and payload schema.
// Handlers register at boot; the schema side-registry feeds the webhook
// docs and the batch gateway.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	schemas  map[string]json.RawMessage
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		schemas:  make(map[string]json.RawMessage),
	}
}

// Register binds a task name to its handler and payload schema. A second
// registration for the same name is a boot-time programming error.
func (r *Registry) Register(task string, schema json.RawMessage, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.handlers[task]; dup {
		panic(fmt.Sprintf("broker: task %q registered twice", task))
	}
	r.handlers[task] = fn
	if schema != nil {
		r.schemas[task] = schema
	}
}

// Handler returns the handler for a task name.
func (r *Registry) Handler(task string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[task]
	return fn, ok
}

// Schema returns the registered payload schema for a task kind.
func (r *Registry) Schema(task string) (json.RawMessage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[task]
	return s, ok
}

// Tasks returns all registered task names, sorted.
func (r *Registry) Tasks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
