// Package runner executes bot invocations consumed from the dispatch
// queue. The transport is selected by the bot's (platform, running type)
// pair: Default/Default bots run a registered in-process handler,
// Flow/Endpoint bots are invoked over HTTP, and Flow/FlowJson bots are
// handed to the flow runtime.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/broker"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/observability"
	"github.com/langboard/engine/ratelimit"
	"github.com/langboard/engine/trigger"
)

// DefaultTimeout bounds a single bot invocation.
const DefaultTimeout = 60 * time.Second

// State is the lifecycle of one invocation.
type State string

// Invocation states.
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// InternalHandler runs a Default/Default bot in-process. It returns a
// human-readable outcome message for the bot log.
type InternalHandler func(ctx context.Context, b *bot.Bot, c trigger.Condition, payload json.RawMessage) (string, error)

// FlowRuntime executes Flow/FlowJson bots. The flow graph lives in the
// bot's Value field.
type FlowRuntime interface {
	RunFlow(ctx context.Context, b *bot.Bot, c trigger.Condition, payload json.RawMessage) (string, error)
}

// BotGetter loads bots for execution.
type BotGetter interface {
	GetBot(ctx context.Context, botID id.ID) (*bot.Bot, error)
}

// LogAppender records invocation outcomes on the bot's activity log.
type LogAppender interface {
	AppendLog(ctx context.Context, botID id.ID, logType bot.LogType, message string)
}

// Runner executes dispatch envelopes.
type Runner struct {
	bots     BotGetter
	logs     LogAppender
	sender   *Sender
	flows    FlowRuntime
	internal map[string]InternalHandler
	limiter  *ratelimit.Limiter
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	logger   *slog.Logger
	timeout  time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithFlowRuntime attaches the flow runtime collaborator. Without it,
// Flow/FlowJson bots fail with an explanatory log entry.
func WithFlowRuntime(rt FlowRuntime) Option {
	return func(r *Runner) { r.flows = rt }
}

// WithMetrics attaches metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer attaches the invocation tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// New creates a Runner.
func New(bots BotGetter, logs LogAppender, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		bots:     bots,
		logs:     logs,
		sender:   NewSender(DefaultTimeout),
		internal: make(map[string]InternalHandler),
		limiter:  ratelimit.New(),
		logger:   logger,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterInternal binds an in-process handler to a bot name. Handlers
// register at boot, before the broker starts consuming.
func (r *Runner) RegisterInternal(name string, fn InternalHandler) {
	if _, dup := r.internal[name]; dup {
		panic(fmt.Sprintf("runner: internal handler %q registered twice", name))
	}
	r.internal[name] = fn
}

// Handle is the broker handler for the bot run task.
func (r *Runner) Handle(ctx context.Context, payload json.RawMessage) error {
	var env broker.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	return r.Run(ctx, env)
}

// Run executes one envelope. Failures land on the bot's activity log and
// are never retried; Run returns an error only for malformed work that
// the broker should surface.
func (r *Runner) Run(ctx context.Context, env broker.Envelope) error {
	b, err := r.bots.GetBot(ctx, env.BotID)
	if err != nil {
		// The bot may have been deleted between resolve and execute.
		r.logger.InfoContext(ctx, "bot gone, dropping envelope", "bot_id", env.BotID, "condition", env.Condition)
		return nil
	}
	if !b.Enabled {
		r.logger.DebugContext(ctx, "bot disabled, dropping envelope", "bot_id", env.BotID)
		r.logs.AppendLog(ctx, b.ID, bot.LogError,
			fmt.Sprintf("skipped %s: bot is disabled", env.Condition))
		return nil
	}

	if err := r.limiter.Wait(ctx, b.ID, b.RateLimit); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.DebugContext(runCtx, "bot run starting",
		"bot_id", b.ID, "condition", env.Condition, "state", StateRunning)

	start := time.Now()
	message, runErr := r.runTraced(runCtx, b, env, start)
	latency := time.Since(start)

	// HTTP transports surface deadline expiry as a url.Error string, so
	// consult the run context to classify timeouts reliably.
	if runErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		runErr = context.DeadlineExceeded
	}

	state := r.finish(ctx, b, env.Condition, message, runErr)
	if r.metrics != nil {
		r.metrics.RecordBotRun(string(state), latency.Seconds())
	}
	return nil
}

// runTraced wraps the invocation in a span when tracing is configured.
func (r *Runner) runTraced(ctx context.Context, b *bot.Bot, env broker.Envelope, start time.Time) (string, error) {
	if r.tracer == nil {
		return r.invoke(ctx, b, env.Condition, env.Payload)
	}

	ctx, span := r.tracer.StartBotRunSpan(ctx, b.ID.String(), string(env.Condition))
	message, err := r.invoke(ctx, b, env.Condition, env.Payload)

	state := StateSucceeded
	errText := ""
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		state = StateTimedOut
		errText = err.Error()
	case err != nil:
		state = StateFailed
		errText = err.Error()
	}
	r.tracer.EndBotRunSpan(span, string(state), int(time.Since(start).Milliseconds()), errText)
	return message, err
}

// invoke selects the transport for the bot's (platform, running type)
// pair and runs it.
func (r *Runner) invoke(ctx context.Context, b *bot.Bot, c trigger.Condition, payload json.RawMessage) (string, error) {
	switch {
	case b.Platform == bot.PlatformDefault && b.RunningType == bot.RunningDefault:
		fn, ok := r.internal[b.Name]
		if !ok {
			return "", fmt.Errorf("no internal handler registered for bot %q", b.Name)
		}
		return fn(ctx, b, c, payload)

	case b.Platform == bot.PlatformFlow && b.RunningType == bot.RunningEndpoint:
		res := r.sender.Send(ctx, b, c, payload)
		if res.Error != "" {
			return "", errors.New(res.Error)
		}
		if !res.OK() {
			return "", fmt.Errorf("endpoint returned %d: %s", res.StatusCode, res.Excerpt)
		}
		return fmt.Sprintf("endpoint returned %d in %dms", res.StatusCode, res.LatencyMs), nil

	case b.Platform == bot.PlatformFlow && b.RunningType == bot.RunningFlowJSON:
		if r.flows == nil {
			return "", errors.New("no flow runtime configured")
		}
		return r.flows.RunFlow(ctx, b, c, payload)

	default:
		return "", fmt.Errorf("unsupported transport %s/%s", b.Platform, b.RunningType)
	}
}

// finish resolves the terminal state and appends the outcome to the bot
// log.
func (r *Runner) finish(ctx context.Context, b *bot.Bot, c trigger.Condition, message string, runErr error) State {
	switch {
	case runErr == nil:
		if message == "" {
			message = fmt.Sprintf("ran for %s", c)
		}
		r.logs.AppendLog(ctx, b.ID, bot.LogSuccess, message)
		return StateSucceeded

	case errors.Is(runErr, context.DeadlineExceeded):
		r.logs.AppendLog(ctx, b.ID, bot.LogError,
			fmt.Sprintf("timed out after %s while handling %s", r.timeout, c))
		r.logger.ErrorContext(ctx, "bot run timed out", "bot_id", b.ID, "condition", c)
		return StateTimedOut

	default:
		r.logs.AppendLog(ctx, b.ID, bot.LogError,
			fmt.Sprintf("failed handling %s: %v", c, runErr))
		r.logger.ErrorContext(ctx, "bot run failed", "bot_id", b.ID, "condition", c, "error", runErr)
		return StateFailed
	}
}
