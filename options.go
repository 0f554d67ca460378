package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	gu "github.com/xraph/go-utils/metrics"

	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/broadcast"
	"github.com/langboard/engine/broker"
	"github.com/langboard/engine/notify"
	"github.com/langboard/engine/observability"
	"github.com/langboard/engine/runner"
	"github.com/langboard/engine/schedule"
	"github.com/langboard/engine/scope"
	"github.com/langboard/engine/store"
	"github.com/langboard/engine/trigger"
	"github.com/langboard/engine/webhook"
)

// runnableBroker is a broker the engine owns the lifecycle of.
type runnableBroker interface {
	broker.Broker
	InstrumentDepth(g gu.Gauge)
	Start(ctx context.Context)
	Stop()
}

// Engine is the root bot trigger and dispatch engine.
type Engine struct {
	config      Config
	store       store.Store
	broker      broker.Broker
	ownedBroker runnableBroker
	redisClient redis.UniversalClient
	registry    *broker.Registry
	broadcast   broadcast.Queue
	cronBackend schedule.CronBackend
	flow        runner.FlowRuntime
	metrics     *observability.Metrics
	tracer      *observability.Tracer

	bus        *notify.Bus
	validator  *trigger.Validator
	scopeReg   *scope.Registry
	resolver   *scope.Resolver
	botSvc     *bot.Service
	scopeSvc   *scope.Service
	schedSvc   *schedule.Service
	webhookSvc *webhook.Service
	reconciler *schedule.Reconciler
	firer      *schedule.Firer
	runner     *runner.Runner
	fanout     *webhook.Fanout
	logger     *slog.Logger
}

// Option configures an Engine instance.
type Option func(*Engine) error

// New creates a new Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.store == nil {
		return nil, ErrNoStore
	}
	e.wireServices()
	return e, nil
}

// WithStore sets the persistence backend for the Engine instance.
func WithStore(s store.Store) Option {
	return func(e *Engine) error {
		e.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Engine instance.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithBroker sets the dispatch broker. When omitted the engine runs an
// in-process broker sized by Concurrency and QueueDepth.
func WithBroker(b broker.Broker) Option {
	return func(e *Engine) error {
		e.broker = b
		return nil
	}
}

// WithRedisBroker runs dispatch on Redis list queues instead of the
// in-process broker, for multi-process worker pools.
func WithRedisBroker(client redis.UniversalClient) Option {
	return func(e *Engine) error {
		e.redisClient = client
		return nil
	}
}

// WithBroadcast sets the broadcast queue for realtime UI events. When
// omitted the engine does not broadcast.
func WithBroadcast(q broadcast.Queue) Option {
	return func(e *Engine) error {
		e.broadcast = q
		return nil
	}
}

// WithCronBackend sets the crontab backend used by the schedule
// reconciler. Defaults to the no-op backend.
func WithCronBackend(b schedule.CronBackend) Option {
	return func(e *Engine) error {
		e.cronBackend = b
		return nil
	}
}

// WithFlowRuntime sets the embedded runtime for FlowJson bots.
func WithFlowRuntime(rt runner.FlowRuntime) Option {
	return func(e *Engine) error {
		e.flow = rt
		return nil
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithTracer sets the tracer for bot run spans.
func WithTracer(t *observability.Tracer) Option {
	return func(e *Engine) error {
		e.tracer = t
		return nil
	}
}

// WithConcurrency sets the number of dispatch worker goroutines.
func WithConcurrency(n int) Option {
	return func(e *Engine) error {
		e.config.Concurrency = n
		return nil
	}
}

// WithQueueDepth sets the per-task buffer of the in-process broker.
func WithQueueDepth(n int) Option {
	return func(e *Engine) error {
		e.config.QueueDepth = n
		return nil
	}
}

// WithRunTimeout sets the wall-clock budget for one bot invocation.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		e.config.RunTimeout = d
		return nil
	}
}

// WithCronCommand sets the command line installed in crontab entries.
func WithCronCommand(cmd string) Option {
	return func(e *Engine) error {
		e.config.CronCommand = cmd
		return nil
	}
}
