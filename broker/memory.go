package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	gu "github.com/xraph/go-utils/metrics"
)

var (
	// ErrQueueFull is returned when a task queue cannot accept more work.
	ErrQueueFull = errors.New("broker: queue full")

	// ErrUnknownTask is returned when no handler is registered for a task.
	ErrUnknownTask = errors.New("broker: unknown task")
)

const defaultQueueDepth = 1024

// MemoryConfig tunes the in-process broker.
type MemoryConfig struct {
	// Concurrency bounds the worker pool shared across all queues.
	// With Concurrency 1 the broker degrades to cooperative serial
	// execution, which is the development-mode behavior.
	Concurrency int

	// QueueDepth is the per-task buffer size.
	QueueDepth int
}

// Memory is an in-process broker. Each task name owns a FIFO queue with a
// dedicated puller; pullers share one semaphore so no queue can starve
// another of worker slots.
type Memory struct {
	cfg      MemoryConfig
	registry *Registry
	logger   *slog.Logger

	mu     sync.Mutex
	queues map[string]chan json.RawMessage

	depth gu.Gauge

	startOnce sync.Once
	stop      context.CancelFunc
	wg        sync.WaitGroup
}

// NewMemory creates an in-process broker over a task registry.
func NewMemory(cfg MemoryConfig, registry *Registry, logger *slog.Logger) *Memory {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		queues:   make(map[string]chan json.RawMessage),
	}
}

// InstrumentDepth attaches a gauge tracking queued-but-unconsumed work.
// Call before Start.
func (m *Memory) InstrumentDepth(g gu.Gauge) { m.depth = g }

// EnqueueAsync places a payload on the task's queue and returns
// immediately. The payload bytes are carried to the handler unchanged.
func (m *Memory) EnqueueAsync(ctx context.Context, task string, payload json.RawMessage) error {
	if _, ok := m.registry.Handler(task); !ok {
		return ErrUnknownTask
	}

	q := m.queue(task)
	select {
	case q <- payload:
		if m.depth != nil {
			m.depth.Inc()
		}
		m.logger.DebugContext(ctx, "task enqueued", "task", task, "bytes", len(payload))
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the queue pullers and worker pool. It returns
// immediately; call Stop to drain.
func (m *Memory) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.stop = context.WithCancel(ctx)

		sem := make(chan struct{}, m.cfg.Concurrency)
		for _, task := range m.registry.Tasks() {
			q := m.queue(task)
			fn, _ := m.registry.Handler(task)

			m.wg.Add(1)
			go m.pull(ctx, task, q, fn, sem)
		}
	})
}

// Stop cancels the pullers and waits for in-flight handlers to finish.
func (m *Memory) Stop() {
	if m.stop == nil {
		return
	}
	m.stop()
	m.wg.Wait()
}

// pull drains one task queue in FIFO order. Each message takes a slot
// from the shared semaphore before running, so dequeue order is stable
// per queue while execution overlaps across queues.
func (m *Memory) pull(ctx context.Context, task string, q <-chan json.RawMessage, fn Handler, sem chan struct{}) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-q:
			if m.depth != nil {
				m.depth.Dec()
			}
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}

			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				defer func() { <-sem }()
				m.run(ctx, task, fn, payload)
			}()
		}
	}
}

func (m *Memory) run(ctx context.Context, task string, fn Handler, payload json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.ErrorContext(ctx, "task handler panicked", "task", task, "panic", rec)
		}
	}()

	if err := fn(ctx, payload); err != nil {
		m.logger.ErrorContext(ctx, "task handler failed", "task", task, "error", err)
	}
}

func (m *Memory) queue(task string) chan json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[task]
	if !ok {
		q = make(chan json.RawMessage, m.cfg.QueueDepth)
		m.queues[task] = q
	}
	return q
}
