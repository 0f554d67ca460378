package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	gu "github.com/xraph/go-utils/metrics"
)

const (
	queueKeyPrefix = "langboard:queue:"
	popTimeout     = 2 * time.Second
)

// Redis is a list-backed broker for multi-process worker pools. Producers
// LPUSH onto a per-task list and workers BRPOP across all task lists, so
// each list is consumed FIFO and no single task can monopolise a worker.
type Redis struct {
	client   redis.UniversalClient
	registry *Registry
	logger   *slog.Logger

	concurrency int
	depth       gu.Gauge

	startOnce sync.Once
	stop      context.CancelFunc
	wg        sync.WaitGroup
}

// NewRedis creates a Redis-backed broker. Concurrency bounds the number
// of consumer goroutines.
func NewRedis(client redis.UniversalClient, concurrency int, registry *Registry, logger *slog.Logger) *Redis {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:      client,
		registry:    registry,
		logger:      logger,
		concurrency: concurrency,
	}
}

// InstrumentDepth attaches a gauge tracking this process's produced and
// consumed work. Call before Start.
func (r *Redis) InstrumentDepth(g gu.Gauge) { r.depth = g }

// EnqueueAsync pushes a payload onto the task's Redis list and returns
// without waiting for a consumer.
func (r *Redis) EnqueueAsync(ctx context.Context, task string, payload json.RawMessage) error {
	if _, ok := r.registry.Handler(task); !ok {
		return ErrUnknownTask
	}

	if err := r.client.LPush(ctx, queueKeyPrefix+task, []byte(payload)).Err(); err != nil {
		return err
	}
	if r.depth != nil {
		r.depth.Inc()
	}
	r.logger.DebugContext(ctx, "task enqueued", "task", task, "bytes", len(payload))
	return nil
}

// Start launches the consumer goroutines.
func (r *Redis) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.stop = context.WithCancel(ctx)

		keys := make([]string, 0)
		for _, task := range r.registry.Tasks() {
			keys = append(keys, queueKeyPrefix+task)
		}

		for i := 0; i < r.concurrency; i++ {
			r.wg.Add(1)
			go r.consume(ctx, rotate(keys, i))
		}
	})
}

// Stop cancels the consumers and waits for in-flight handlers.
func (r *Redis) Stop() {
	if r.stop == nil {
		return
	}
	r.stop()
	r.wg.Wait()
}

// consume blocks on BRPOP over every task list. Each worker starts its
// key list at a different offset so load spreads across tasks.
func (r *Redis) consume(ctx context.Context, keys []string) {
	defer r.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := r.client.BRPop(ctx, popTimeout, keys...).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			r.logger.ErrorContext(ctx, "queue pop failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) != 2 {
			continue
		}
		if r.depth != nil {
			r.depth.Dec()
		}

		task := res[0][len(queueKeyPrefix):]
		fn, ok := r.registry.Handler(task)
		if !ok {
			r.logger.ErrorContext(ctx, "no handler for task", "task", task)
			continue
		}

		r.runSafe(ctx, task, fn, json.RawMessage(res[1]))
	}
}

func (r *Redis) runSafe(ctx context.Context, task string, fn Handler, payload json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "task handler panicked", "task", task, "panic", rec)
		}
	}()

	if err := fn(ctx, payload); err != nil {
		r.logger.ErrorContext(ctx, "task handler failed", "task", task, "error", err)
	}
}

// rotate returns keys shifted left by n so workers prefer different
// lists when several are non-empty.
func rotate(keys []string, n int) []string {
	if len(keys) == 0 {
		return keys
	}
	n %= len(keys)
	out := make([]string, 0, len(keys))
	out = append(out, keys[n:]...)
	out = append(out, keys[:n]...)
	return out
}
