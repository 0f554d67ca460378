package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/broker"
	"github.com/langboard/engine/notify"
	"github.com/langboard/engine/runner"
	"github.com/langboard/engine/schedule"
	"github.com/langboard/engine/scope"
	"github.com/langboard/engine/store"
	"github.com/langboard/engine/trigger"
	"github.com/langboard/engine/webhook"
)

// wireServices initializes the internal services after options have been applied.
func (e *Engine) wireServices() {
	e.bus = notify.NewBus(e.logger)
	e.validator = trigger.NewValidator()
	e.scopeReg = scope.DefaultRegistry()

	e.botSvc = bot.NewService(e.store, e.bus, e.logger)
	e.scopeSvc = scope.NewService(e.scopeReg, e.store, e.logger)
	e.resolver = scope.NewResolver(e.scopeReg, e.store, e.store, e.logger)

	if e.cronBackend == nil {
		e.cronBackend = schedule.NewNoop()
	}
	e.reconciler = schedule.NewReconciler(e.store, e.cronBackend, e.botSvc, e.config.CronCommand, e.logger)
	e.schedSvc = schedule.NewService(e.store, e.reconciler, e.logger)
	e.firer = schedule.NewFirer(e.store, e, e.logger)

	runnerOpts := []runner.Option{runner.WithTimeout(e.config.RunTimeout)}
	if e.flow != nil {
		runnerOpts = append(runnerOpts, runner.WithFlowRuntime(e.flow))
	}
	if e.metrics != nil {
		runnerOpts = append(runnerOpts, runner.WithMetrics(e.metrics))
	}
	if e.tracer != nil {
		runnerOpts = append(runnerOpts, runner.WithTracer(e.tracer))
	}
	e.runner = runner.New(e.store, e.botSvc, e.logger, runnerOpts...)

	var fanoutOpts []webhook.FanoutOption
	if e.metrics != nil {
		fanoutOpts = append(fanoutOpts, webhook.WithMetrics(e.metrics))
	}
	e.fanout = webhook.NewFanout(e.store, e.bus, e.logger, fanoutOpts...)
	e.webhookSvc = webhook.NewService(e.store, e.logger)

	e.registry = broker.NewRegistry()
	e.registry.Register(broker.TaskRunBots, broker.EnvelopeSchema, e.runner.Handle)
	e.registry.Register(broker.TaskWebhookSend, webhook.MessageSchema, e.fanout.Handle)

	if e.broker == nil {
		if e.redisClient != nil {
			e.ownedBroker = broker.NewRedis(e.redisClient, e.config.Concurrency, e.registry, e.logger)
		} else {
			e.ownedBroker = broker.NewMemory(broker.MemoryConfig{
				Concurrency: e.config.Concurrency,
				QueueDepth:  e.config.QueueDepth,
			}, e.registry, e.logger)
		}
		if e.metrics != nil {
			e.ownedBroker.InstrumentDepth(e.metrics.QueueDepth)
		}
		e.broker = e.ownedBroker
	}

	if e.broadcast != nil {
		forward := func(n *notify.Notification) {
			data, err := json.Marshal(n.Data)
			if err != nil {
				return
			}
			if pushErr := e.broadcast.Push(context.Background(), n.Topic, data); pushErr != nil {
				e.logger.Error("broadcast push failed", "topic", n.Topic, "error", pushErr)
			} else if e.metrics != nil {
				e.metrics.BroadcastsTotal.Inc()
			}
		}
		e.bus.Subscribe(notify.TopicBotLogUpdated, forward)
		e.bus.Subscribe(notify.TopicAppSettingUpdated, forward)
	}
}

// Start begins consuming dispatch tasks on the engine-owned broker. It is
// a no-op when an external broker was injected with WithBroker; run that
// broker's workers out of process instead.
func (e *Engine) Start(ctx context.Context) {
	if e.ownedBroker != nil {
		e.ownedBroker.Start(ctx)
	}
}

// Stop drains the in-process broker.
func (e *Engine) Stop() {
	if e.ownedBroker != nil {
		e.ownedBroker.Stop()
	}
}

// Emit is the single entry point for domain mutations.
//
// The critical path:
//  1. Reject conditions outside the trigger taxonomy.
//  2. Validate the payload against the condition's JSON Schema.
//  3. Resolve the bots scoped to the condition at the location.
//  4. Enqueue one dispatch envelope per resolved bot.
//  5. Enqueue the webhook fan-out task.
//  6. Write a broadcast record for live-update consumers.
//
// Resolution never fails; enqueue failures are logged per bot and the
// first one is returned after the remaining steps complete.
func (e *Engine) Emit(ctx context.Context, c trigger.Condition, payload any, loc scope.Location) error {
	if _, ok := trigger.Lookup(c); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCondition, c)
	}

	raw, doc, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPayloadValidationFailed, err.Error())
	}
	if validateErr := e.validator.ValidateCondition(c, doc); validateErr != nil {
		return fmt.Errorf("%w: %s", ErrPayloadValidationFailed, validateErr.Error())
	}

	bots := e.resolver.Resolve(ctx, c, loc)

	now := time.Now().UTC()
	var firstErr error
	for _, botID := range bots {
		env := broker.Envelope{
			BotID:      botID,
			Condition:  c,
			Payload:    raw,
			ProjectID:  loc.ProjectID,
			EnqueuedAt: now,
			Attempt:    1,
		}
		if enqErr := e.enqueue(ctx, broker.TaskRunBots, env); enqErr != nil {
			e.logger.ErrorContext(ctx, "dispatch enqueue failed",
				"bot_id", botID,
				"condition", c,
				"error", enqErr,
			)
			if firstErr == nil {
				firstErr = enqErr
			}
		}
	}

	msg := webhook.Message{Event: string(c), Data: raw}
	if enqErr := e.enqueue(ctx, broker.TaskWebhookSend, msg); enqErr != nil {
		e.logger.ErrorContext(ctx, "webhook enqueue failed", "condition", c, "error", enqErr)
		if firstErr == nil {
			firstErr = enqErr
		}
	}

	if e.broadcast != nil {
		if pushErr := e.broadcast.Push(ctx, string(c), raw); pushErr != nil {
			e.logger.ErrorContext(ctx, "broadcast push failed", "condition", c, "error", pushErr)
		} else if e.metrics != nil {
			e.metrics.BroadcastsTotal.Inc()
		}
	}

	if e.metrics != nil {
		e.metrics.TriggersEmittedTotal.Inc()
	}

	e.logger.DebugContext(ctx, "condition emitted",
		"condition", c,
		"project_id", loc.ProjectID,
		"bots", len(bots),
	)

	return firstErr
}

// EmitScheduled dispatches one cron tick. The synthetic Scheduled
// condition bypasses scope resolution: the envelope goes straight to the
// schedule's bot.
func (e *Engine) EmitScheduled(ctx context.Context, sched *schedule.Schedule, fireTime time.Time) error {
	payload := trigger.ScheduledPayload{
		BotScheduleID: sched.ID.String(),
		FireTime:      fireTime.UTC(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("langboard: encode scheduled payload: %w", err)
	}

	env := broker.Envelope{
		BotID:      sched.BotID,
		Condition:  trigger.Scheduled,
		Payload:    raw,
		ProjectID:  sched.ProjectID,
		EnqueuedAt: time.Now().UTC(),
		Attempt:    1,
	}
	if enqErr := e.enqueue(ctx, broker.TaskRunBots, env); enqErr != nil {
		return fmt.Errorf("langboard: enqueue scheduled dispatch: %w", enqErr)
	}

	msg := webhook.Message{Event: string(trigger.Scheduled), Data: raw}
	if enqErr := e.enqueue(ctx, broker.TaskWebhookSend, msg); enqErr != nil {
		e.logger.ErrorContext(ctx, "webhook enqueue failed",
			"condition", trigger.Scheduled,
			"schedule_id", sched.ID,
			"error", enqErr,
		)
	}

	if e.metrics != nil {
		e.metrics.TriggersEmittedTotal.Inc()
	}

	e.logger.DebugContext(ctx, "schedule fired",
		"schedule_id", sched.ID,
		"bot_id", sched.BotID,
		"fire_time", fireTime.UTC(),
	)

	return nil
}

func (e *Engine) enqueue(ctx context.Context, task string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", task, err)
	}
	return e.broker.EnqueueAsync(ctx, task, body)
}

// encodePayload marshals the payload once and decodes it back for schema
// validation. A json.RawMessage payload is passed through untouched.
func encodePayload(payload any) (json.RawMessage, any, error) {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("encode payload: %w", err)
		}
		raw = encoded
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode payload: %w", err)
	}
	return raw, doc, nil
}

// Bots returns the bot management service.
func (e *Engine) Bots() *bot.Service {
	return e.botSvc
}

// Scopes returns the scope management service.
func (e *Engine) Scopes() *scope.Service {
	return e.scopeSvc
}

// Schedules returns the schedule management service.
func (e *Engine) Schedules() *schedule.Service {
	return e.schedSvc
}

// Webhooks returns the webhook settings service.
func (e *Engine) Webhooks() *webhook.Service {
	return e.webhookSvc
}

// Runner returns the bot runner, for registering internal handlers.
func (e *Engine) Runner() *runner.Runner {
	return e.runner
}

// Firer returns the cron firer used by the run:bot:cron command.
func (e *Engine) Firer() *schedule.Firer {
	return e.firer
}

// Reconciler returns the crontab reconciler.
func (e *Engine) Reconciler() *schedule.Reconciler {
	return e.reconciler
}

// Registry returns the broker task registry.
func (e *Engine) Registry() *broker.Registry {
	return e.registry
}

// Bus returns the in-process notification bus.
func (e *Engine) Bus() *notify.Bus {
	return e.bus
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store {
	return e.store
}
