// Package observability provides metric instruments and tracing for the
// dispatch engine.
package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds the engine's metric instruments, backed by any go-utils
// MetricFactory.
type Metrics struct {
	TriggersEmittedTotal gu.Counter
	BotRunsTotal         gu.Counter
	BotRunLatency        gu.Histogram
	WebhookSendsTotal    gu.Counter
	BroadcastsTotal      gu.Counter
	QueueDepth           gu.Gauge
}

// NewMetrics creates the engine instruments using the supplied factory.
// Pass metrics.NewMetricsCollector() for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		TriggersEmittedTotal: factory.Counter("engine_triggers_emitted_total"),
		BotRunsTotal:         factory.Counter("engine_bot_runs_total"),
		BotRunLatency:        factory.Histogram("engine_bot_run_latency_seconds"),
		WebhookSendsTotal:    factory.Counter("engine_webhook_sends_total"),
		BroadcastsTotal:      factory.Counter("engine_broadcasts_total"),
		QueueDepth:           factory.Gauge("engine_queue_depth"),
	}
}

// RecordBotRun records one bot invocation with its final state and
// latency.
func (m *Metrics) RecordBotRun(state string, latencySeconds float64) {
	m.BotRunsTotal.WithLabels(map[string]string{"state": state}).Inc()
	m.BotRunLatency.Observe(latencySeconds)
}

// RecordWebhookSend records one webhook fan-out attempt.
func (m *Metrics) RecordWebhookSend(status string) {
	m.WebhookSendsTotal.WithLabels(map[string]string{"status": status}).Inc()
}
