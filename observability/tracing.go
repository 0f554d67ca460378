package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/langboard/engine"

// Tracer provides OpenTelemetry tracing for bot invocations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates an engine tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartBotRunSpan starts a span for one bot invocation.
func (t *Tracer) StartBotRunSpan(ctx context.Context, botID, condition string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "engine.bot_run",
		trace.WithAttributes(
			attribute.String("engine.bot_id", botID),
			attribute.String("engine.trigger_condition", condition),
		),
	)
}

// EndBotRunSpan ends a bot invocation span with its final state.
func (t *Tracer) EndBotRunSpan(span trace.Span, state string, latencyMs int, err string) {
	span.SetAttributes(
		attribute.String("engine.run_state", state),
		attribute.Int("engine.latency_ms", latencyMs),
	)
	if err != "" {
		span.SetAttributes(attribute.String("engine.error", err))
	}
	span.End()
}
