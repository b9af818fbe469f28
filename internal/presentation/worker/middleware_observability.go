package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "use_case", "event", "order_id").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}
	if attrs == nil {
		attrs = make(map[string]string)
	}

	fields := make([]observability.Field, 0, 6)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.Enrich(ctx, base, fields...)
}

// EventDecorator adapts WithEventContext to the outbox bus: every handler gets a
// logger carrying the event name, its order id and the publisher's trace.
func EventDecorator(base observability.Logger) func(context.Context, domoutbox.Event, trace.SpanContext) context.Context {
	return func(ctx context.Context, e domoutbox.Event, parent trace.SpanContext) context.Context {
		attrs := map[string]string{"event": e.EventName()}
		if agg, ok := e.(domoutbox.Keyed); ok {
			attrs["order_id"] = agg.AggregateID()
		}
		return WithEventContext(ctx, base, parent.TraceID(), parent.SpanID(), attrs)
	}
}
