package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const SpanPrefix = "UC."

// Instruments holds what every use case and worker handler reports to.
type Instruments struct {
	tracer observability.Tracer
	log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewInstruments(tel observability.Observability, service string) *Instruments {
	tel = observability.OrNop(tel)
	return &Instruments{
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

func (in *Instruments) Tracer() observability.Tracer { return in.tracer }

func (in *Instruments) Logger() observability.Logger { return in.log }

// Count records a request that ended before Begin, such as an ignored event.
func (in *Instruments) Count(useCase, outcome string) {
	in.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}

// Execution tracks one run of a use case. End must be deferred right after Begin.
type Execution struct {
	in      *Instruments
	useCase string
	span    trace.Span
	logger  observability.Logger
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Begin opens the use case span and binds a scoped logger to the returned context,
// so repositories and clients further down log with the same fields.
func (in *Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Execution) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, SpanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)

	return ctx, &Execution{
		in:      in,
		useCase: useCase,
		span:    span,
		logger:  logger,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

func (e *Execution) Span() trace.Span { return e.span }

func (e *Execution) Logger() observability.Logger { return e.logger }

// Fail marks the run as an error with a machine-readable status.
func (e *Execution) Fail(status string) { e.outcome, e.status = "error", status }

// Status replaces the status text and keeps the outcome.
func (e *Execution) Status(status string) { e.status = status }

func (e *Execution) Ignore(status string) { e.outcome, e.status = "ignored", status }

// With adds a field to the final use_case_done log.
func (e *Execution) With(key string, value any) {
	e.fields = append(e.fields, observability.F(key, value))
}

func (e *Execution) End(err error) {
	lat := time.Since(e.start).Seconds()
	if err != nil && e.outcome == "success" {
		e.outcome = "error"
	}

	if err != nil {
		e.span.RecordError(err)
		e.span.SetStatus(codes.Error, e.status)
	} else {
		e.span.SetStatus(codes.Ok, e.status)
	}
	e.span.End()

	e.in.Count(e.useCase, e.outcome)
	e.in.durHistogram.Observe(lat, observability.L("use_case", e.useCase))

	fields := append([]observability.Field{
		observability.F("outcome", e.outcome),
		observability.F("status", e.status),
		observability.F("latency_seconds", lat),
	}, e.fields...)
	if err != nil {
		fields = append(fields, observability.Err(err))
	}
	e.logger.Info("use_case_done", fields...)
}
