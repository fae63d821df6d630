package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/interviewpilot"

// Span attribute keys shared by the pipeline and the adapters.
const (
	GenerationKey = attribute.Key("generation")
	StatusKey     = attribute.Key("status")
	ProviderKey   = attribute.Key("provider")
)

// Tracer returns the interviewpilot tracer of the global provider.
func Tracer() trace.Tracer {
	return TracerFrom(nil)
}

// TracerFrom returns the interviewpilot tracer of tp, or of the global
// provider when tp is nil. Components accept a provider so tests can record
// spans without replacing the global one.
func TracerFrom(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// StartSpan starts a span on the global tracer. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// EndCall annotates span with the outcome of one adapter call. A non-nil err
// is recorded; failed marks the span as errored even when err is nil, which
// happens for timeouts reported only as a status.
func EndCall(span trace.Span, status string, failed bool, err error) {
	span.SetAttributes(StatusKey.String(status))
	if err != nil {
		span.RecordError(err)
	}
	if failed {
		span.SetStatus(codes.Error, status)
	}
}

// FailSpan records err on span and marks it as errored.
func FailSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// CorrelationID returns the trace ID of the span in ctx, or "" without one.
// HTTP responses carry it so a user report can be matched to a trace.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
