package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer sets the tracer used by StartSpan.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a span named spanName. Before Setup runs it returns the span already on ctx.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

func activeSpanContext(ctx context.Context) (trace.SpanContext, bool) {
	sc := trace.SpanContextFromContext(ctx)
	return sc, tracer != nil && sc.IsValid()
}

// GetTraceID returns the active trace id, or "".
func GetTraceID(ctx context.Context) string {
	sc, ok := activeSpanContext(ctx)
	if !ok {
		return ""
	}
	return sc.TraceID().String()
}

// GetTraceParent returns the W3C traceparent value for the active span, for event headers.
func GetTraceParent(ctx context.Context) string {
	return inject(ctx).Get("traceparent")
}

// GetTraceState returns the W3C tracestate value for the active span.
func GetTraceState(ctx context.Context) string {
	return inject(ctx).Get("tracestate")
}

func inject(ctx context.Context) propagation.MapCarrier {
	carrier := propagation.MapCarrier{}
	if _, ok := activeSpanContext(ctx); ok {
		propagation.TraceContext{}.Inject(ctx, carrier)
	}
	return carrier
}
