package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the flowmesh tracer instance, using the global OTel tracer
// provider.
var tracer = otel.Tracer("flowmesh")

// SpanManager handles span lifecycle for a flowmesh trace and its node
// invocations. Use NewSpanManager() for OTel tracing or NoopSpanManager{}
// when disabled. Renamed from the teacher's graph-run vocabulary
// (StartRunSpan/StartNodeSpan keyed by graphName/runID) to flowmesh's
// trace/node vocabulary (traceID/nodeName).
type SpanManager interface {
	// StartTraceSpan starts a span covering one trace's whole lifetime,
	// from ingress Emit to rookery Fetch.
	StartTraceSpan(ctx context.Context, traceID string) (context.Context, trace.Span)
	// StartNodeSpan starts a span for one node invocation, a child of the
	// trace span already in ctx.
	StartNodeSpan(ctx context.Context, nodeName string, attempt int) (context.Context, trace.Span)
	// EndSpanWithError completes span, recording err if non-nil.
	EndSpanWithError(span trace.Span, err error)
	// AddSpanEvent adds a named event with attrs to the span in ctx.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns an OpenTelemetry-backed SpanManager. Configure the
// OTel tracer provider before calling this:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartTraceSpan(ctx context.Context, traceID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "flowmesh.trace",
		trace.WithAttributes(attribute.String("trace.id", traceID)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartNodeSpan(ctx context.Context, nodeName string, attempt int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "flowmesh.node."+nodeName,
		trace.WithAttributes(
			attribute.String("node.name", nodeName),
			attribute.Int("attempt", attempt),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
