package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a Metrics that does nothing, for disabling metrics
// overhead without branching caller code.
type NoopMetrics struct{}

var _ Metrics = NoopMetrics{}

func (NoopMetrics) RecordNodeExecution(_ context.Context, _ string, _ time.Duration, _ error) {}
func (NoopMetrics) RecordTraceCompletion(_ context.Context, _ bool, _ time.Duration)           {}
func (NoopMetrics) RecordStoredEventSize(_ context.Context, _ string, _ int64)                  {}
func (NoopMetrics) IncCounter(_ string, _ map[string]string)                                    {}
func (NoopMetrics) ObserveDuration(_ string, _ float64, _ map[string]string)                     {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

func (NoopSpanManager) StartTraceSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) StartNodeSpan(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
