package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopMetricsDoesNotPanic(t *testing.T) {
	var m Metrics = NoopMetrics{}
	m.RecordNodeExecution(context.Background(), "fetch", time.Millisecond, nil)
	m.RecordTraceCompletion(context.Background(), true, time.Millisecond)
	m.RecordStoredEventSize(context.Background(), "fetch", 128)
	m.IncCounter("node_start", map[string]string{"node": "fetch"})
	m.ObserveDuration("node_start", 0.01, nil)
}

func TestNoopSpanManagerDoesNotPanic(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx, span := sm.StartTraceSpan(context.Background(), "t1")
	ctx, nodeSpan := sm.StartNodeSpan(ctx, "fetch", 1)
	sm.AddSpanEvent(ctx, "checkpoint")
	sm.EndSpanWithError(nodeSpan, nil)
	sm.EndSpanWithError(span, nil)
}
