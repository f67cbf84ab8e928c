package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records flowmesh worker and trace metrics, and also satisfies
// flowmesh.MetricsSink so it can be handed directly to
// flowmesh.MetricsMiddleware. Use NewMetrics() for OpenTelemetry-backed
// metrics or NoopMetrics{} when disabled. Renamed from the teacher's
// MetricsRecorder/graph-run vocabulary to flowmesh's node/trace vocabulary.
type Metrics interface {
	// RecordNodeExecution records one worker invocation's duration and
	// error status.
	RecordNodeExecution(ctx context.Context, nodeName string, duration time.Duration, err error)
	// RecordTraceCompletion records a trace reaching the rookery.
	RecordTraceCompletion(ctx context.Context, success bool, duration time.Duration)
	// RecordStoredEventSize records the size of a persisted StateStore row.
	RecordStoredEventSize(ctx context.Context, nodeName string, sizeBytes int64)

	// IncCounter and ObserveDuration implement flowmesh.MetricsSink.
	IncCounter(name string, attrs map[string]string)
	ObserveDuration(name string, seconds float64, attrs map[string]string)
}

// otelMetrics implements Metrics using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions   metric.Int64Counter
	nodeLatency      metric.Float64Histogram
	nodeErrors       metric.Int64Counter
	traceCompletions metric.Int64Counter
	traceLatency     metric.Float64Histogram
	storedEventSize  metric.Int64Histogram
	generic          metric.Int64Counter
	genericDuration  metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("flowmesh")

	nodeExecutions, err := meter.Int64Counter("flowmesh.node.executions",
		metric.WithDescription("Number of node invocations"))
	if err != nil {
		return nil, err
	}
	nodeLatency, err := meter.Float64Histogram("flowmesh.node.latency_ms",
		metric.WithDescription("Node invocation latency in milliseconds"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	nodeErrors, err := meter.Int64Counter("flowmesh.node.errors",
		metric.WithDescription("Number of node invocation errors"))
	if err != nil {
		return nil, err
	}
	traceCompletions, err := meter.Int64Counter("flowmesh.trace.completions",
		metric.WithDescription("Number of traces reaching the rookery"))
	if err != nil {
		return nil, err
	}
	traceLatency, err := meter.Float64Histogram("flowmesh.trace.latency_ms",
		metric.WithDescription("End-to-end trace latency in milliseconds"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	storedEventSize, err := meter.Int64Histogram("flowmesh.statestore.event_size_bytes",
		metric.WithDescription("Size of a persisted StateStore row in bytes"), metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	generic, err := meter.Int64Counter("flowmesh.events.total",
		metric.WithDescription("Generic middleware event counter"))
	if err != nil {
		return nil, err
	}
	genericDuration, err := meter.Float64Histogram("flowmesh.events.duration_seconds",
		metric.WithDescription("Generic middleware duration observation"))
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions:   nodeExecutions,
		nodeLatency:      nodeLatency,
		nodeErrors:       nodeErrors,
		traceCompletions: traceCompletions,
		traceLatency:     traceLatency,
		storedEventSize:  storedEventSize,
		generic:          generic,
		genericDuration:  genericDuration,
	}, nil
}

// NewMetrics returns an OpenTelemetry-backed Metrics. If the meter fails to
// initialize, it logs a warning and falls back to NoopMetrics.
//
// Configure the OTel provider before calling this:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetrics() Metrics {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("flowmesh metrics initialization failed, using no-op recorder", slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeName string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String("node", nodeName)}
	m.nodeExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *otelMetrics) RecordTraceCompletion(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{attribute.Bool("success", success)}
	m.traceCompletions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.traceLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

func (m *otelMetrics) RecordStoredEventSize(ctx context.Context, nodeName string, sizeBytes int64) {
	m.storedEventSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("node", nodeName)))
}

func toAttrs(attrs map[string]string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, attribute.String(k, v))
	}
	return out
}

func (m *otelMetrics) IncCounter(name string, attrs map[string]string) {
	m.generic.Add(context.Background(), 1, metric.WithAttributes(append(toAttrs(attrs), attribute.String("metric", name))...))
}

func (m *otelMetrics) ObserveDuration(name string, seconds float64, attrs map[string]string) {
	m.genericDuration.Record(context.Background(), seconds, metric.WithAttributes(append(toAttrs(attrs), attribute.String("metric", name))...))
}
