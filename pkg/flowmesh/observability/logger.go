// Package observability provides production-grade observability for
// flowmesh: structured logging, OpenTelemetry metrics, and OpenTelemetry
// tracing. All three are opt-in; metrics and tracing have no-op
// implementations (see noop.go). Adapted from the teacher's observability
// package, renamed from its run/graph vocabulary to flowmesh's
// trace/node/event vocabulary.
package observability

import (
	"log/slog"
	"time"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
)

// EnrichLogger returns a new logger with trace_id, node, and attempt fields
// attached — the same enrichment context.go applies per invocation,
// exposed here for callers building their own logger outside a Context.
func EnrichLogger(logger *slog.Logger, traceID, nodeName string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("trace_id", traceID),
		slog.String("node", nodeName),
		slog.Int("attempt", attempt),
	)
}

// LoggingMiddleware returns a flowmesh.Middleware that writes one line per
// worker lifecycle event via logger, using this package's enrichment
// convention. A thin alternative to flowmesh.LoggingMiddleware for callers
// that already depend on this package for metrics/tracing and want one
// consistent import.
func LoggingMiddleware(logger *slog.Logger) flowmesh.Middleware {
	return flowmesh.LoggingMiddleware(logger)
}

// TimedOperation measures elapsed wall time. Call the returned func when
// the operation completes to get milliseconds elapsed.
//
//	done := observability.TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
