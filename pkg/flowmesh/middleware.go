package flowmesh

import (
	"fmt"
	"log/slog"
	"sync"
)

// Canonical middleware event names (spec §6, Design Notes §9: "a simple
// slice of callbacks, not a plugin/pub-sub system"). Every worker lifecycle
// transition dispatches exactly one of these.
const (
	EventNodeStart        = "node_start"
	EventNodeSuccess      = "node_success"
	EventNodeError        = "node_error"
	EventNodeRetry        = "node_retry"
	EventNodeTimeout      = "node_timeout"
	EventNodeCancelled    = "node_cancelled"
	EventTraceCancelStart  = "trace_cancel_start"
	EventTraceCancelFinish = "trace_cancel_finish"
)

// Event is the payload delivered to every registered Middleware callback.
// Fields not relevant to a given Name are left zero (e.g. Err is nil for
// node_start).
type Event struct {
	Name     string
	TraceID  string
	NodeName string
	Attempt  int
	Err      error
	Extra    map[string]any
}

// Middleware observes worker lifecycle events. It must not block or panic;
// a Runtime invokes every registered Middleware synchronously, in
// registration order, from the worker goroutine that produced the event, so
// a slow middleware slows that node (spec's explicit non-goal: no async
// event bus). Adapted from the teacher's observability hook shape and from
// event/router.go's middleware functions, collapsed from a pub/sub router
// into the plain callback slice the spec requires.
type Middleware func(Event)

// dispatcher holds the ordered middleware slice a Runtime invokes.
type dispatcher struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

func (d *dispatcher) add(m Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, m)
}

func (d *dispatcher) emit(ev Event) {
	d.mu.RLock()
	mws := d.middlewares
	d.mu.RUnlock()
	for _, m := range mws {
		m(ev)
	}
}

// LoggingMiddleware returns a Middleware that writes one structured log line
// per event via logger, at a level chosen by the event's severity. Adapted
// from event/router.go's LoggingMiddleware.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ev Event) {
		attrs := []any{
			slog.String("event", ev.Name),
			slog.String("trace_id", ev.TraceID),
			slog.String("node", ev.NodeName),
		}
		if ev.Attempt > 0 {
			attrs = append(attrs, slog.Int("attempt", ev.Attempt))
		}
		switch ev.Name {
		case EventNodeError, EventNodeTimeout:
			if ev.Err != nil {
				attrs = append(attrs, slog.String("error", ev.Err.Error()))
			}
			logger.Error("flowmesh node event", attrs...)
		case EventNodeRetry, EventNodeCancelled, EventTraceCancelStart, EventTraceCancelFinish:
			logger.Warn("flowmesh node event", attrs...)
		default:
			logger.Debug("flowmesh node event", attrs...)
		}
	}
}

// RecoveryMiddleware returns a Middleware that converts a node_error event
// carrying a *PanicError into a louder structured log line, so a recovered
// panic is never silently indistinguishable from an ordinary error return.
// Adapted from event/router.go's RecoveryMiddleware.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(ev Event) {
		if ev.Name != EventNodeError {
			return
		}
		var pe *PanicError
		if ev.Err == nil {
			return
		}
		if p, ok := ev.Err.(*PanicError); ok {
			pe = p
		} else if ne, ok := ev.Err.(*NodeError); ok {
			if p, ok := ne.Err.(*PanicError); ok {
				pe = p
			}
		}
		if pe == nil {
			return
		}
		logger.Error("flowmesh recovered panic",
			slog.String("trace_id", ev.TraceID),
			slog.String("node", pe.NodeName),
			slog.Any("value", pe.Value),
			slog.String("stack", pe.Stack),
		)
	}
}

// MetricsSink receives counter/duration observations. observability.Metrics
// satisfies this; it is declared here (instead of importing the
// observability package) to keep middleware.go dependency-free for callers
// that only want the event taxonomy.
type MetricsSink interface {
	IncCounter(name string, attrs map[string]string)
	ObserveDuration(name string, seconds float64, attrs map[string]string)
}

// MetricsMiddleware returns a Middleware that increments a per-event-name
// counter on sink. Adapted from event/router.go's MetricsMiddleware.
func MetricsMiddleware(sink MetricsSink) Middleware {
	return func(ev Event) {
		sink.IncCounter(fmt.Sprintf("flowmesh_%s_total", ev.Name), map[string]string{
			"node": ev.NodeName,
		})
	}
}
