package flowmesh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runtime is a compiled graph's live execution: one worker goroutine per
// non-ingress node, a bounded edge per producer->successor pair, a shared
// rookery for egress output and errors, and the cross-cutting services
// (model registry, state store, middleware) every worker shares. Grounded
// on the teacher's CompiledGraph.Run entry point, restructured from a
// single synchronous walk into a pool of concurrent long-lived workers
// (spec §4.4, §4.5).
type Runtime struct {
	cg      *compiledGraph
	models  *ModelRegistry
	store   StateStore
	tools   any
	artifacts ArtifactStore
	logger  *slog.Logger
	disp    *dispatcher
	traces  *traceRegistry

	rookery chan *Message

	baseCtx   context.Context
	cancelAll context.CancelFunc

	wg sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// Create compiles adjacencies into a Runtime. It validates topology (unique
// names, known references, disallowed cycles) but does not start any
// worker goroutine — call Run for that. Grounded on the teacher's
// Graph.Compile, generalized to build a Runtime instead of a CompiledGraph
// since flowmesh has no separate "compiled, not yet running" public type.
func Create(adjacencies ...Adjacency) (*Runtime, error) {
	return CreateWithOptions(adjacencies, nil)
}

// CreateWithOptions is Create with configuration. Kept as a separate
// function (rather than variadic CreateOption on Create itself) so
// Create's signature stays exactly the spec's `create(*adjacencies)` shape;
// most callers that need options use this form directly.
func CreateWithOptions(adjacencies []Adjacency, opts []CreateOption) (*Runtime, error) {
	o := defaultCreateOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cg, err := compile(adjacencies, o)
	if err != nil {
		return nil, err
	}

	models := o.models
	if models == nil {
		models = NewModelRegistry()
	}
	store := o.store
	if store == nil {
		store = NopStateStore{}
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	rookeryCap := o.rookeyCapacity
	if rookeryCap <= 0 {
		rookeryCap = o.queueCapacity
	}

	rt := &Runtime{
		cg:        cg,
		models:    models,
		store:     store,
		tools:     o.tools,
		artifacts: o.artifacts,
		logger:    logger,
		disp:      &dispatcher{},
		traces:    newTraceRegistry(),
		rookery:   make(chan *Message, rookeryCap),
	}
	for _, mw := range o.middlewares {
		rt.disp.add(mw)
	}
	return rt, nil
}

// AddMiddleware registers an additional Middleware. Safe to call before or
// after Run, but a Middleware added after a worker has already emitted past
// events will not see those earlier events (spec §6: no event replay).
func (rt *Runtime) AddMiddleware(mw Middleware) {
	rt.disp.add(mw)
}

func (rt *Runtime) emitEvent(ev Event) {
	rt.disp.emit(ev)
}

func (rt *Runtime) saveEventAsync(ev StoredEvent) {
	ev.Timestamp = time.Now().UnixNano()
	go func() {
		// Fire-and-forget per spec §4.9/§9: a slow or failing StateStore
		// must never stall a worker.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = rt.store.SaveEvent(ctx, ev)
	}()
}

// Run starts one worker goroutine per non-ingress node and returns
// immediately. ctx is the base context every worker and trace derives
// from; cancelling it stops the whole Runtime as if Stop had been called.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.mu.Lock()
	if rt.started {
		rt.mu.Unlock()
		return nil
	}
	rt.started = true
	rt.baseCtx, rt.cancelAll = context.WithCancel(ctx)
	rt.mu.Unlock()

	for name, node := range rt.cg.topo.nodes {
		if rt.cg.isIngress(name) {
			continue
		}
		inbound := make([]*edge, 0, len(rt.cg.topo.predecessors[name]))
		for _, from := range rt.cg.topo.predecessors[name] {
			if e, ok := rt.cg.edgeFor(from, name); ok {
				inbound = append(inbound, e)
			}
		}
		w := &worker{node: node, rt: rt, inbound: inbound}
		rt.wg.Add(1)
		go w.run(rt.baseCtx)
	}
	return nil
}

// Emit injects msg at the named ingress node, invoking it directly (an
// ingress node has no predecessor edge to pull from — spec §4.1). The
// ingress node runs on the caller's goroutine, so Emit blocks for the whole
// invocation (including retries and backoff) and for routing its output
// (e.g. a full successor queue).
func (rt *Runtime) Emit(ctx context.Context, nodeName string, msg *Message) error {
	node, ok := rt.cg.topo.nodes[nodeName]
	if !ok {
		return ErrUnknownNode
	}
	if !rt.cg.isIngress(nodeName) {
		return ErrInvalidTarget
	}
	w := &worker{node: node, rt: rt}
	w.handle(ctx, msg)
	return nil
}

// Fetch blocks until the rookery produces a message (egress output,
// PlannerPause, or a FlowError that reached the end of the graph without
// being routed elsewhere) or ctx is done.
func (rt *Runtime) Fetch(ctx context.Context) (*Message, error) {
	select {
	case msg := <-rt.rookery:
		if ferr, ok := msg.Payload.(*FlowError); ok {
			return msg, ferr
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel trips the cancellation context for one trace. Every worker
// currently handling a message from that trace observes it at its next
// suspension point and unwinds with CodeCancelled (spec §6). It reports
// whether any trace was actually affected: cancelling an unknown or
// already-completed trace returns false (spec §4.5).
func (rt *Runtime) Cancel(traceID string) bool {
	rt.emitEvent(Event{Name: EventTraceCancelStart, TraceID: traceID})
	affected := rt.traces.cancel(traceID)
	rt.emitEvent(Event{Name: EventTraceCancelFinish, TraceID: traceID})
	return affected
}

// Stop cancels every in-flight trace and the Runtime's base context, then
// closes every edge so blocked workers unwind and return. It does not
// guarantee full drain of buffered messages (spec §8).
func (rt *Runtime) Stop() {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return
	}
	rt.stopped = true
	rt.mu.Unlock()

	if rt.cancelAll != nil {
		rt.cancelAll()
	}
	for _, e := range rt.cg.edges {
		e.close()
	}
	rt.wg.Wait()
}
