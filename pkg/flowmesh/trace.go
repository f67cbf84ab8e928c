package flowmesh

import (
	"context"
	"sync"
)

// traceState holds the per-trace bookkeeping a Runtime needs: the
// cancellation signal every worker handling a message from this trace must
// observe at its next suspension point (spec §6: cancellation is
// cooperative, not synchronous), plus per-trace hop and token counters.
// Controller budgets are not checked against these counters; checkBudget
// enforces them on the WorkingMemory payload instead.
type traceState struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	ctx      context.Context
	hops     int
	tokens   int
	startedAt int64 // unix nanos; nothing in this package sets it
}

// traceRegistry tracks one traceState per in-flight trace ID. Grounded on
// the teacher's signal/cancellation bookkeeping, generalized from a single
// shared run to many concurrent traces sharing one Runtime.
type traceRegistry struct {
	mu     sync.RWMutex
	traces map[string]*traceState
}

func newTraceRegistry() *traceRegistry {
	return &traceRegistry{traces: make(map[string]*traceState)}
}

// register creates (or returns the existing) traceState for id, deriving
// its cancellation context from parent.
func (r *traceRegistry) register(parent context.Context, id string) *traceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ts, ok := r.traces[id]; ok {
		return ts
	}
	ctx, cancel := context.WithCancel(parent)
	ts := &traceState{ctx: ctx, cancel: cancel}
	r.traces[id] = ts
	return ts
}

func (r *traceRegistry) get(id string) (*traceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ts, ok := r.traces[id]
	return ts, ok
}

// cancel trips the cancellation context for id, if it exists. Every worker
// currently blocked on an edge get/put or a timeout race for that trace
// observes ctx.Done() at its next suspension point and unwinds (spec §6).
func (r *traceRegistry) cancel(id string) bool {
	r.mu.RLock()
	ts, ok := r.traces[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	ts.cancel()
	return true
}

// forget removes a trace's bookkeeping once it reaches egress or the
// rookery. Safe to call on an id that was never registered.
func (r *traceRegistry) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ts, ok := r.traces[id]; ok {
		ts.cancel()
		delete(r.traces, id)
	}
}

// incrHops increments and returns the trace's hop counter. invokeOnce calls
// it after every successful node invocation; no budget is checked against it.
func (ts *traceState) incrHops() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.hops++
	return ts.hops
}

// addTokens accumulates token spend and returns the running total. No
// budget is checked against it; token budgets live on WorkingMemory.
func (ts *traceState) addTokens(n int) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.tokens += n
	return ts.tokens
}

func (ts *traceState) snapshot() (hops, tokens int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.hops, ts.tokens
}
