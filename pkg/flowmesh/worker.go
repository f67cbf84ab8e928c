package flowmesh

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// worker is the long-lived goroutine state for one node: it owns the
// node's inbound edges and drives the fetch -> validate -> invoke(with
// timeout+retry) -> validate -> route loop (spec §4.4). Grounded on the
// teacher's runFromWithObservability/executeNode (timing, span, panic
// recovery, logging, metrics), restructured from "one executor walks a
// shared state through sequential nodes" into "one goroutine per node
// pulling from its in-edge."
type worker struct {
	node    *Node
	rt      *Runtime
	inbound []*edge // empty for an ingress node fed directly via Runtime.Emit
}

// run is the worker's main loop. It exits when every inbound edge reports
// closed (ok=false) or the Runtime's base context is done.
func (w *worker) run(ctx context.Context) {
	defer w.rt.wg.Done()
	if len(w.inbound) == 0 {
		// Ingress nodes have no predecessor edge; they're invoked directly
		// by Runtime.Emit and never loop here.
		return
	}
	for {
		msg, ok, err := w.pullAny(ctx)
		if err != nil {
			return
		}
		if !ok {
			return
		}
		w.handle(ctx, msg)
	}
}

// pullAny waits for the next message on any inbound edge. With exactly one
// inbound edge (the common case) it degrades to a direct get.
func (w *worker) pullAny(ctx context.Context) (*Message, bool, error) {
	if len(w.inbound) == 1 {
		return w.inbound[0].get(ctx)
	}
	type result struct {
		msg *Message
		ok  bool
		err error
	}
	results := make(chan result, len(w.inbound))
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for _, e := range w.inbound {
		e := e
		go func() {
			msg, ok, err := e.get(fetchCtx)
			select {
			case results <- result{msg, ok, err}:
			case <-fetchCtx.Done():
			}
		}()
	}
	r := <-results
	return r.msg, r.ok, r.err
}

// handle runs the node function for one inbound message, including
// validation, timeout+retry, budget enforcement, and routing.
func (w *worker) handle(ctx context.Context, msg *Message) {
	ts := w.rt.traces.register(w.rt.baseCtx, msg.TraceID)

	// Step 3: deadline check happens before node_start, per spec §4.4 —
	// a message already past its deadline never invokes the node function.
	if msg.DeadlineExceeded(time.Now()) {
		w.shortCircuitDeadline(ts, msg)
		return
	}

	w.rt.emitEvent(Event{Name: EventNodeStart, TraceID: msg.TraceID, NodeName: w.node.Name})

	if w.node.Policy.Validate == ValidateIn || w.node.Policy.Validate == ValidateBoth {
		if err := w.rt.models.Validate(w.node.InputModel, msg.Payload); err != nil {
			w.fail(ts, msg, newFlowError(CodeValidation, w.node.Name, msg.TraceID, err))
			return
		}
	}

	out, ectx, err := w.invokeWithRetry(ts, msg)
	if err != nil {
		w.fail(ts, msg, err)
		return
	}

	if ectx.emitted {
		// The node delivered its own output via ctx.Emit/EmitChunk/
		// EmitArtifact/Pause; the worker's job for this message is done
		// (spec §4.4 step 7).
		w.rt.emitEvent(Event{Name: EventNodeSuccess, TraceID: msg.TraceID, NodeName: w.node.Name})
		return
	}

	if w.node.Policy.Validate == ValidateOut || w.node.Policy.Validate == ValidateBoth {
		if err := w.rt.models.Validate(w.node.OutputModel, out); err != nil {
			w.fail(ts, msg, newFlowError(CodeValidation, w.node.Name, msg.TraceID, err))
			return
		}
	}

	outMsg := msg.WithPayload(out)

	if w.node.AllowCycle {
		if wm, ok := out.(WorkingMemory); ok {
			advanceWorkingMemory(&wm)
			if budgetErr := checkBudget(&wm); budgetErr != nil {
				be := budgetErr.(*BudgetExceeded)
				w.terminate(ts, msg, FinalAnswer{Text: be.Reason()})
				return
			}
			if controllerDeadlineExceeded(msg) {
				w.terminate(ts, msg, FinalAnswer{Text: "Deadline exceeded"})
				return
			}
			outMsg = msg.WithPayload(wm)
		}
	}

	w.rt.emitEvent(Event{Name: EventNodeSuccess, TraceID: msg.TraceID, NodeName: w.node.Name})
	w.route(ectx, outMsg)
}

// shortCircuitDeadline implements spec §4.4 step 3 for a message that has
// already missed its envelope deadline on arrival: a WorkingMemory payload
// (a controller flow) gets a FinalAnswer routed straight to the rookery,
// skipping the node function and the back-edge exactly as §4.6's budget
// termination does; any other payload gets a FlowError(DEADLINE_EXCEEDED)
// instead, since there is no controller convention to terminate.
func (w *worker) shortCircuitDeadline(ts *traceState, msg *Message) {
	if _, ok := msg.Payload.(WorkingMemory); ok {
		w.terminate(ts, msg, FinalAnswer{Text: "Deadline exceeded"})
		return
	}
	w.fail(ts, msg, newFlowError(CodeDeadlineExceeded, w.node.Name, msg.TraceID,
		fmt.Errorf("message deadline already passed on arrival at %s", w.node.Name)))
}

// terminate delivers payload directly to the rookery, bypassing the
// node's successor edges entirely — spec §4.6's "skip the back-edge" /
// "route to egress" for a controller flow that has hit a budget or
// deadline stop condition.
func (w *worker) terminate(ts *traceState, msg *Message, payload any) {
	w.rt.emitEvent(Event{Name: EventNodeSuccess, TraceID: msg.TraceID, NodeName: w.node.Name})
	outMsg := msg.WithPayload(payload)
	w.rt.traces.forget(msg.TraceID)
	select {
	case w.rt.rookery <- outMsg:
	case <-w.rt.baseCtx.Done():
	}
}

// invokeWithRetry calls the node function, retrying on error per its
// NodePolicy up to MaxRetries times with exponential backoff, racing each
// attempt against TimeoutS and the trace's cancellation context. Grounded
// on the teacher's saga.RetryPolicy shape (MaxAttempts/InitialWait/MaxWait/
// Multiplier) adapted into NodePolicy.BackoffBase/BackoffMult/BackoffMax/
// MaxRetries.
func (w *worker) invokeWithRetry(ts *traceState, msg *Message) (any, *executionContext, error) {
	policy := w.node.Policy
	wait := policy.BackoffBase

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		select {
		case <-ts.ctx.Done():
			return nil, nil, newFlowError(CodeCancelled, w.node.Name, msg.TraceID, ts.ctx.Err())
		default:
		}

		out, ectx, err := w.invokeOnce(ts, msg, attempt)
		if err == nil {
			return out, ectx, nil
		}
		lastErr = err

		_, isTimeout := err.(*TimeoutError)

		if attempt <= policy.MaxRetries {
			evName := EventNodeRetry
			if isTimeout {
				evName = EventNodeTimeout
			}
			w.rt.emitEvent(Event{Name: evName, TraceID: msg.TraceID, NodeName: w.node.Name, Attempt: attempt, Err: err})
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ts.ctx.Done():
					return nil, nil, newFlowError(CodeCancelled, w.node.Name, msg.TraceID, ts.ctx.Err())
				}
				wait = time.Duration(float64(wait) * policy.BackoffMult)
				if policy.BackoffMax > 0 && wait > policy.BackoffMax {
					wait = policy.BackoffMax
				}
			}
			continue
		}
	}

	var ferr *FlowError
	if errors.As(lastErr, &ferr) {
		return nil, nil, ferr
	}
	if te, ok := lastErr.(*TimeoutError); ok {
		return nil, nil, newFlowError(CodeTimeout, w.node.Name, msg.TraceID, te)
	}
	return nil, nil, newFlowError(CodeNodeException, w.node.Name, msg.TraceID, lastErr)
}

// invokeOnce runs the node function exactly once, recovering panics and
// enforcing TimeoutS if set.
func (w *worker) invokeOnce(ts *traceState, msg *Message, attempt int) (out any, ectx *executionContext, err error) {
	invokeCtx := ts.ctx
	var cancel context.CancelFunc
	if w.node.Policy.TimeoutS > 0 {
		invokeCtx, cancel = context.WithTimeout(ts.ctx, w.node.Policy.TimeoutS)
		defer cancel()
	}

	ectx = newExecutionContext(invokeCtx, w.node.Name, msg, attempt, w.rt.cg, ts, w.rt.tools, w.rt.artifacts, w.rt.logger, w.rt.rookery, w.node.Policy.Broadcast)

	type invokeResult struct {
		out any
		err error
	}
	done := make(chan invokeResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeResult{nil, &PanicError{NodeName: w.node.Name, Value: r, Stack: string(debug.Stack())}}
			}
		}()
		o, e := w.node.Fn(ectx, msg)
		done <- invokeResult{o, e}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, ectx, &NodeError{NodeName: w.node.Name, Op: "invoke", Err: res.err}
		}
		ts.incrHops()
		return res.out, ectx, nil
	case <-invokeCtx.Done():
		if w.node.Policy.TimeoutS > 0 && invokeCtx.Err() == context.DeadlineExceeded {
			return nil, ectx, &TimeoutError{NodeName: w.node.Name, Timeout: w.node.Policy.TimeoutS.String(), Attempts: attempt}
		}
		return nil, ectx, newFlowError(CodeCancelled, w.node.Name, msg.TraceID, invokeCtx.Err())
	}
}

// route delivers outMsg to the node's successor edges, or to the rookery
// if the node is an egress node, honoring the node's BroadcastPolicy when
// it has more than one successor.
func (w *worker) route(ectx *executionContext, outMsg *Message) {
	edges := w.rt.cg.outboundEdges(w.node.Name)
	if len(edges) == 0 {
		w.rt.traces.forget(outMsg.TraceID)
		select {
		case w.rt.rookery <- outMsg:
		case <-w.rt.baseCtx.Done():
		}
		return
	}
	if len(edges) > 1 && w.node.Policy.Broadcast != Broadcast {
		w.fail(nil, outMsg, newFlowError(CodeNodeException, w.node.Name, outMsg.TraceID, ErrAmbiguousTarget))
		return
	}
	putCtx := w.rt.baseCtx
	if ts, ok := w.rt.traces.get(outMsg.TraceID); ok {
		putCtx = ts.ctx
	}
	for _, e := range edges {
		if err := e.put(putCtx, outMsg); err != nil {
			w.rt.emitEvent(Event{Name: EventNodeError, TraceID: outMsg.TraceID, NodeName: w.node.Name, Err: err})
			return
		}
	}
}

// fail records a FlowError: emits a node_error event, persists it via the
// state store, and routes it to the rookery so Runtime.Fetch surfaces it to
// the caller (spec §7: FlowError is data routed like any other payload).
func (w *worker) fail(ts *traceState, msg *Message, ferr *FlowError) {
	w.rt.emitEvent(Event{Name: EventNodeError, TraceID: msg.TraceID, NodeName: w.node.Name, Err: ferr})
	w.rt.saveEventAsync(StoredEvent{TraceID: msg.TraceID, NodeName: w.node.Name, Kind: EventNodeError, Payload: ferr})
	errMsg := msg.WithPayload(ferr)
	w.rt.traces.forget(msg.TraceID)
	select {
	case w.rt.rookery <- errMsg:
	case <-w.rt.baseCtx.Done():
	}
}
