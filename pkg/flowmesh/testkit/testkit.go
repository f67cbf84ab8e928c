// Package testkit provides deterministic runner, fault-injection, and
// assertion helpers for testing flowmesh graphs. It has no teacher
// equivalent (the teacher has no testkit package); its shape is grounded
// on the teacher's own testutil_test.go helpers (makeTrackingNode,
// makeFailingNode, makePanicNode) generalized from single-run test
// fixtures into a small reusable package, plus the §8 scenario shape of
// original_source's benchmarks/{hops,fanout_join,retry_timeout,
// controller_playbook}.py and tests/test_cancel.py/test_budgets.py/
// test_controller.py.
package testkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
)

// Run starts rt, emits msg at ingress, and collects every message the
// rookery produces until either count messages have arrived or timeout
// elapses, then stops rt. It is the deterministic single-call shape most
// scenario tests want: start, feed one input, drain a known number of
// outputs, shut down.
func Run(ctx context.Context, rt *flowmesh.Runtime, ingress string, msg *flowmesh.Message, count int, timeout time.Duration) ([]*flowmesh.Message, error) {
	if err := rt.Run(ctx); err != nil {
		return nil, err
	}
	defer rt.Stop()

	if err := rt.Emit(ctx, ingress, msg); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	out := make([]*flowmesh.Message, 0, count)
	for len(out) < count {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return out, fmt.Errorf("testkit: timed out after %d of %d messages", len(out), count)
		}
		fetchCtx, cancel := context.WithTimeout(ctx, remaining)
		got, err := rt.Fetch(fetchCtx)
		cancel()
		if err != nil {
			var ferr *flowmesh.FlowError
			if errors.As(err, &ferr) {
				out = append(out, got)
				continue
			}
			return out, err
		}
		out = append(out, got)
	}
	return out, nil
}

// FaultSchedule describes what FaultInjector should do on a given
// invocation count (1-indexed, across all attempts including retries).
type FaultSchedule struct {
	// On is the invocation number this fault fires on. 0 means "never."
	On int
	// Err is returned instead of calling the wrapped node function.
	Err error
	// Panic, if non-nil, is the value the wrapped node panics with
	// instead of calling the wrapped function or returning Err.
	Panic any
	// Delay sleeps before doing anything else on the triggering
	// invocation, for forcing a node's TimeoutS to fire.
	Delay time.Duration
}

// FaultInjector wraps a NodeFunc, reproducing its normal behavior except
// on the invocation named by each Fault in Schedule, letting a test force
// a specific attempt to error, panic, or overrun a timeout. Grounded on
// the teacher's makeFailingNode/makePanicNode test helpers, generalized
// from "always fail" to "fail on the Nth call" so retry-then-succeed and
// exhaust-then-fail scenarios can be expressed with one wrapper.
type FaultInjector struct {
	fn       flowmesh.NodeFunc
	schedule []FaultSchedule
	calls    int
}

// NewFaultInjector wraps fn with the given fault schedule.
func NewFaultInjector(fn flowmesh.NodeFunc, schedule ...FaultSchedule) *FaultInjector {
	return &FaultInjector{fn: fn, schedule: schedule}
}

// Calls reports how many times the wrapped function has been invoked.
func (f *FaultInjector) Calls() int { return f.calls }

// Fn returns the wrapped NodeFunc suitable for flowmesh.NewNode.
func (f *FaultInjector) Fn() flowmesh.NodeFunc {
	return func(ctx flowmesh.Context, msg *flowmesh.Message) (any, error) {
		f.calls++
		for _, s := range f.schedule {
			if s.On != f.calls {
				continue
			}
			if s.Delay > 0 {
				select {
				case <-time.After(s.Delay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			if s.Panic != nil {
				panic(s.Panic)
			}
			if s.Err != nil {
				return nil, s.Err
			}
		}
		return f.fn(ctx, msg)
	}
}

// AssertEnvelopePreserved reports whether derived carries the same
// TraceID, Headers, and DeadlineS as original — the invariant every
// NodeFunc must uphold via Message.WithPayload (spec §3, §8). Meta is not
// compared, since a node may change it.
func AssertEnvelopePreserved(original, derived *flowmesh.Message) error {
	if original.TraceID != derived.TraceID {
		return fmt.Errorf("testkit: trace id changed: %q -> %q", original.TraceID, derived.TraceID)
	}
	if len(original.Headers) != len(derived.Headers) {
		return fmt.Errorf("testkit: headers length changed: %d -> %d", len(original.Headers), len(derived.Headers))
	}
	for k, v := range original.Headers {
		if derived.Headers[k] != v {
			return fmt.Errorf("testkit: header %q changed: %q -> %q", k, v, derived.Headers[k])
		}
	}
	if (original.DeadlineS == nil) != (derived.DeadlineS == nil) {
		return fmt.Errorf("testkit: deadline presence changed")
	}
	if original.DeadlineS != nil && !original.DeadlineS.Equal(*derived.DeadlineS) {
		return fmt.Errorf("testkit: deadline changed: %v -> %v", *original.DeadlineS, *derived.DeadlineS)
	}
	return nil
}

// AssertStreamOrdering reports whether chunks sharing one StreamID arrive
// in strictly increasing Seq order with exactly one terminal (Done)
// record per stream (spec §4.8).
func AssertStreamOrdering(chunks []flowmesh.StreamChunk) error {
	byStream := make(map[string][]flowmesh.StreamChunk)
	for _, c := range chunks {
		byStream[c.StreamID] = append(byStream[c.StreamID], c)
	}
	for id, cs := range byStream {
		doneCount := 0
		for i, c := range cs {
			if i > 0 && c.Seq <= cs[i-1].Seq {
				return fmt.Errorf("testkit: stream %q: seq %d did not increase after %d", id, c.Seq, cs[i-1].Seq)
			}
			if c.Done {
				doneCount++
			}
		}
		if doneCount != 1 {
			return fmt.Errorf("testkit: stream %q: expected exactly one Done chunk, got %d", id, doneCount)
		}
	}
	return nil
}
