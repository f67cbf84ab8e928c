package flowmesh

import (
	"context"
	"sync"
)

// edge is a bounded FIFO with exactly one producer node and one consumer
// node (spec §4.2). Capacity is fixed at construction; Put blocks when full,
// Get blocks when empty. Both honor context cancellation as the suspension
// point the cooperative scheduling model (spec §5) requires.
type edge struct {
	ch        chan *Message
	closeOnce sync.Once
	closed    chan struct{}
	from, to  string
}

func newEdge(capacity int, from, to string) *edge {
	if capacity <= 0 {
		capacity = 1
	}
	return &edge{
		ch:     make(chan *Message, capacity),
		closed: make(chan struct{}),
		from:   from,
		to:     to,
	}
}

// put enqueues msg, suspending the caller if the edge is full. It returns
// ctx.Err() if ctx is cancelled first, or errEdgeClosed if the edge was
// closed (by Runtime.Stop) while waiting.
func (e *edge) put(ctx context.Context, msg *Message) error {
	select {
	case e.ch <- msg:
		return nil
	case <-e.closed:
		return errEdgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// get dequeues the next message, suspending the caller if the edge is
// empty. ok is false once the edge is closed — the consumer worker's cue to
// exit (spec §4.2). A message already buffered when close() runs may still
// be delivered or may be dropped; Stop does not guarantee full drain, only
// that no worker remains runnable afterward (spec §8).
func (e *edge) get(ctx context.Context) (msg *Message, ok bool, err error) {
	select {
	case m := <-e.ch:
		return m, true, nil
	case <-e.closed:
		select {
		case m := <-e.ch:
			return m, true, nil
		default:
			return nil, false, nil
		}
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// close marks the edge closed. Safe to call more than once and from any
// goroutine. The underlying channel is never closed directly — a producer
// may still be blocked in put() — so closing only ever unblocks waiters via
// the separate e.closed signal.
func (e *edge) close() {
	e.closeOnce.Do(func() {
		close(e.closed)
	})
}

var errEdgeClosed = &edgeClosedError{}

type edgeClosedError struct{}

func (*edgeClosedError) Error() string { return "flowmesh: edge closed" }
