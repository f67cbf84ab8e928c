package flowmesh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// selfLooper is a pure controller node with exactly one successor: itself.
// Returning its WorkingMemory payload unchanged (rather than calling
// ctx.Emit) lets the worker's own AllowCycle bookkeeping advance Hops and
// enforce BudgetHops automatically after every invocation (spec §4.6).
func selfLooper(name string) *Node {
	return NewNode(name, func(ctx Context, msg *Message) (any, error) {
		return msg.Payload.(WorkingMemory), nil
	}).WithAllowCycle(true)
}

func TestControllerLoopStopsAtHopBudget(t *testing.T) {
	start := noop("start")
	loop := selfLooper("loop")

	rt, err := Create(start.To(loop), loop.To(loop))
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	defer rt.Stop()

	wm := WorkingMemory{Query: "q", BudgetHops: 3}
	require.NoError(t, rt.Emit(context.Background(), "start", NewMessage(wm, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := rt.Fetch(ctx)
	require.NoError(t, err)
	fa, ok := out.Payload.(FinalAnswer)
	require.True(t, ok)
	require.Equal(t, "Hop budget exhausted", fa.Text)
}

// branchingLooper is a controller node with two declared successors
// ("loop" and "egress"): since the default BroadcastPolicy refuses to
// guess a target among more than one successor, it must call ctx.Emit
// explicitly, which means it is also responsible for its own Hops
// bookkeeping before looping back (the worker's automatic AllowCycle
// check only applies to the single-successor auto-routed return path
// selfLooper uses).
func branchingLooper(name string, final int) *Node {
	return NewNode(name, func(ctx Context, msg *Message) (any, error) {
		wm := msg.Payload.(WorkingMemory)
		if wm.Hops >= final {
			return nil, ctx.Emit(FinalAnswer{Text: "done"}, "egress")
		}
		advanceWorkingMemory(&wm)
		return nil, ctx.Emit(wm, "loop")
	}).WithAllowCycle(true)
}

func TestControllerLoopReturnsFinalAnswerWithinBudget(t *testing.T) {
	start := noop("start")
	loop := branchingLooper("loop", 2)
	egress := noop("egress")

	rt, err := Create(start.To(loop), loop.To(loop, egress))
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	defer rt.Stop()

	wm := WorkingMemory{Query: "q", BudgetHops: 10}
	require.NoError(t, rt.Emit(context.Background(), "start", NewMessage(wm, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := rt.Fetch(ctx)
	require.NoError(t, err)
	fa, ok := out.Payload.(FinalAnswer)
	require.True(t, ok)
	require.Equal(t, "done", fa.Text)
}

func TestMiddlewareObservesNodeLifecycleEvents(t *testing.T) {
	var mu sync.Mutex
	var names []string
	mw := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, ev.Name)
	}

	node := noop("solo")
	rt, err := CreateWithOptions([]Adjacency{node.To()}, []CreateOption{WithMiddleware(mw)})
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	defer rt.Stop()

	require.NoError(t, rt.Emit(context.Background(), "solo", NewMessage("in", nil)))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = rt.Fetch(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, names, EventNodeStart)
	require.Contains(t, names, EventNodeSuccess)
}

func TestWithQueueCapacityBoundsEdgeBuffer(t *testing.T) {
	producer := noop("producer")
	consumer := NewNode("consumer", func(ctx Context, msg *Message) (any, error) {
		<-time.After(50 * time.Millisecond)
		return msg.Payload, nil
	})

	rt, err := CreateWithOptions([]Adjacency{producer.To(consumer), consumer.To()}, []CreateOption{WithQueueCapacity(1)})
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	defer rt.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, rt.Emit(context.Background(), "producer", NewMessage(i, nil)))
	}
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := rt.Fetch(ctx)
		cancel()
		require.NoError(t, err)
	}
}
