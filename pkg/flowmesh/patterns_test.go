package flowmesh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMapConcurrentRunsAllItemsBounded(t *testing.T) {
	rt, err := Create(noop("solo").To())
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	defer rt.Stop()

	ectx := newExecutionContext(context.Background(), "solo", NewMessage(nil, nil), 1, rt.cg, rt.traces.register(context.Background(), "t1"), nil, nil, rt.logger, rt.rookery, RequireTarget)

	items := []int{1, 2, 3, 4, 5}
	results := MapConcurrent(ectx, items, MapConcurrentConfig{MaxConcurrency: 2}, func(ctx Context, item int, index int) (any, error) {
		return item * item, nil
	})

	require.Len(t, results, len(items))
	for i, r := range results {
		require.NoError(t, r.Err)
		require.Equal(t, items[i]*items[i], r.Value)
	}
}

func TestMapConcurrentFailFastStopsOnFirstError(t *testing.T) {
	rt, err := Create(noop("solo").To())
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	defer rt.Stop()

	ectx := newExecutionContext(context.Background(), "solo", NewMessage(nil, nil), 1, rt.cg, rt.traces.register(context.Background(), "t2"), nil, nil, rt.logger, rt.rookery, RequireTarget)

	boom := errors.New("boom")
	items := []int{1, 2, 3, 4, 5}
	results := MapConcurrent(ectx, items, MapConcurrentConfig{MaxConcurrency: 1, FailFast: true}, func(ctx Context, item int, index int) (any, error) {
		if item == 2 {
			return nil, boom
		}
		return item, nil
	})

	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
		}
	}
	require.GreaterOrEqual(t, errCount, 1)
}

func TestJoinKWaitsForAllBranches(t *testing.T) {
	j := NewJoinAccumulators()

	results1, ready1 := j.JoinK("trace-1", 0, 3, "a")
	require.False(t, ready1)
	require.Nil(t, results1)

	results2, ready2 := j.JoinK("trace-1", 1, 3, "b")
	require.False(t, ready2)
	require.Nil(t, results2)

	results3, ready3 := j.JoinK("trace-1", 2, 3, "c")
	require.True(t, ready3)
	require.Len(t, results3, 3)
}

func TestPredicateRouterSelectsByPayload(t *testing.T) {
	router := PredicateRouter(func(msg *Message) string {
		if msg.Payload.(int) > 0 {
			return "positive"
		}
		return "negative"
	})

	target, err := router(nil, NewMessage(5, nil))
	require.NoError(t, err)
	require.Equal(t, "positive", target)

	target, err = router(nil, NewMessage(-5, nil))
	require.NoError(t, err)
	require.Equal(t, "negative", target)
}

func TestUnionRouterFallsBackWhenNoCaseMatches(t *testing.T) {
	router := UnionRouter(map[string]func(any) bool{
		"even": func(v any) bool { return v.(int)%2 == 0 },
	}, "odd")

	target, err := router(nil, NewMessage(4, nil))
	require.NoError(t, err)
	require.Equal(t, "even", target)

	target, err = router(nil, NewMessage(3, nil))
	require.NoError(t, err)
	require.Equal(t, "odd", target)
}

func TestCallPlaybookRunsSubRuntimeToCompletion(t *testing.T) {
	inner := NewNode("innerDouble", func(ctx Context, msg *Message) (any, error) {
		return msg.Payload.(int) * 2, nil
	})
	playbook, err := Create(inner.To())
	require.NoError(t, err)

	outer := NewNode("outer", func(ctx Context, msg *Message) (any, error) {
		out, err := CallPlaybook(ctx, playbook, msg)
		if err != nil {
			return nil, err
		}
		return out.Payload, nil
	})
	rt, err := Create(outer.To())
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	defer rt.Stop()

	require.NoError(t, rt.Emit(context.Background(), "outer", NewMessage(21, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := rt.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, out.Payload)
}
