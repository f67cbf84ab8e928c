package checkpoint

import (
	"context"
	"testing"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveAndLoadHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SaveEvent(ctx, flowmesh.StoredEvent{
		TraceID: "t1", NodeName: "fetch", Kind: "node_success", Payload: map[string]any{"n": float64(1)}, Timestamp: 1,
	}))
	require.NoError(t, store.SaveEvent(ctx, flowmesh.StoredEvent{
		TraceID: "t1", NodeName: "parse", Kind: "node_success", Payload: nil, Timestamp: 2,
	}))
	require.NoError(t, store.SaveEvent(ctx, flowmesh.StoredEvent{
		TraceID: "t2", NodeName: "fetch", Kind: "node_error", Timestamp: 3,
	}))

	hist, err := store.LoadHistory(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, "fetch", hist[0].NodeName)
	require.Equal(t, "parse", hist[1].NodeName)

	require.Equal(t, 3, store.Len())
}

func TestMemoryStoreMemoryStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.LoadMemoryState(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	wm := flowmesh.WorkingMemory{Query: "q", Hops: 2, BudgetHops: 10}
	require.NoError(t, store.SaveMemoryState(ctx, "t1", wm))

	got, ok, err := store.LoadMemoryState(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wm, got)
}

func TestMemoryStoreClosedRejectsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	err := store.SaveEvent(ctx, flowmesh.StoredEvent{TraceID: "t1"})
	require.ErrorIs(t, err, ErrStoreClosed)
}
