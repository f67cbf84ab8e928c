package checkpoint

import (
	"context"
	"testing"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreSaveAndLoadHistory(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveEvent(ctx, flowmesh.StoredEvent{
		TraceID: "t1", NodeName: "fetch", Kind: "node_success", Payload: "ok", Timestamp: 1,
	}))
	require.NoError(t, store.SaveEvent(ctx, flowmesh.StoredEvent{
		TraceID: "t1", NodeName: "parse", Kind: "node_success", Payload: "done", Timestamp: 2,
	}))

	hist, err := store.LoadHistory(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, "fetch", hist[0].NodeName)
	require.Equal(t, "ok", hist[0].Payload)
}

func TestSQLiteStoreMemoryStateUpsert(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	wm := flowmesh.WorkingMemory{Query: "q", Hops: 1}
	require.NoError(t, store.SaveMemoryState(ctx, "t1", wm))
	wm.Hops = 2
	require.NoError(t, store.SaveMemoryState(ctx, "t1", wm))

	got, ok, err := store.LoadMemoryState(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, got.Hops)
}

func TestSQLiteStoreRemoteBinding(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveRemoteBinding(ctx, "t1", "binding-1"))
}
