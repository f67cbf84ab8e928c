package remote

import (
	"context"
	"testing"
	"time"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
	"github.com/corvidlabs/flowmesh/pkg/flowmesh/checkpoint"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	resp Response
	err  error
}

func (f *fakeTransport) Call(ctx context.Context, req Request) (Response, error) {
	return f.resp, f.err
}

func TestNodeSuccessRecordsBinding(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	transport := &fakeTransport{resp: Response{Content: "hi", Duration: time.Millisecond}}
	node := NewNode("collaborator", transport, store, nil)

	rt, err := flowmesh.Create(node.To())
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	defer rt.Stop()

	msg := flowmesh.NewMessage(Request{Turns: []Turn{{Role: RoleUser, Content: "hi"}}}, nil)
	require.NoError(t, rt.Emit(context.Background(), "collaborator", msg))

	out, err := rt.Fetch(context.Background())
	require.NoError(t, err)
	resp, ok := out.Payload.(Response)
	require.True(t, ok)
	require.Equal(t, "hi", resp.Content)
}

func TestNodeTransportErrorClassifiesRemoteUnavailable(t *testing.T) {
	transport := &fakeTransport{err: context.Canceled}
	node := NewNode("collaborator", transport, nil, nil)

	rt, err := flowmesh.Create(node.To())
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	defer rt.Stop()

	msg := flowmesh.NewMessage(Request{}, nil)
	require.NoError(t, rt.Emit(context.Background(), "collaborator", msg))

	_, err = rt.Fetch(context.Background())
	require.Error(t, err)
	var ferr *flowmesh.FlowError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, flowmesh.CodeRemoteUnavailable, ferr.Code)
}
