package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
	"github.com/google/uuid"
)

// RequestExtractor pulls a Request out of an inbound Message's payload.
// The default expects the payload to already be a Request value.
type RequestExtractor func(msg *flowmesh.Message) (Request, error)

// defaultExtractor requires msg.Payload to already be a Request.
func defaultExtractor(msg *flowmesh.Message) (Request, error) {
	req, ok := msg.Payload.(Request)
	if !ok {
		return Request{}, fmt.Errorf("remote: expected Request payload, got %T", msg.Payload)
	}
	return req, nil
}

// NewNode builds a flowmesh.Node that dispatches the inbound message to
// transport and emits the Response as its output payload. Transport
// failures become FlowErrors tagged with the REMOTE_* code that best fits
// the failure (spec §6/§9); on success, if store is non-nil, the call is
// recorded via SaveRemoteBinding for later correlation.
//
// Grounded on the teacher's llm.ClaudeCLI.Complete (extract request, call
// out, measure duration, wrap the result), generalized from a CLI
// subprocess call to an arbitrary injected Transport.
func NewNode(name string, transport Transport, store flowmesh.StateStore, extract RequestExtractor) *flowmesh.Node {
	if extract == nil {
		extract = defaultExtractor
	}
	if store == nil {
		store = flowmesh.NopStateStore{}
	}

	fn := func(ctx flowmesh.Context, msg *flowmesh.Message) (any, error) {
		req, err := extract(msg)
		if err != nil {
			return nil, err
		}

		resp, err := transport.Call(ctx, req)
		if err != nil {
			return nil, classify(name, msg.TraceID, err)
		}

		bindingID := uuid.NewString()
		go func() {
			// Fire-and-forget, matching the StateStore contract (spec §9):
			// a slow or failing store write must never block the worker
			// that already has its Response.
			_ = store.SaveRemoteBinding(context.Background(), msg.TraceID, bindingID)
		}()

		return resp, nil
	}

	return flowmesh.NewNode(name, fn)
}

// classify maps a Transport error to the REMOTE_* FlowError code spec §6/
// §9 names. A Transport that wants a specific code should return
// ErrRejected or ErrRemoteTimeout (or wrap them); context.DeadlineExceeded
// also maps to REMOTE_TIMEOUT, and any other error classifies as
// REMOTE_UNAVAILABLE, the conservative default.
func classify(nodeName, traceID string, err error) *flowmesh.FlowError {
	code := flowmesh.CodeRemoteUnavailable
	switch {
	case errors.Is(err, ErrRejected):
		code = flowmesh.CodeRemoteRejected
	case errors.Is(err, ErrRemoteTimeout):
		code = flowmesh.CodeRemoteTimeout
	case errors.Is(err, context.DeadlineExceeded):
		code = flowmesh.CodeRemoteTimeout
	}
	return &flowmesh.FlowError{
		Code:                  code,
		Message:               err.Error(),
		TraceID:               traceID,
		NodeName:              nodeName,
		OriginalExceptionType: fmt.Sprintf("%T", err),
		Metadata:              map[string]any{},
	}
}

// Sentinel errors a Transport implementation can wrap to steer classify's
// REMOTE_* code selection.
var (
	ErrRejected      = errors.New("remote: request rejected by collaborator")
	ErrRemoteTimeout = errors.New("remote: collaborator call timed out")
)
