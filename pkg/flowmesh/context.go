package flowmesh

import (
	"context"
	"fmt"
	"log/slog"
)

// ArtifactStore persists opaque binary artifacts referenced by
// ArtifactChunk.Chunk, keyed by an identifier the node chooses (e.g. a
// stream ID plus sequence number). A nil ArtifactStore means artifacts are
// carried only in-message and never persisted.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Context is the per-invocation handle a NodeFunc receives. It embeds
// context.Context (the teacher's convention for every execution-scoped
// type) and adds the flow-aware operations a node uses to emit downstream,
// pull extra input, stream partial output, pause, and check cooperative
// cancellation. Grounded directly on the teacher's Context/executionContext
// (WithLogger/WithLLM/WithCheckpointer functional options, withNodeID
// per-invocation derivation), generalized from single-state-passing to
// message-passing.
type Context interface {
	context.Context

	// TraceID returns the trace this invocation belongs to.
	TraceID() string
	// NodeName returns the name of the node currently executing.
	NodeName() string
	// Message returns the inbound message this invocation was dispatched
	// with.
	Message() *Message

	// Emit sends payload downstream as a derived message (envelope fields
	// copied from Message() per the preservation invariant). With no
	// target, Emit routes per the node's BroadcastPolicy: RequireTarget
	// makes an empty target an error unless the node has exactly one
	// successor, Broadcast fans out to every successor edge. Calling Emit
	// means the NodeFunc's own return payload is ignored by the worker
	// (spec §4.4 step 7).
	Emit(payload any, target ...string) error
	// Fetch pulls the next message waiting on the named predecessor edge,
	// blocking until one arrives or ctx is done. Used by join-style nodes
	// that need more than the one message the worker dispatched with.
	Fetch(from string) (*Message, error)

	// EmitChunk sends an ordered stream chunk downstream, following the
	// same routing rule as Emit.
	EmitChunk(chunk StreamChunk, target ...string) error
	// EmitArtifact sends a binary artifact chunk downstream, following the
	// same routing rule as Emit.
	EmitArtifact(chunk ArtifactChunk, target ...string) error

	// Pause suspends the trace: a PlannerPause envelope is delivered to the
	// rookery and resumeToken is returned for the caller to persist.
	// Resuming is not a core runtime operation (spec §9) — a new Run call
	// with a rebuilt trajectory is how a paused trace continues.
	Pause(reason string, payload any) (resumeToken string, err error)
	// CheckCancel reports the trace's cancellation error, if any, without
	// blocking. Nodes that do meaningful work between suspension points
	// should call this periodically (spec §6).
	CheckCancel() error

	// ToolContext returns the opaque side-channel value the Runtime was
	// configured with (spec's "tool/collaborator dependency injection"
	// slot) — e.g. an HTTP client, a remote.Transport, a test double.
	ToolContext() any
	// ArtifactStore returns the Runtime's configured ArtifactStore, or nil
	// if none was configured.
	ArtifactStore() ArtifactStore
	// Logger returns a logger enriched with trace_id/node/attempt
	// attributes for this invocation.
	Logger() *slog.Logger
}

// executionContext is the concrete Context implementation a worker builds
// once per invocation attempt.
type executionContext struct {
	context.Context
	traceID   string
	nodeName  string
	msg       *Message
	attempt   int
	cg        *compiledGraph
	ts        *traceState
	tools     any
	artifacts ArtifactStore
	logger    *slog.Logger
	rookery   chan<- *Message
	broadcast BroadcastPolicy

	emitted bool // set once Emit/EmitChunk/EmitArtifact is called
}

func newExecutionContext(ctx context.Context, nodeName string, msg *Message, attempt int, cg *compiledGraph, ts *traceState, tools any, artifacts ArtifactStore, logger *slog.Logger, rookery chan<- *Message, broadcast BroadcastPolicy) *executionContext {
	return &executionContext{
		Context:   ctx,
		traceID:   msg.TraceID,
		nodeName:  nodeName,
		msg:       msg,
		attempt:   attempt,
		cg:        cg,
		ts:        ts,
		tools:     tools,
		artifacts: artifacts,
		logger:    logger.With(slog.String("trace_id", msg.TraceID), slog.String("node", nodeName), slog.Int("attempt", attempt)),
		rookery:   rookery,
		broadcast: broadcast,
	}
}

func (c *executionContext) TraceID() string    { return c.traceID }
func (c *executionContext) NodeName() string   { return c.nodeName }
func (c *executionContext) Message() *Message  { return c.msg }
func (c *executionContext) ToolContext() any    { return c.tools }
func (c *executionContext) ArtifactStore() ArtifactStore { return c.artifacts }
func (c *executionContext) Logger() *slog.Logger { return c.logger }

func (c *executionContext) CheckCancel() error {
	if err := c.Context.Err(); err != nil {
		return err
	}
	return nil
}

func (c *executionContext) resolveTargets(target []string) ([]*edge, error) {
	out := c.cg.outboundEdges(c.nodeName)
	if len(target) > 0 {
		selected := make([]*edge, 0, len(target))
		for _, name := range target {
			e, ok := c.cg.edgeFor(c.nodeName, name)
			if !ok {
				return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTarget, c.nodeName, name)
			}
			selected = append(selected, e)
		}
		return selected, nil
	}
	switch {
	case len(out) == 0:
		return nil, nil // egress: delivered to rookery by the caller
	case len(out) == 1:
		return out, nil
	case c.broadcast == Broadcast:
		return out, nil
	default:
		return nil, ErrAmbiguousTarget
	}
}

func (c *executionContext) deliver(msg *Message, target []string) error {
	c.emitted = true
	edges, err := c.resolveTargets(target)
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		select {
		case c.rookery <- msg:
			return nil
		case <-c.Context.Done():
			return c.Context.Err()
		}
	}
	for _, e := range edges {
		if err := e.put(c.Context, msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *executionContext) Emit(payload any, target ...string) error {
	return c.deliver(c.msg.WithPayload(payload), target)
}

func (c *executionContext) EmitChunk(chunk StreamChunk, target ...string) error {
	return c.deliver(c.msg.WithPayload(chunk), target)
}

func (c *executionContext) EmitArtifact(chunk ArtifactChunk, target ...string) error {
	return c.deliver(c.msg.WithPayload(chunk), target)
}

func (c *executionContext) Fetch(from string) (*Message, error) {
	e, ok := c.cg.edgeFor(from, c.nodeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTarget, from, c.nodeName)
	}
	msg, ok, err := e.get(c.Context)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errEdgeClosed
	}
	return msg, nil
}

func (c *executionContext) Pause(reason string, payload any) (string, error) {
	token := fmt.Sprintf("%s:%s:%d", c.traceID, c.nodeName, c.attempt)
	pause := c.msg.WithPayload(PlannerPause{Reason: reason, Payload: payload, ResumeToken: token})
	c.emitted = true
	select {
	case c.rookery <- pause:
		return token, nil
	case <-c.Context.Done():
		return "", c.Context.Err()
	}
}
