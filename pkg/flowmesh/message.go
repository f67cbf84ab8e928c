package flowmesh

import (
	"time"

	"github.com/google/uuid"
)

// Headers carries request-scoped metadata that travels unchanged with a
// Message for the lifetime of its trace. The core does not interpret any
// header; Tenant is a convenience accessor for the "tenant" header.
type Headers map[string]string

// Tenant returns the "tenant" header, or the empty string if unset.
func (h Headers) Tenant() string {
	if h == nil {
		return ""
	}
	return h["tenant"]
}

// Clone returns a shallow copy. Headers are logically immutable once a
// Message is created; Clone exists for callers that build a Headers value
// incrementally before the first emit.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Meta is an opaque propagation bag for middleware and adapters. The core
// never interprets its contents.
type Meta map[string]any

// Message is the unit that flows between nodes. All fields except Payload
// (and, at the node author's discretion, Meta) must be copied unchanged when
// a node derives an output message from an input one — see WithPayload.
type Message struct {
	TraceID   string
	Payload   any
	Headers   Headers
	DeadlineS *time.Time
	Meta      Meta
}

// NewMessage creates a root Message for a fresh trace. If headers is nil an
// empty map is used so Tenant() never panics on a nil map downstream.
func NewMessage(payload any, headers Headers) *Message {
	if headers == nil {
		headers = Headers{}
	}
	return &Message{
		TraceID: uuid.NewString(),
		Payload: payload,
		Headers: headers,
	}
}

// WithPayload returns a derived Message: same trace, headers, deadline, and
// meta, new payload. This is the only sanctioned way to produce a message
// from within a node — it enforces the envelope-preservation invariant
// (spec §3, §8) by construction instead of by convention.
func (m *Message) WithPayload(payload any) *Message {
	return &Message{
		TraceID:   m.TraceID,
		Payload:   payload,
		Headers:   m.Headers,
		DeadlineS: m.DeadlineS,
		Meta:      m.Meta,
	}
}

// DeadlineExceeded reports whether the message's deadline, if any, has
// already passed as of now.
func (m *Message) DeadlineExceeded(now time.Time) bool {
	return m.DeadlineS != nil && !now.Before(*m.DeadlineS)
}

// StreamChunk is an ordered partial output identified by StreamID. Chunks
// sharing a StreamID must be delivered in increasing Seq order with exactly
// one terminal (Done) record — see testkit.AssertStreamOrdering.
type StreamChunk struct {
	StreamID string
	Seq      int
	Text     string
	Done     bool
	Meta     Meta
}

// ArtifactChunk is the binary-payload analog of StreamChunk: an opaque Chunk
// value instead of text, tagged with ArtifactType.
type ArtifactChunk struct {
	StreamID     string
	Seq          int
	Chunk        any
	Done         bool
	ArtifactType string
	Meta         Meta
}

// WorkingMemory is the conventional payload of a controller loop (spec
// §4.6). The core inspects its Hops/Tokens fields only when routing through
// a node whose Node.AllowCycle is true.
type WorkingMemory struct {
	Query          string
	Hops           int
	BudgetHops     int
	TokensUsed     int
	BudgetTokens   int
	LastTokenDelta int
}

// FinalAnswer terminates a controller cycle.
type FinalAnswer struct {
	Text string
}

// PlannerPause is the envelope a worker emits to the egress when a node
// calls Context.Pause. Resume is not a core operation: the planner
// collaborator persists ResumeToken and re-invokes the runtime with a
// rebuilt trajectory (spec §6, §9).
type PlannerPause struct {
	Reason      string
	Payload     any
	ResumeToken string
}
