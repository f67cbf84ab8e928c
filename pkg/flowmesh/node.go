package flowmesh

import "time"

// NodeFunc is the signature of user node code. It receives the per-invocation
// Context and the inbound Message and returns a new payload (or nil if the
// node called ctx.Emit itself — spec §4.4 step 7) plus an error.
type NodeFunc func(ctx Context, msg *Message) (any, error)

// RouterFunc determines the successor a PredicateRouter-style node routes
// to. It must return a node name that is an actual successor of the router
// node.
type RouterFunc func(ctx Context, msg *Message) (string, error)

// BroadcastPolicy controls how Context.Emit behaves when a node has more
// than one successor and no explicit target was given.
type BroadcastPolicy int

const (
	// RequireTarget means Emit without a target is an error (the default
	// for ordinary multi-successor nodes — spec §4.3).
	RequireTarget BroadcastPolicy = iota
	// Broadcast means Emit without a target fans the message out to every
	// successor edge. This is the default for fan-out pattern nodes.
	Broadcast
)

// Validate selects which side(s) of a node invocation are checked against
// its declared schema (spec §4.4 steps 4 and 6).
type Validate string

const (
	ValidateNone Validate = "none"
	ValidateIn   Validate = "in"
	ValidateOut  Validate = "out"
	ValidateBoth Validate = "both"
)

// NodePolicy configures validation, timeout, and retry/backoff behavior for
// one node. Zero value means "no validation, no timeout, no retries."
type NodePolicy struct {
	Validate     Validate
	TimeoutS     time.Duration // 0 means no per-invocation timeout
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffMult  float64
	BackoffMax   time.Duration
	Broadcast    BroadcastPolicy
}

// DefaultNodePolicy is the zero-friction policy: no validation, no timeout,
// no retries, single-target routing.
func DefaultNodePolicy() NodePolicy {
	return NodePolicy{
		Validate:    ValidateNone,
		MaxRetries:  0,
		BackoffBase: 0,
		BackoffMult: 1.0,
		BackoffMax:  0,
		Broadcast:   RequireTarget,
	}
}

// Node is one vertex of a Graph: a name, the function invoked for every
// message that arrives at it, its policy, and whether it is allowed to
// participate in a cycle (controller loops — spec §4.6).
type Node struct {
	Name        string
	Fn          NodeFunc
	Policy      NodePolicy
	AllowCycle  bool
	InputModel  string // declared schema name, or "" if untyped
	OutputModel string
}

// NewNode constructs a Node with DefaultNodePolicy.
func NewNode(name string, fn NodeFunc) *Node {
	return &Node{Name: name, Fn: fn, Policy: DefaultNodePolicy()}
}

// WithPolicy returns a copy of n with its policy replaced.
func (n *Node) WithPolicy(p NodePolicy) *Node {
	clone := *n
	clone.Policy = p
	return &clone
}

// WithAllowCycle returns a copy of n with AllowCycle set, as required before
// it can legally participate in a graph cycle (spec §4.1).
func (n *Node) WithAllowCycle(allow bool) *Node {
	clone := *n
	clone.AllowCycle = allow
	return &clone
}

// WithModels returns a copy of n with declared input/output schema names,
// used by Validate{In,Out,Both} (spec Design Notes §9, ModelRegistry).
func (n *Node) WithModels(input, output string) *Node {
	clone := *n
	clone.InputModel = input
	clone.OutputModel = output
	return &clone
}

// Adjacency is one producer -> successors pair passed to Create. A producer
// with no successors is an egress node (spec §4.1); To is the builder used
// to construct these.
type Adjacency struct {
	Producer   *Node
	Successors []*Node
}

// To builds an Adjacency pairing n with the given successors. Calling it
// with no arguments marks n as an egress node whose output routes to the
// rookery.
func (n *Node) To(successors ...*Node) Adjacency {
	return Adjacency{Producer: n, Successors: successors}
}
