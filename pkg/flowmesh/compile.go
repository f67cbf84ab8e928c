package flowmesh

import (
	"fmt"
	"log/slog"
)

// compiledGraph is the immutable, validated result of Create: a topology
// plus the bounded edges that back every producer->successor pair. A
// Runtime owns exactly one compiledGraph for its whole lifetime (spec §3:
// "no dynamic topology").
type compiledGraph struct {
	topo  *topology
	edges map[edgeKey]*edge // (from,to) -> bounded queue
}

type edgeKey struct {
	from, to string
}

// createOptions configures Create. See the With* functions below.
type createOptions struct {
	queueCapacity   int
	rookeyCapacity  int
	models          *ModelRegistry
	store           StateStore
	tools           any
	artifacts       ArtifactStore
	logger          *slog.Logger
	middlewares     []Middleware
}

// CreateOption configures the Runtime a Create call builds.
type CreateOption func(*createOptions)

// WithQueueCapacity sets the bounded capacity of every edge in the graph
// (spec §4.2). Default is 64, mirroring the testable properties' default
// queue_maxsize.
func WithQueueCapacity(n int) CreateOption {
	return func(o *createOptions) { o.queueCapacity = n }
}

// WithRookeryCapacity sets the bounded capacity of the rookery, the queue
// every egress node and every Pause call delivers to (spec §4.1's "rookery
// queue"). Default is the same as the per-edge queue capacity.
func WithRookeryCapacity(n int) CreateOption {
	return func(o *createOptions) { o.rookeyCapacity = n }
}

// WithModelRegistry supplies the schema registry used for input/output
// validation (Design Notes §9). Without this option, nodes that declare
// InputModel/OutputModel but whose Validate policy asks for checking simply
// pass validation, since there's nothing to validate against.
func WithModelRegistry(m *ModelRegistry) CreateOption {
	return func(o *createOptions) { o.models = m }
}

// WithStateStore supplies the pluggable replay/persistence hook (spec
// §4.9). Without this option the Runtime uses NopStateStore.
func WithStateStore(s StateStore) CreateOption {
	return func(o *createOptions) { o.store = s }
}

// WithTools supplies the opaque side-channel value every Context.ToolContext
// call returns — the dependency-injection slot for HTTP clients, remote
// transports, or test doubles.
func WithTools(tools any) CreateOption {
	return func(o *createOptions) { o.tools = tools }
}

// WithArtifactStore supplies the store EmitArtifact payloads persist to.
func WithArtifactStore(a ArtifactStore) CreateOption {
	return func(o *createOptions) { o.artifacts = a }
}

// WithLogger supplies the base *slog.Logger every Context enriches with
// trace/node/attempt attributes. Without this option the Runtime uses
// slog.Default().
func WithLogger(l *slog.Logger) CreateOption {
	return func(o *createOptions) { o.logger = l }
}

// WithMiddleware registers one or more Middleware callbacks, invoked in
// registration order on every worker lifecycle event (spec §6,
// middleware.go).
func WithMiddleware(mw ...Middleware) CreateOption {
	return func(o *createOptions) { o.middlewares = append(o.middlewares, mw...) }
}

func defaultCreateOptions() createOptions {
	return createOptions{queueCapacity: 64}
}

// compile validates the adjacency list's topology (uniqueness, connectivity,
// cycles) and allocates one bounded edge per producer->successor pair.
func compile(adjacencies []Adjacency, opts createOptions) (*compiledGraph, error) {
	if len(adjacencies) == 0 {
		return nil, fmt.Errorf("flowmesh: Create requires at least one adjacency")
	}

	topo, err := buildTopology(adjacencies)
	if err != nil {
		return nil, err
	}
	if err := topo.validateCycles(); err != nil {
		return nil, err
	}

	cg := &compiledGraph{topo: topo, edges: make(map[edgeKey]*edge)}
	capacity := opts.queueCapacity
	if capacity <= 0 {
		capacity = 64
	}
	for from, succs := range topo.successors {
		for _, to := range succs {
			key := edgeKey{from, to}
			if _, ok := cg.edges[key]; ok {
				continue // fan-out declared across more than one adjacency entry
			}
			cg.edges[key] = newEdge(capacity, from, to)
		}
	}
	return cg, nil
}

func (cg *compiledGraph) edgeFor(from, to string) (*edge, bool) {
	e, ok := cg.edges[edgeKey{from, to}]
	return e, ok
}

func (cg *compiledGraph) outboundEdges(node string) []*edge {
	succs := cg.topo.successors[node]
	out := make([]*edge, 0, len(succs))
	for _, to := range succs {
		if e, ok := cg.edgeFor(node, to); ok {
			out = append(out, e)
		}
	}
	return out
}

func (cg *compiledGraph) isEgress(node string) bool {
	for _, n := range cg.topo.egress {
		if n == node {
			return true
		}
	}
	return false
}

func (cg *compiledGraph) isIngress(node string) bool {
	for _, n := range cg.topo.ingress {
		if n == node {
			return true
		}
	}
	return false
}
