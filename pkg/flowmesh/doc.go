// Package flowmesh is an in-process asynchronous dataflow runtime: a graph
// of named Nodes connected by bounded Edges, each Node served by its own
// long-lived worker goroutine that pulls a Message from its inbound edge,
// invokes the node's function with timeout and retry, validates input and
// output against declared schemas, enforces controller hop/token budgets
// on cyclic nodes, and routes the result to the node's successors or, for
// an egress node, to the rookery.
//
// A graph is described with the node-builder DSL and compiled in one call:
//
//	fetch := flowmesh.NewNode("fetch", fetchFn)
//	parse := flowmesh.NewNode("parse", parseFn)
//	rt, err := flowmesh.Create(fetch.To(parse))
//	if err != nil {
//	    return err
//	}
//	if err := rt.Run(ctx); err != nil {
//	    return err
//	}
//	defer rt.Stop()
//
//	if err := rt.Emit(ctx, "fetch", flowmesh.NewMessage(req, nil)); err != nil {
//	    return err
//	}
//	out, err := rt.Fetch(ctx)
//
// See CreateWithOptions for queue capacity, model registry, state store,
// middleware, and dependency-injection configuration, and the patterns.go
// helpers (MapConcurrent, JoinK, PredicateRouter, UnionRouter, CallPlaybook)
// for fan-out/join and routing idioms built on top of the core primitives.
package flowmesh
