package expr

import (
	"fmt"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
)

// Route pairs an expr condition with the successor name to route to when
// it evaluates true. Routes are tried in order; the first match wins.
type Route struct {
	When string
	Then string
}

// CompilePredicateRouter builds a flowmesh.RouterFunc that evaluates each
// route's When expression (in order) against a variable map built from the
// message's Meta (outer) and Headers (under the "header." prefix), routing
// to the first route whose condition is truthy. fallback is used if no
// route matches; an empty fallback makes an unmatched message an error.
// This is the enrichment slot spec.md never mentions but the teacher
// carries for conditional-edge routing (SPEC_FULL.md §4.7).
func CompilePredicateRouter(routes []Route, fallback string, opts ...Option) flowmesh.RouterFunc {
	ev := New(opts...)
	return func(ctx flowmesh.Context, msg *flowmesh.Message) (string, error) {
		vars := varsFromMessage(msg)
		for _, r := range routes {
			ok, err := ev.Evaluate(r.When, vars)
			if err != nil {
				return "", fmt.Errorf("expr: route %q: %w", r.When, err)
			}
			if ok {
				return r.Then, nil
			}
		}
		if fallback != "" {
			return fallback, nil
		}
		return "", fmt.Errorf("expr: no route matched and no fallback configured")
	}
}

func varsFromMessage(msg *flowmesh.Message) map[string]any {
	vars := make(map[string]any, len(msg.Meta)+len(msg.Headers))
	for k, v := range msg.Meta {
		vars[k] = v
	}
	for k, v := range msg.Headers {
		vars["header."+k] = v
	}
	return vars
}
