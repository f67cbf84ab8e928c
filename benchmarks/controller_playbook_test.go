package benchmarks

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
)

// buildRetrievalPlaybook builds the sub-Runtime a controller node calls
// into via CallPlaybook, mirroring the controller + playbook latency
// benchmark's nested retrieve/compress flow. CallPlaybook stops the
// Runtime it runs, so the controller builds a fresh one per invocation.
func buildRetrievalPlaybook() *flowmesh.Runtime {
	retrieve := flowmesh.NewNode("pb_retrieve", func(ctx flowmesh.Context, msg *flowmesh.Message) (any, error) {
		query := msg.Payload.(string)
		results := make([]string, 3)
		for i := range results {
			results[i] = fmt.Sprintf("doc-%s-%d", query, i)
		}
		return results, nil
	}).WithPolicy(flowmesh.NodePolicy{Validate: flowmesh.ValidateNone})

	compress := flowmesh.NewNode("pb_compress", func(ctx flowmesh.Context, msg *flowmesh.Message) (any, error) {
		return strings.Join(msg.Payload.([]string), ","), nil
	}).WithPolicy(flowmesh.NodePolicy{Validate: flowmesh.ValidateNone})

	playbook, err := flowmesh.Create(retrieve.To(compress), compress.To())
	if err != nil {
		panic(err)
	}
	return playbook
}

// BenchmarkControllerPlaybook measures the overhead of a controller node
// that calls into a sub-Runtime once per invocation.
func BenchmarkControllerPlaybook(b *testing.B) {
	controller := flowmesh.NewNode("controller", func(ctx flowmesh.Context, msg *flowmesh.Message) (any, error) {
		out, err := flowmesh.CallPlaybook(ctx, buildRetrievalPlaybook(), msg)
		if err != nil {
			return nil, err
		}
		return out.Payload, nil
	}).WithPolicy(flowmesh.NodePolicy{Validate: flowmesh.ValidateNone})

	rt, err := flowmesh.Create(controller.To())
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	if err := rt.Run(ctx); err != nil {
		b.Fatal(err)
	}
	defer rt.Stop()

	headers := flowmesh.Headers{"tenant": "bench"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		query := fmt.Sprintf("query-%d", i)
		if err := rt.Emit(ctx, "controller", flowmesh.NewMessage(query, headers)); err != nil {
			b.Fatal(err)
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := rt.Fetch(fetchCtx)
		cancel()
		if err != nil {
			b.Fatal(err)
		}
	}
}
