package benchmarks

import (
	"context"
	"testing"
	"time"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
)

func identity(ctx flowmesh.Context, msg *flowmesh.Message) (any, error) {
	return msg.Payload, nil
}

func buildHopChain(hops int) *flowmesh.Runtime {
	nodes := make([]*flowmesh.Node, hops+1)
	for i := 0; i < hops; i++ {
		nodes[i] = flowmesh.NewNode(nodeID(i), identity).WithPolicy(flowmesh.NodePolicy{Validate: flowmesh.ValidateNone})
	}
	nodes[hops] = flowmesh.NewNode("sink", identity).WithPolicy(flowmesh.NodePolicy{Validate: flowmesh.ValidateNone})

	adjacencies := make([]flowmesh.Adjacency, 0, hops+1)
	for i := 0; i < hops; i++ {
		adjacencies = append(adjacencies, nodes[i].To(nodes[i+1]))
	}
	adjacencies = append(adjacencies, nodes[hops].To())

	rt, err := flowmesh.Create(adjacencies...)
	if err != nil {
		panic(err)
	}
	return rt
}

// BenchmarkHops_4 measures single-message latency through a 4-hop chain,
// the per-hop latency microbenchmark's default chain length.
func BenchmarkHops_4(b *testing.B) {
	benchmarkHops(b, 4)
}

func BenchmarkHops_16(b *testing.B) {
	benchmarkHops(b, 16)
}

func benchmarkHops(b *testing.B, hops int) {
	rt := buildHopChain(hops)
	ctx := context.Background()
	if err := rt.Run(ctx); err != nil {
		b.Fatal(err)
	}
	defer rt.Stop()

	headers := flowmesh.Headers{"tenant": "bench"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := rt.Emit(ctx, nodeID(0), flowmesh.NewMessage("ping", headers)); err != nil {
			b.Fatal(err)
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if _, err := rt.Fetch(fetchCtx); err != nil {
			cancel()
			b.Fatal(err)
		}
		cancel()
	}
}

// BenchmarkStreaming measures throughput of a streamer node emitting
// StreamChunk values to a sink, mirroring the streaming half of the hop
// latency microbenchmark.
func BenchmarkStreaming(b *testing.B) {
	const tokensPerMessage = 32

	streamer := flowmesh.NewNode("streamer", func(ctx flowmesh.Context, msg *flowmesh.Message) (any, error) {
		tokens := msg.Payload.([]string)
		for idx, tok := range tokens {
			if err := ctx.EmitChunk(flowmesh.StreamChunk{
				StreamID: ctx.TraceID(),
				Seq:      idx,
				Text:     tok,
				Done:     idx == len(tokens)-1,
			}, "sink"); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}).WithPolicy(flowmesh.NodePolicy{Validate: flowmesh.ValidateNone})
	sink := flowmesh.NewNode("sink", identity).WithPolicy(flowmesh.NodePolicy{Validate: flowmesh.ValidateNone})

	rt, err := flowmesh.Create(streamer.To(sink), sink.To())
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	if err := rt.Run(ctx); err != nil {
		b.Fatal(err)
	}
	defer rt.Stop()

	tokens := make([]string, tokensPerMessage)
	for i := range tokens {
		tokens[i] = nodeID(i)
	}
	headers := flowmesh.Headers{"tenant": "bench"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := rt.Emit(ctx, "streamer", flowmesh.NewMessage(tokens, headers)); err != nil {
			b.Fatal(err)
		}
		for j := 0; j < tokensPerMessage; j++ {
			fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := rt.Fetch(fetchCtx)
			cancel()
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}

func nodeID(n int) string {
	return string(rune('a'+n%26)) + string(rune('0'+n/26%10))
}
