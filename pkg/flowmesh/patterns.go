package flowmesh

import (
	"fmt"
	"sync"
)

// MapConcurrentConfig bounds a MapConcurrent node's fan-out. Grounded
// directly on the teacher's ForkJoinConfig (MaxConcurrency/FailFast),
// generalized from forking one shared state to fanning one message out to
// many independent invocations of fn.
type MapConcurrentConfig struct {
	MaxConcurrency int
	FailFast       bool
}

// BranchResult is one MapConcurrent branch's outcome, grounded on the
// teacher's BranchResult.
type BranchResult struct {
	Index int
	Value any
	Err   error
}

// MapConcurrent runs fn once per item in items, bounded to at most
// cfg.MaxConcurrency concurrent invocations, and returns every BranchResult
// in item order. With cfg.FailFast, after the first error every branch
// that has not yet started skips fn and records a "skipped" error;
// branches already running are not cancelled, and MapConcurrent still
// waits for them to return. Grounded on the teacher's parallel.go ForkJoin, generalized from
// forking a shared state value to mapping over an explicit item slice.
func MapConcurrent[T any](ctx Context, items []T, cfg MapConcurrentConfig, fn func(ctx Context, item T, index int) (any, error)) []BranchResult {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = len(items)
	}
	results := make([]BranchResult, len(items))
	sem := make(chan struct{}, cfg.MaxConcurrency)
	var wg sync.WaitGroup
	var once sync.Once
	stop := make(chan struct{})

	for i, item := range items {
		i, item := i, item
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			select {
			case <-stop:
				results[i] = BranchResult{Index: i, Err: fmt.Errorf("flowmesh: branch %d skipped after fail-fast", i)}
				return
			default:
			}
			out, err := fn(ctx, item, i)
			results[i] = BranchResult{Index: i, Value: out, Err: err}
			if err != nil && cfg.FailFast {
				once.Do(func() { close(stop) })
			}
		}()
	}
	wg.Wait()
	return results
}

// ForkJoinResult summarizes a MapConcurrent call for callers that want the
// aggregate outcome instead of per-branch results. Grounded on the
// teacher's ForkJoinResult.
type ForkJoinResult struct {
	Results []BranchResult
	Err     error
}

// Join collapses results into a ForkJoinResult, returning the first branch
// error encountered (in index order) if any.
func Join(results []BranchResult) ForkJoinResult {
	for _, r := range results {
		if r.Err != nil {
			return ForkJoinResult{Results: results, Err: r.Err}
		}
	}
	return ForkJoinResult{Results: results}
}

// joinAccumulator holds the partial state of one in-flight JoinK barrier:
// which branch indices have arrived and their payloads.
type joinAccumulator struct {
	mu       sync.Mutex
	received map[int]any
	k        int
}

// JoinAccumulators keys joinAccumulator instances by trace ID, since a join
// node may have many traces in flight concurrently. Grounded on the
// teacher's registry.go generic Registry, specialized here instead of
// reusing the package-level Registry[K,V] to keep the per-trace mutex
// colocated with its accumulator.
type JoinAccumulators struct {
	mu    sync.Mutex
	byKey map[string]*joinAccumulator
}

// NewJoinAccumulators creates an empty accumulator set for one JoinK node.
func NewJoinAccumulators() *JoinAccumulators {
	return &JoinAccumulators{byKey: make(map[string]*joinAccumulator)}
}

// JoinK accumulates the branchIndex-th payload for key (typically the trace
// ID) until k distinct branches have arrived, then returns all k payloads
// (ordered by branch index) and ready=true. Earlier arrivals return
// ready=false. Grounded on the teacher's parallel.go join-barrier idiom,
// adapted from a single synchronous fork/join call into a barrier that
// spans independent worker invocations arriving over time.
func (j *JoinAccumulators) JoinK(key string, branchIndex int, k int, payload any) (results []any, ready bool) {
	j.mu.Lock()
	acc, ok := j.byKey[key]
	if !ok {
		acc = &joinAccumulator{received: make(map[int]any), k: k}
		j.byKey[key] = acc
	}
	j.mu.Unlock()

	acc.mu.Lock()
	acc.received[branchIndex] = payload
	done := len(acc.received) >= acc.k
	var out []any
	if done {
		out = make([]any, 0, len(acc.received))
		for i := 0; i < acc.k; i++ {
			if v, ok := acc.received[i]; ok {
				out = append(out, v)
			}
		}
	}
	acc.mu.Unlock()

	if done {
		j.mu.Lock()
		delete(j.byKey, key)
		j.mu.Unlock()
		return out, true
	}
	return nil, false
}

// PredicateRouter builds a RouterFunc from a plain Go predicate function, a
// direct alternative to the expr-string form in expr.CompilePredicateRouter
// (spec's enrichment slot for the adapted expr package — see expr/router.go).
func PredicateRouter(predicate func(msg *Message) string) RouterFunc {
	return func(ctx Context, msg *Message) (string, error) {
		return predicate(msg), nil
	}
}

// UnionRouter routes a message to whichever successor name cases maps it
// to by inspecting msg.Payload's concrete type, the Go analog of a
// discriminated-union dispatch. Unmatched types route to fallback, or
// return an error if fallback is empty.
func UnionRouter(cases map[string]func(payload any) bool, fallback string) RouterFunc {
	return func(ctx Context, msg *Message) (string, error) {
		for target, match := range cases {
			if match(msg.Payload) {
				return target, nil
			}
		}
		if fallback != "" {
			return fallback, nil
		}
		return "", fmt.Errorf("flowmesh: UnionRouter: no case matched payload %T and no fallback set", msg.Payload)
	}
}

// CallPlaybook runs an independently-compiled sub-Runtime to completion for
// one message and returns its rookery output, letting one node embed a
// whole sub-graph as a single synchronous step. The sub-Runtime's base
// context derives from ctx, so it shares the calling invocation's
// cancellation and timeout and nothing else. CallPlaybook stops playbook
// before returning, and a stopped Runtime does not run again, so each
// call needs a freshly created playbook.
func CallPlaybook(ctx Context, playbook *Runtime, input *Message) (*Message, error) {
	if err := playbook.Run(ctx); err != nil {
		return nil, err
	}
	defer playbook.Stop()

	var ingress string
	for name := range playbook.cg.topo.nodes {
		if playbook.cg.isIngress(name) {
			ingress = name
			break
		}
	}
	if ingress == "" {
		return nil, ErrNoIngress
	}
	if err := playbook.Emit(ctx, ingress, input); err != nil {
		return nil, err
	}
	return playbook.Fetch(ctx)
}
