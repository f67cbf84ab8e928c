package flowmesh

import "fmt"

// topology is the validated static shape of a graph: every node, its
// successor names, and its predecessor names. It never changes after
// Create returns (spec §3: "no dynamic topology").
type topology struct {
	nodes       map[string]*Node
	successors  map[string][]string
	predecessors map[string][]string
	ingress     []string
	egress      []string
}

// buildTopology assembles and structurally validates the adjacency list:
// every node has a unique name, every successor name refers to a node that
// was actually declared somewhere in the adjacency list.
func buildTopology(adjacencies []Adjacency) (*topology, error) {
	t := &topology{
		nodes:        make(map[string]*Node),
		successors:   make(map[string][]string),
		predecessors: make(map[string][]string),
	}

	register := func(n *Node) error {
		if n == nil {
			return ErrUnknownNode
		}
		if n.Name == "" {
			return ErrEmptyNodeName
		}
		if existing, ok := t.nodes[n.Name]; ok && existing != n {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.Name)
		}
		t.nodes[n.Name] = n
		return nil
	}

	for _, adj := range adjacencies {
		if err := register(adj.Producer); err != nil {
			return nil, err
		}
		for _, s := range adj.Successors {
			if err := register(s); err != nil {
				return nil, err
			}
		}
	}

	for _, adj := range adjacencies {
		from := adj.Producer.Name
		for _, s := range adj.Successors {
			t.successors[from] = append(t.successors[from], s.Name)
			t.predecessors[s.Name] = append(t.predecessors[s.Name], from)
		}
		if _, ok := t.successors[from]; !ok {
			t.successors[from] = nil // explicit: appeared, but no successors (yet)
		}
	}

	hasSuccessorEntry := make(map[string]bool)
	for name := range t.successors {
		hasSuccessorEntry[name] = true
	}

	isSuccessor := make(map[string]bool)
	for _, preds := range t.successors {
		for _, name := range preds {
			isSuccessor[name] = true
		}
	}

	for name := range t.nodes {
		if len(t.successors[name]) == 0 {
			t.egress = append(t.egress, name)
		}
		if !isSuccessor[name] {
			t.ingress = append(t.ingress, name)
		}
	}

	if len(t.ingress) == 0 {
		return nil, ErrNoIngress
	}

	return t, nil
}

// validateCycles runs a three-color DFS over the topology and rejects any
// cycle unless every node on it has AllowCycle set (spec §4.1).
func (t *topology) validateCycles() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(t.nodes))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		stack = append(stack, name)
		for _, next := range t.successors[name] {
			switch color[next] {
			case white:
				if err := visit(next); err != nil {
					return err
				}
			case gray:
				cycle := cycleSlice(stack, next)
				for _, cn := range cycle {
					if !t.nodes[cn].AllowCycle {
						return &CycleError{Nodes: cycle}
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}

	for name := range t.nodes {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleSlice extracts the cycle portion of the DFS stack starting at the
// first occurrence of repeatAt.
func cycleSlice(stack []string, repeatAt string) []string {
	for i, n := range stack {
		if n == repeatAt {
			out := make([]string, len(stack)-i)
			copy(out, stack[i:])
			return out
		}
	}
	return append([]string{}, stack...)
}
