package flowmesh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func noop(name string) *Node {
	return NewNode(name, func(ctx Context, msg *Message) (any, error) { return msg.Payload, nil })
}

func TestCreateRejectsUndeclaredCycle(t *testing.T) {
	start := noop("start")
	a := noop("a")
	b := noop("b")
	a2 := a.To(b)
	b2 := b.To(a)

	_, err := Create(start.To(a), a2, b2)
	require.Error(t, err)
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
}

func TestCreateAllowsCycleWhenEveryNodeOptsIn(t *testing.T) {
	start := noop("start")
	a := noop("a").WithAllowCycle(true)
	b := noop("b").WithAllowCycle(true)

	_, err := Create(start.To(a), a.To(b), b.To(a))
	require.NoError(t, err)
}

func TestCreateRejectsDuplicateNodeName(t *testing.T) {
	a1 := noop("a")
	a2 := noop("a")
	b := noop("b")

	_, err := Create(a1.To(b), a2.To())
	require.Error(t, err)
}

func TestCreateRejectsGraphWithNoIngress(t *testing.T) {
	a := noop("a").WithAllowCycle(true)
	b := noop("b").WithAllowCycle(true)

	// Every node appears as someone's successor, so there is no entry
	// point for Runtime.Emit (spec §4.1: at least one ingress node).
	_, err := Create(a.To(b), b.To(a))
	require.ErrorIs(t, err, ErrNoIngress)
}

func TestCreateIdentifiesIngressAndEgress(t *testing.T) {
	a := noop("a")
	b := noop("b")
	c := noop("c")

	cg, err := compile([]Adjacency{a.To(b), b.To(c), c.To()}, defaultCreateOptions())
	require.NoError(t, err)
	require.True(t, cg.isIngress("a"))
	require.False(t, cg.isIngress("b"))
	require.True(t, cg.isEgress("c"))
	require.False(t, cg.isEgress("a"))
}
