package flowmesh

import (
	"fmt"
	"time"
)

// BudgetExceeded reports which controller budget tripped: the worker
// replaces the WorkingMemory payload with a FinalAnswer carrying Reason()
// and routes it straight to the rookery, skipping the back-edge (spec
// §4.6).
type BudgetExceeded struct {
	Kind   string // "hops" or "tokens"
	Used   int
	Budget int
}

func (e *BudgetExceeded) Error() string {
	return fmt.Sprintf("flowmesh: %s budget exceeded (%d/%d)", e.Kind, e.Used, e.Budget)
}

// Reason returns the exact FinalAnswer text spec §4.6 names for this
// budget kind.
func (e *BudgetExceeded) Reason() string {
	if e.Kind == "tokens" {
		return "Token budget exhausted"
	}
	return "Hop budget exhausted"
}

// checkBudget inspects a WorkingMemory payload against its own declared
// budgets. It is called by the worker after every controller-node
// invocation, before the message is routed onward (spec §4.6: "the
// controller's own stated budget is authoritative, not an external
// cap"). A BudgetHops or BudgetTokens of zero means "unbounded" for that
// dimension.
func checkBudget(wm *WorkingMemory) error {
	if wm.BudgetHops > 0 && wm.Hops >= wm.BudgetHops {
		return &BudgetExceeded{Kind: "hops", Used: wm.Hops, Budget: wm.BudgetHops}
	}
	if wm.BudgetTokens > 0 && wm.TokensUsed >= wm.BudgetTokens {
		return &BudgetExceeded{Kind: "tokens", Used: wm.TokensUsed, Budget: wm.BudgetTokens}
	}
	return nil
}

// advanceWorkingMemory applies one controller hop's bookkeeping: increments
// Hops, accumulates LastTokenDelta into TokensUsed. Called by the worker
// loop on the outbound payload of an AllowCycle node, mirroring the
// teacher's per-iteration state-threading but scoped to the WorkingMemory
// convention instead of the whole graph state.
func advanceWorkingMemory(wm *WorkingMemory) {
	wm.Hops++
	wm.TokensUsed += wm.LastTokenDelta
}

// controllerDeadlineExceeded is §4.6's third stop condition, checked after
// a controller node's own hop/token budgets: the envelope deadline, not
// the WorkingMemory payload, is what decides this one.
func controllerDeadlineExceeded(msg *Message) bool {
	return msg.DeadlineExceeded(time.Now())
}
