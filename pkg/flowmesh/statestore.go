package flowmesh

import "context"

// StoredEvent is one row of a trace's durable history: a worker lifecycle
// event, a routing decision, or a FlowError, timestamped and trace-scoped.
// Generalized from the teacher's Checkpoint JSON-envelope (one snapshot per
// graph step) into an event-sourcing row (one append per occurrence),
// matching spec §4.9's save_event/load_history shape.
type StoredEvent struct {
	TraceID   string
	NodeName  string
	Kind      string // e.g. "node_success", "node_error", "routed"
	Payload   any
	Timestamp int64 // unix nanos
}

// StateStore is the pluggable replay/persistence hook (spec §4.9, §9:
// "fire-and-forget, never blocks flow execution"). A Runtime calls these
// methods from a detached goroutine; a StateStore implementation that blocks
// or panics must not be allowed to stall worker progress — see
// runtime.go's saveEventAsync.
type StateStore interface {
	// SaveEvent appends one StoredEvent to the trace's durable history.
	SaveEvent(ctx context.Context, ev StoredEvent) error
	// LoadHistory returns every StoredEvent recorded for traceID, in the
	// order they were saved.
	LoadHistory(ctx context.Context, traceID string) ([]StoredEvent, error)
	// SaveRemoteBinding records that traceID dispatched a remote call
	// identified by bindingID, for later correlation with its response
	// (spec §6/§9, used by nodes built with remote.NewNode).
	SaveRemoteBinding(ctx context.Context, traceID, bindingID string) error
	// SaveMemoryState persists a controller's WorkingMemory snapshot so a
	// paused trace can be resumed later.
	SaveMemoryState(ctx context.Context, traceID string, wm WorkingMemory) error
	// LoadMemoryState retrieves the most recently saved WorkingMemory for
	// traceID, or ok=false if none was ever saved.
	LoadMemoryState(ctx context.Context, traceID string) (wm WorkingMemory, ok bool, err error)
}

// NopStateStore discards every write and reports empty reads. It is the
// Runtime default when no StateStore is configured (spec §4.9: the hook is
// optional).
type NopStateStore struct{}

func (NopStateStore) SaveEvent(context.Context, StoredEvent) error { return nil }

func (NopStateStore) LoadHistory(context.Context, string) ([]StoredEvent, error) {
	return nil, nil
}

func (NopStateStore) SaveRemoteBinding(context.Context, string, string) error { return nil }

func (NopStateStore) SaveMemoryState(context.Context, string, WorkingMemory) error { return nil }

func (NopStateStore) LoadMemoryState(context.Context, string) (WorkingMemory, bool, error) {
	return WorkingMemory{}, false, nil
}
