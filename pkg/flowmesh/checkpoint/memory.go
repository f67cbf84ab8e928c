package checkpoint

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
)

// MemoryStore is an in-process flowmesh.StateStore for tests and
// development. Data is lost when the process exits. Adapted from the
// teacher's MemoryStore (map[runID]map[nodeID]checkpoint), generalized to
// an append-only map[traceID][]row plus a separate last-known-memory map.
type MemoryStore struct {
	mu      sync.RWMutex
	history map[string][]row
	memory  map[string]flowmesh.WorkingMemory
	bindings map[string][]string
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history:  make(map[string][]row),
		memory:   make(map[string]flowmesh.WorkingMemory),
		bindings: make(map[string][]string),
	}
}

func (m *MemoryStore) SaveEvent(ctx context.Context, ev flowmesh.StoredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return err
	}
	m.history[ev.TraceID] = append(m.history[ev.TraceID], row{
		Version:   Version,
		TraceID:   ev.TraceID,
		NodeName:  ev.NodeName,
		Kind:      ev.Kind,
		Payload:   payload,
		Timestamp: ev.Timestamp,
	})
	return nil
}

func (m *MemoryStore) LoadHistory(ctx context.Context, traceID string) ([]flowmesh.StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	rows := m.history[traceID]
	out := make([]flowmesh.StoredEvent, 0, len(rows))
	for _, r := range rows {
		var payload any
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &payload); err != nil {
				return nil, err
			}
		}
		out = append(out, flowmesh.StoredEvent{
			TraceID:   r.TraceID,
			NodeName:  r.NodeName,
			Kind:      r.Kind,
			Payload:   payload,
			Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

func (m *MemoryStore) SaveRemoteBinding(ctx context.Context, traceID, bindingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.bindings[traceID] = append(m.bindings[traceID], bindingID)
	return nil
}

func (m *MemoryStore) SaveMemoryState(ctx context.Context, traceID string, wm flowmesh.WorkingMemory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.memory[traceID] = wm
	return nil
}

func (m *MemoryStore) LoadMemoryState(ctx context.Context, traceID string) (flowmesh.WorkingMemory, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return flowmesh.WorkingMemory{}, false, ErrStoreClosed
	}
	wm, ok := m.memory[traceID]
	return wm, ok, nil
}

// Close releases the store. Safe to call more than once.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the total number of stored events across all traces. Useful
// for tests.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rows := range m.history {
		count += len(rows)
	}
	return count
}
