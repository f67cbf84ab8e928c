// Package checkpoint provides StateStore implementations for crash
// recovery and trace replay: MemoryStore for tests and single-process
// development, SQLiteStore for durable single-instance production use.
// Adapted from the teacher's snapshot-per-node Checkpoint format into an
// event-sourcing row per spec §4.9 (one append per occurrence, not one
// overwrite per node).
package checkpoint

import (
	"encoding/json"
	"errors"
	"time"
)

// Version is the current stored-row format version. Increment when making
// breaking changes to the JSON envelope.
const Version = 1

// row is the JSON envelope persisted for one flowmesh.StoredEvent. Grounded
// on the teacher's Checkpoint.Marshal/Unmarshal versioned-envelope
// approach, generalized from a single state snapshot to an opaque
// payload plus the append-only metadata an event row needs.
type row struct {
	Version   int             `json:"version"`
	TraceID   string          `json:"trace_id"`
	NodeName  string          `json:"node_name"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(payload)
}

// Sentinel errors shared by MemoryStore and SQLiteStore.
var (
	ErrNotFound    = errors.New("checkpoint: not found")
	ErrStoreClosed = errors.New("checkpoint: store closed")
)

func nowUnixNano() int64 { return time.Now().UTC().UnixNano() }
