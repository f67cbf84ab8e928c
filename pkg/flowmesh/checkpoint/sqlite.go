package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// SQLiteStore persists flowmesh.StoredEvent rows to SQLite, suitable for
// single-process production use. Adapted from the teacher's SQLiteStore
// (same WAL-mode-plus-restrictive-permissions setup), generalized from a
// one-row-per-(run,node) UPSERT table to an append-only events table plus
// small auxiliary tables for remote bindings and the latest WorkingMemory
// snapshot per trace.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed StateStore
// at path, or ":memory:" for an ephemeral one. The file is created with
// 0600 permissions before sql.Open touches it, avoiding a window where
// trace history is briefly world-readable.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, createErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
			if createErr == nil {
				if closeErr := f.Close(); closeErr != nil {
					slog.Warn("failed to close state store file after creation",
						slog.String("path", path), slog.String("error", closeErr.Error()))
				}
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS events (
			trace_id TEXT NOT NULL,
			node_name TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_trace_id ON events(trace_id)`,
		`CREATE TABLE IF NOT EXISTS remote_bindings (
			trace_id TEXT NOT NULL,
			binding_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memory_state (
			trace_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	if path != ":memory:" {
		if err := os.Chmod(path, 0600); err != nil {
			slog.Warn("failed to set restrictive permissions on state store file",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveEvent(ctx context.Context, ev flowmesh.StoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (trace_id, node_name, kind, payload, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, ev.TraceID, ev.NodeName, ev.Kind, []byte(payload), ev.Timestamp)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadHistory(ctx context.Context, traceID string) ([]flowmesh.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_name, kind, payload, timestamp FROM events
		WHERE trace_id = ? ORDER BY rowid
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []flowmesh.StoredEvent
	for rows.Next() {
		var nodeName, kind string
		var raw []byte
		var ts int64
		if err := rows.Scan(&nodeName, &kind, &raw, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var payload any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, err
			}
		}
		out = append(out, flowmesh.StoredEvent{TraceID: traceID, NodeName: nodeName, Kind: kind, Payload: payload, Timestamp: ts})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveRemoteBinding(ctx context.Context, traceID, bindingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO remote_bindings (trace_id, binding_id) VALUES (?, ?)`, traceID, bindingID)
	if err != nil {
		return fmt.Errorf("save remote binding: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveMemoryState(ctx context.Context, traceID string, wm flowmesh.WorkingMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	payload, err := json.Marshal(wm)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_state (trace_id, payload) VALUES (?, ?)
		ON CONFLICT(trace_id) DO UPDATE SET payload = excluded.payload
	`, traceID, payload)
	if err != nil {
		return fmt.Errorf("save memory state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadMemoryState(ctx context.Context, traceID string) (flowmesh.WorkingMemory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return flowmesh.WorkingMemory{}, false, ErrStoreClosed
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM memory_state WHERE trace_id = ?`, traceID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return flowmesh.WorkingMemory{}, false, nil
	}
	if err != nil {
		return flowmesh.WorkingMemory{}, false, fmt.Errorf("load memory state: %w", err)
	}
	var wm flowmesh.WorkingMemory
	if err := json.Unmarshal(raw, &wm); err != nil {
		return flowmesh.WorkingMemory{}, false, err
	}
	return wm, true, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
