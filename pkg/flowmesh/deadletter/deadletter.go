// Package deadletter holds FlowErrors that reached the rookery without
// being consumed by a caller's Fetch loop within a grace period, so they
// can be inspected or retried later instead of silently aging out.
//
// This is an optional enrichment (spec §7 notes an "optional error edge"
// convention but leaves its storage unspecified): a Runtime is never
// required to use one, and nothing in pkg/flowmesh imports this package.
package deadletter

import (
	"sync"
	"time"
)

// Entry is one parked FlowError, identified by its trace ID and the node
// that raised it.
type Entry struct {
	TraceID      string
	NodeName     string
	Code         string
	Message      string
	FailedAt     time.Time
	AttemptCount int
	NextRetryAt  time.Time
}

// Queue is the interface a Runtime's optional error-edge handler can target
// instead of (or in addition to) the rookery.
type Queue interface {
	Enqueue(e Entry) error
	Dequeue(limit int) []Entry
	Ack(traceID string)
	Len() int
}

// Config bounds an InMemoryQueue's size and retry scheduling. Grounded on
// the teacher's event.DLQConfig, trimmed from a multi-tenant event-routing
// configuration to three fields; InMemoryQueue does not read MaxRetries.
type Config struct {
	MaxSize    int
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig mirrors the teacher's DefaultDLQConfig defaults.
var DefaultConfig = Config{
	MaxSize:    10000,
	MaxRetries: 5,
	RetryDelay: time.Minute,
}

// InMemoryQueue is a process-local Queue, adapted from the teacher's
// InMemoryDLQ: the same enqueue-with-backoff/ack/dequeue-when-ready shape,
// narrowed from event.FailedEvent (type+tenant+payload) to a FlowError
// summary keyed by trace ID.
type InMemoryQueue struct {
	mu      sync.Mutex
	entries map[string]Entry
	cfg     Config
}

// NewInMemoryQueue creates an InMemoryQueue with cfg, applying
// DefaultConfig's values for any zero field.
func NewInMemoryQueue(cfg Config) *InMemoryQueue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig.MaxSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultConfig.RetryDelay
	}
	return &InMemoryQueue{entries: make(map[string]Entry), cfg: cfg}
}

// Enqueue parks e, scheduling its next retry after cfg.RetryDelay (with
// exponential backoff on repeated failures of the same trace).
func (q *InMemoryQueue) Enqueue(e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.entries[e.TraceID]; ok {
		e.AttemptCount = existing.AttemptCount + 1
	}
	if len(q.entries) >= q.cfg.MaxSize {
		return ErrQueueFull
	}
	if e.NextRetryAt.IsZero() {
		backoff := q.cfg.RetryDelay * time.Duration(1<<uint(minInt(e.AttemptCount, 10)))
		e.NextRetryAt = time.Now().Add(backoff)
	}
	q.entries[e.TraceID] = e
	return nil
}

// Dequeue returns up to limit entries whose NextRetryAt has passed,
// removing them from the queue.
func (q *InMemoryQueue) Dequeue(limit int) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	out := make([]Entry, 0, limit)
	for traceID, e := range q.entries {
		if len(out) >= limit {
			break
		}
		if !e.NextRetryAt.After(now) {
			out = append(out, e)
			delete(q.entries, traceID)
		}
	}
	return out
}

// Ack removes traceID from the queue unconditionally, e.g. once a caller
// has successfully reprocessed it out of band.
func (q *InMemoryQueue) Ack(traceID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, traceID)
}

// Len reports the number of parked entries.
func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ErrQueueFull is returned by Enqueue once the queue reaches Config.MaxSize.
var ErrQueueFull = queueFullError{}

type queueFullError struct{}

func (queueFullError) Error() string { return "deadletter: queue is full" }
