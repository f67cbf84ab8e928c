package checkpoint

import "time"

// Info is lightweight metadata about a stored event. No store in this
// package returns it; it is a standalone type. Adapted from the
// teacher's checkpoint Info (RunID/NodeID/Sequence/Timestamp/Size), renamed
// to the trace-keyed event-sourcing vocabulary.
type Info struct {
	TraceID   string
	NodeName  string
	Kind      string
	Timestamp time.Time
	Size      int
}
