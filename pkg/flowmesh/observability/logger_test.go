package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnrichLoggerAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	enriched := EnrichLogger(base, "trace-1", "fetch", 2)
	enriched.Info("hello")

	out := buf.String()
	require.Contains(t, out, `"trace_id":"trace-1"`)
	require.Contains(t, out, `"node":"fetch"`)
	require.Contains(t, out, `"attempt":2`)
}

func TestEnrichLoggerNilLogger(t *testing.T) {
	require.Nil(t, EnrichLogger(nil, "t", "n", 1))
}

func TestTimedOperationReportsElapsed(t *testing.T) {
	done := TimedOperation()
	elapsed := done()
	require.GreaterOrEqual(t, elapsed, float64(0))
}
