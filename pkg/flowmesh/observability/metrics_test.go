package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMetricsUsesGlobalProvider(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)
	// Exercised against the global no-op meter provider by default; the
	// call must not panic regardless of what provider is installed.
	m.IncCounter("node_start", map[string]string{"node": "fetch"})
}

func TestNewSpanManagerUsesGlobalProvider(t *testing.T) {
	sm := NewSpanManager()
	require.NotNil(t, sm)
}
