package observability

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	fn()
	return buf.String()
}

func TestStandardLoggerIncludesPrefixAndFields(t *testing.T) {
	logger := NewStandardLogger("executor")

	out := captureOutput(t, func() {
		logger.Info("request start", map[string]interface{}{"method": "GET", "attempt": 1})
	})

	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "[executor]")
	assert.Contains(t, out, "request start")
	assert.Contains(t, out, "attempt=1 method=GET", "fields are sorted key=value pairs")
}

func TestStandardLoggerLevelFiltering(t *testing.T) {
	logger := NewStandardLogger("test")

	out := captureOutput(t, func() {
		logger.Debug("hidden", nil)
	})
	assert.Empty(t, out, "debug is below the default info level")

	verbose := logger.(*StandardLogger).WithLevel(LogLevelDebug)
	out = captureOutput(t, func() {
		verbose.Debug("visible", nil)
	})
	assert.Contains(t, out, "visible")
}

func TestStandardLoggerWithAttachesFields(t *testing.T) {
	logger := NewStandardLogger("test").With(map[string]interface{}{"request_id": "r1"})

	out := captureOutput(t, func() {
		logger.Warn("retrying", map[string]interface{}{"attempt": 2})
	})
	assert.Contains(t, out, "request_id=r1")
	assert.Contains(t, out, "attempt=2")
}

func TestNoopLoggerDoesNothing(t *testing.T) {
	out := captureOutput(t, func() {
		logger := NewNoopLogger().WithPrefix("x").With(map[string]interface{}{"k": "v"})
		logger.Error("silent", nil)
	})
	assert.Empty(t, out)
}

func TestInMemoryMetricsClient(t *testing.T) {
	m := NewInMemoryMetricsClient()

	m.IncrementCounter("requests_total", 1, map[string]string{"method": "GET"})
	m.IncrementCounter("requests_total", 2, map[string]string{"method": "GET"})
	m.IncrementCounter("requests_total", 1, map[string]string{"method": "POST"})
	m.RecordLatency("GET /chutes", 120*time.Millisecond)

	assert.Equal(t, 3.0, m.Counter("requests_total", map[string]string{"method": "GET"}))
	assert.Equal(t, 1.0, m.Counter("requests_total", map[string]string{"method": "POST"}))

	lat := m.Latencies("GET /chutes")
	require.Len(t, lat, 1)
	assert.Equal(t, 120*time.Millisecond, lat[0])
	require.NoError(t, m.Close())
}
