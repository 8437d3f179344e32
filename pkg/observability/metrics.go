package observability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryMetricsClient collects metrics in process memory. It is the
// default backing for the request executor and is primarily useful for
// debugging and tests; production callers can supply their own
// MetricsClient implementation.
type InMemoryMetricsClient struct {
	mu        sync.Mutex
	counters  map[string]float64
	gauges    map[string]float64
	latencies map[string][]time.Duration
}

// NewInMemoryMetricsClient creates a new InMemoryMetricsClient
func NewInMemoryMetricsClient() *InMemoryMetricsClient {
	return &InMemoryMetricsClient{
		counters:  make(map[string]float64),
		gauges:    make(map[string]float64),
		latencies: make(map[string][]time.Duration),
	}
}

// IncrementCounter adds value to the named counter
func (m *InMemoryMetricsClient) IncrementCounter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metricKey(name, labels)] += value
}

// RecordGauge sets the named gauge to value
func (m *InMemoryMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metricKey(name, labels)] = value
}

// RecordLatency appends an observed duration for the operation
func (m *InMemoryMetricsClient) RecordLatency(operation string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[operation] = append(m.latencies[operation], duration)
}

// Close implements MetricsClient.Close
func (m *InMemoryMetricsClient) Close() error { return nil }

// Counter returns the current value of the named counter
func (m *InMemoryMetricsClient) Counter(name string, labels map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metricKey(name, labels)]
}

// Latencies returns the observed durations for the operation
func (m *InMemoryMetricsClient) Latencies(operation string) []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.latencies[operation]))
	copy(out, m.latencies[operation])
	return out
}

// metricKey builds a stable identity for a metric name + label set.
func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		fmt.Fprintf(&b, "{%s=%s}", k, labels[k])
	}
	return b.String()
}
