package observability

import "time"

// NoopLogger is a logger that does nothing
type NoopLogger struct{}

// NewNoopLogger creates a new NoopLogger
func NewNoopLogger() Logger {
	return &NoopLogger{}
}

// Debug implements Logger.Debug
func (l *NoopLogger) Debug(msg string, fields map[string]interface{}) {}

// Info implements Logger.Info
func (l *NoopLogger) Info(msg string, fields map[string]interface{}) {}

// Warn implements Logger.Warn
func (l *NoopLogger) Warn(msg string, fields map[string]interface{}) {}

// Error implements Logger.Error
func (l *NoopLogger) Error(msg string, fields map[string]interface{}) {}

// WithPrefix implements Logger.WithPrefix
func (l *NoopLogger) WithPrefix(prefix string) Logger { return l }

// With implements Logger.With
func (l *NoopLogger) With(fields map[string]interface{}) Logger { return l }

// NoopMetricsClient is a MetricsClient that discards everything
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a new NoopMetricsClient
func NewNoopMetricsClient() MetricsClient { return &NoopMetricsClient{} }

// IncrementCounter implements MetricsClient.IncrementCounter
func (m *NoopMetricsClient) IncrementCounter(name string, value float64, labels map[string]string) {
}

// RecordGauge implements MetricsClient.RecordGauge
func (m *NoopMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {}

// RecordLatency implements MetricsClient.RecordLatency
func (m *NoopMetricsClient) RecordLatency(operation string, duration time.Duration) {}

// Close implements MetricsClient.Close
func (m *NoopMetricsClient) Close() error { return nil }
