package resilience

import (
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	// MaxFailures is the consecutive-failure count that opens the breaker
	MaxFailures int
	// OpenTimeout is how long the breaker stays open before half-opening
	OpenTimeout time.Duration
}

// CircuitBreaker wraps gobreaker for the request executor. A tripped
// breaker rejects calls immediately so a failing backend is not hammered
// while it recovers.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
	}
	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// State returns the breaker state as a string ("closed", "half-open", "open")
func (cb *CircuitBreaker) State() string {
	return cb.breaker.State().String()
}

// IsOpenError reports whether err is a breaker rejection rather than a
// failure of the wrapped call.
func IsOpenError(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}
