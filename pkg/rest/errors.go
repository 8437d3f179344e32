package rest

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a request failure. Classification happens once,
// at the point the failure is constructed; callers branch on the kind
// tag, never on message text.
type ErrorKind string

// Failure kinds
const (
	KindTimeout  ErrorKind = "timeout"
	KindResponse ErrorKind = "response"
	KindNetwork  ErrorKind = "network"
	KindAborted  ErrorKind = "aborted"
	KindUnknown  ErrorKind = "unknown"
)

// Error is the failure half of a request outcome. Metrics are stamped
// before the error is returned, so diagnostics are available on both
// the success and failure paths.
type Error struct {
	Kind    ErrorKind
	Message string
	// Status is the HTTP status code for response-kind failures, 0 otherwise
	Status int
	// Details carries the decoded error body when one was available
	Details interface{}
	Metrics Metrics
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Kind == KindResponse && e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return e.Message
}

// Retryable reports whether a retry could plausibly change the outcome.
// Client errors other than request-timeout and rate-limit are terminal;
// everything else (network failures, timeouts, 5xx, 408, 429) is not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindAborted:
		return false
	case KindResponse:
		if e.Status >= 400 && e.Status < 500 {
			// 404 stays retryable: a fallback endpoint may hold the
			// resource the primary does not.
			switch e.Status {
			case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusNotFound:
				return true
			}
			return false
		}
		return true
	default:
		return false
	}
}

// newResponseError builds a response-kind failure from a status and
// whatever error detail could be decoded from the body.
func newResponseError(status int, message string, details interface{}) *Error {
	return &Error{
		Kind:    KindResponse,
		Message: message,
		Status:  status,
		Details: details,
	}
}
