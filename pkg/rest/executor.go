// Package rest implements the resilient request layer every API method
// in this plugin goes through: per-attempt timeouts, retries with
// exponential backoff and jitter, fallback-endpoint rotation, response
// validation, and failure classification.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tududes/plugin-chutes/pkg/observability"
	"github.com/tududes/plugin-chutes/pkg/resilience"
)

// Policy is the per-client (or per-call) request configuration. A
// policy is immutable once a request begins; per-attempt state lives
// in the executor's retry loop.
type Policy struct {
	// Timeout bounds each individual attempt
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// RetryBaseDelay seeds the exponential backoff between attempts
	RetryBaseDelay time.Duration
	// Headers are merged into every request and override caller headers
	Headers map[string]string
	// FallbackBaseURLs are alternate base URLs rotated through on retries
	FallbackBaseURLs []string
	// StatusIsSuccess decides which HTTP statuses count as success.
	// Nil means 2xx.
	StatusIsSuccess func(status int) bool
}

// DefaultPolicy returns the stock request policy
func DefaultPolicy() Policy {
	return Policy{
		Timeout:        10 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.RetryBaseDelay <= 0 {
		p.RetryBaseDelay = time.Second
	}
	if p.StatusIsSuccess == nil {
		p.StatusIsSuccess = func(status int) bool { return status >= 200 && status < 300 }
	}
	return p
}

// RequestOptions carries per-call inputs to Executor.Do.
type RequestOptions struct {
	// Body is marshalled to JSON when non-nil
	Body interface{}
	// Headers are caller-supplied request headers; policy headers win
	Headers map[string]string
	// Policy overrides the executor's policy for this call only
	Policy *Policy
}

// Executor issues HTTP requests under a policy. It is safe for
// concurrent use; independent calls share nothing but the HTTP
// connection pool, the rate limiter, and the circuit breaker.
type Executor struct {
	httpClient *http.Client
	policy     Policy
	logger     observability.Logger
	metrics    observability.MetricsClient
	limiter    *resilience.RateLimiter
	breaker    *resilience.CircuitBreaker
	hooks      Hooks
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *Executor) { e.httpClient = client }
}

// WithLogger sets the logger
func WithLogger(logger observability.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics sets the metrics client
func WithMetrics(metrics observability.MetricsClient) ExecutorOption {
	return func(e *Executor) { e.metrics = metrics }
}

// WithRateLimiter sets a token-bucket limiter consulted before each
// logical request
func WithRateLimiter(limiter *resilience.RateLimiter) ExecutorOption {
	return func(e *Executor) { e.limiter = limiter }
}

// WithCircuitBreaker sets a circuit breaker wrapped around each attempt
func WithCircuitBreaker(breaker *resilience.CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = breaker }
}

// WithHooks sets the request lifecycle observers
func WithHooks(hooks Hooks) ExecutorOption {
	return func(e *Executor) { e.hooks = hooks }
}

// NewExecutor creates an executor with the given default policy
func NewExecutor(policy Policy, opts ...ExecutorOption) *Executor {
	e := &Executor{
		policy:  policy.withDefaults(),
		logger:  observability.NewNoopLogger(),
		metrics: observability.NewNoopMetricsClient(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.httpClient == nil {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
		e.httpClient = &http.Client{Transport: transport}
	}
	return e
}

// Do issues one logical request against primaryURL, retrying per the
// policy and rotating across fallback base URLs. On success the
// returned Response carries the decoded body; on failure the returned
// error is always a *rest.Error with a classified kind. Metrics are
// stamped on both.
func (e *Executor) Do(ctx context.Context, method, primaryURL string, opts RequestOptions) (*Response, error) {
	pol := e.policy
	if opts.Policy != nil {
		pol = opts.Policy.withDefaults()
	}

	requestID := uuid.NewString()
	start := time.Now()
	logger := e.logger.With(map[string]interface{}{"request_id": requestID})

	stamp := func(attempt int, target string) Metrics {
		return Metrics{
			ResponseTimeMs: time.Since(start).Milliseconds(),
			Retries:        attempt,
			Endpoint:       target,
		}
	}
	fail := func(rerr *Error, attempt int, target string) (*Response, error) {
		rerr.Metrics = stamp(attempt, target)
		e.metrics.IncrementCounter("chutes_requests_failed_total", 1, map[string]string{
			"method": method,
			"kind":   string(rerr.Kind),
		})
		logger.Error("request failed", map[string]interface{}{
			"method":   method,
			"url":      primaryURL,
			"endpoint": target,
			"kind":     string(rerr.Kind),
			"status":   rerr.Status,
			"retries":  attempt,
			"error":    rerr.Message,
		})
		e.hooks.exception(method, primaryURL, rerr)
		return nil, rerr
	}

	e.hooks.requestStart(method, primaryURL, map[string]interface{}{
		"request_id":  requestID,
		"timeout_ms":  pol.Timeout.Milliseconds(),
		"max_retries": pol.MaxRetries,
	})
	logger.Debug("request start", map[string]interface{}{
		"method":      method,
		"url":         primaryURL,
		"timeout_ms":  pol.Timeout.Milliseconds(),
		"max_retries": pol.MaxRetries,
	})
	e.metrics.IncrementCounter("chutes_requests_total", 1, map[string]string{"method": method})

	rot, err := buildRotation(primaryURL, pol.FallbackBaseURLs)
	if err != nil {
		return fail(&Error{Kind: KindUnknown, Message: err.Error()}, 0, primaryURL)
	}

	var body []byte
	if opts.Body != nil {
		body, err = json.Marshal(opts.Body)
		if err != nil {
			return fail(&Error{Kind: KindUnknown, Message: fmt.Sprintf("failed to encode request body: %v", err)}, 0, primaryURL)
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fail(&Error{Kind: KindAborted, Message: "request aborted while waiting for rate limit"}, 0, primaryURL)
		}
	}

	// Per-attempt state tracked outside the policy.
	lastAttempt := 0
	lastTarget := rot.target(0)

	retryPol := resilience.RetryPolicy{
		MaxRetries: pol.MaxRetries,
		BaseDelay:  pol.RetryBaseDelay,
		Retryable:  func(err error) bool { return Classify(err).Retryable() },
	}
	resp, err := resilience.Do(ctx, retryPol, logger, func(attempt int) (*Response, error) {
		target := rot.target(attempt)
		lastAttempt, lastTarget = attempt, target
		label := fmt.Sprintf("attempt %d", attempt)
		return resilience.WithTimeout(ctx, pol.Timeout, label, func(actx context.Context) (*Response, error) {
			return e.guardedAttempt(actx, method, target, body, pol, opts.Headers)
		})
	})
	if err != nil {
		return fail(Classify(err), lastAttempt, lastTarget)
	}

	resp.Metrics = stamp(lastAttempt, lastTarget)
	e.metrics.RecordLatency(method+" "+rot.path, time.Since(start))
	if lastAttempt > 0 {
		e.metrics.IncrementCounter("chutes_request_retries_total", float64(lastAttempt), map[string]string{"method": method})
	}
	logger.Debug("request succeeded", map[string]interface{}{
		"method":           method,
		"url":              primaryURL,
		"endpoint":         lastTarget,
		"status":           resp.Status,
		"retries":          lastAttempt,
		"response_time_ms": resp.Metrics.ResponseTimeMs,
	})
	e.hooks.requestEnd(method, primaryURL, resp)
	return resp, nil
}

// guardedAttempt runs one attempt, through the circuit breaker when
// one is configured. A breaker rejection is reported as a network-kind
// failure so a later attempt can pass once the breaker half-opens.
func (e *Executor) guardedAttempt(ctx context.Context, method, target string, body []byte, pol Policy, headers map[string]string) (*Response, error) {
	if e.breaker == nil {
		return e.attempt(ctx, method, target, body, pol, headers)
	}
	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.attempt(ctx, method, target, body, pol, headers)
	})
	if err != nil {
		if resilience.IsOpenError(err) {
			return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("circuit breaker open for %s", target)}
		}
		return nil, err
	}
	return out.(*Response), nil
}

// attempt issues a single HTTP call and classifies its outcome.
func (e *Executor) attempt(ctx context.Context, method, target string, body []byte, pol Policy, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: fmt.Sprintf("failed to build request: %v", err)}
	}

	// Caller headers first, policy headers override.
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for k, v := range pol.Headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() {
		if cerr := httpResp.Body.Close(); cerr != nil {
			e.logger.Warn("failed to close response body", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}

	if !pol.StatusIsSuccess(httpResp.StatusCode) {
		return nil, decodeErrorBody(httpResp.StatusCode, raw)
	}

	resp := &Response{Status: httpResp.StatusCode}
	contentType := httpResp.Header.Get("Content-Type")
	switch {
	case len(raw) == 0 || httpResp.StatusCode == http.StatusNoContent:
		resp.JSON = json.RawMessage("{}")
	case strings.Contains(contentType, "application/json"):
		if !json.Valid(raw) {
			return nil, newResponseError(httpResp.StatusCode, "response declared JSON but body is not valid JSON", string(raw))
		}
		resp.JSON = json.RawMessage(raw)
	default:
		// The upstream API is not uniformly JSON; legacy endpoints and
		// some error paths return plain text.
		resp.Text = string(raw)
	}
	return resp, nil
}

// Classify maps any error surfaced by the request path to a
// *rest.Error. Errors that are already classified pass through.
func Classify(err error) *Error {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	var terr *resilience.TimeoutError
	if errors.As(err, &terr) {
		return &Error{Kind: KindTimeout, Message: terr.Error()}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindAborted, Message: "request aborted"}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &Error{Kind: KindNetwork, Message: err.Error()}
	}
	return &Error{Kind: KindUnknown, Message: err.Error()}
}

// classifyTransport classifies a low-level transport failure so callers
// never see net/http exception types. Context outcomes take priority:
// the HTTP client reports a deadline or cancellation as a url.Error.
func classifyTransport(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindAborted, Message: "request aborted"}
	default:
		return &Error{Kind: KindNetwork, Message: err.Error()}
	}
}

// decodeErrorBody turns a non-success response into a response-kind
// failure, decoding the body as JSON first, plain text second, and a
// generic message last.
func decodeErrorBody(status int, raw []byte) *Error {
	if len(raw) == 0 {
		return newResponseError(status, fmt.Sprintf("HTTP Error %d", status), nil)
	}
	var details interface{}
	if err := json.Unmarshal(raw, &details); err == nil {
		return newResponseError(status, errorMessageFrom(details, status), details)
	}
	text := strings.TrimSpace(string(raw))
	return newResponseError(status, text, text)
}

// errorMessageFrom pulls a human-readable message out of a decoded
// error body, trying the field names the platform actually uses.
func errorMessageFrom(details interface{}, status int) string {
	if obj, ok := details.(map[string]interface{}); ok {
		for _, key := range []string{"detail", "message", "error"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("HTTP Error %d", status)
}

// rotation is the endpoint list for one logical request.
type rotation struct {
	// targets[0] is the primary URL; the rest are fallback bases with
	// the primary's path joined on
	targets []string
	path    string
}

func buildRotation(primary string, fallbackBases []string) (*rotation, error) {
	u, err := url.Parse(primary)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid request URL %q", primary)
	}
	targets := make([]string, 0, 1+len(fallbackBases))
	targets = append(targets, primary)
	for _, base := range fallbackBases {
		targets = append(targets, strings.TrimRight(base, "/")+u.RequestURI())
	}
	return &rotation{targets: targets, path: u.Path}, nil
}

// target picks the URL for an attempt. Attempt 0 always hits the
// primary; attempt n >= 1 cycles targets[n mod len(targets)], so with
// fallbacks [B, C] and primary A the order is A, B, C, A, B, ...
func (r *rotation) target(attempt int) string {
	if attempt == 0 || len(r.targets) == 1 {
		return r.targets[0]
	}
	return r.targets[attempt%len(r.targets)]
}
