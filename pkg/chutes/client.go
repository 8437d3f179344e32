// Package chutes is the typed client for the Chutes GPU-serving
// platform REST API. All network traffic goes through the resilient
// executor in pkg/rest.
package chutes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tududes/plugin-chutes/pkg/config"
	"github.com/tududes/plugin-chutes/pkg/models"
	"github.com/tududes/plugin-chutes/pkg/observability"
	"github.com/tududes/plugin-chutes/pkg/resilience"
	"github.com/tududes/plugin-chutes/pkg/rest"
)

// noMatchingChuteDetail is the body the API sends with a 404 when the
// chute list is simply empty. Upstream quirk: it must be treated as an
// empty collection, not an error.
const noMatchingChuteDetail = "No matching chute found!"

const listCacheTTL = 30 * time.Second

var chuteSpec = rest.ValidationSpec{
	RequiredFields: []string{"chute_id", "name"},
	Defaults:       map[string]interface{}{"public": false},
}

var imageSpec = rest.ValidationSpec{
	RequiredFields: []string{"image_id", "name"},
	Defaults:       map[string]interface{}{"public": false},
}

// Client talks to the Chutes API.
type Client struct {
	baseURL  string
	executor *rest.Executor
	logger   observability.Logger

	// listPolicy admits 404 so the empty-collection quirk reaches the
	// success path for inspection
	listPolicy rest.Policy

	// listCache holds recent list responses keyed by endpoint path
	listCache *expirable.LRU[string, json.RawMessage]
}

// Option configures a Client
type Option func(*clientSettings)

type clientSettings struct {
	logger         observability.Logger
	metrics        observability.MetricsClient
	httpClient     *http.Client
	hooks          rest.Hooks
	disableBreaker bool
}

// WithLogger sets the logger
func WithLogger(logger observability.Logger) Option {
	return func(s *clientSettings) { s.logger = logger }
}

// WithMetrics sets the metrics client
func WithMetrics(metrics observability.MetricsClient) Option {
	return func(s *clientSettings) { s.metrics = metrics }
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(s *clientSettings) { s.httpClient = client }
}

// WithHooks sets request lifecycle observers on the executor
func WithHooks(hooks rest.Hooks) Option {
	return func(s *clientSettings) { s.hooks = hooks }
}

// WithoutCircuitBreaker disables the circuit breaker, mainly for tests
func WithoutCircuitBreaker() Option {
	return func(s *clientSettings) { s.disableBreaker = true }
}

// NewClient creates a Chutes API client from validated configuration.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("Authentication error: configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Authentication error: %v", err)
	}

	settings := &clientSettings{
		logger:  observability.NewNoopLogger(),
		metrics: observability.NewNoopMetricsClient(),
	}
	for _, opt := range opts {
		opt(settings)
	}

	policy := rest.Policy{
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.Retries,
		RetryBaseDelay: time.Second,
		Headers: map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
			"Content-Type":  "application/json",
		},
		FallbackBaseURLs: cfg.FallbackEndpoints,
	}

	execOpts := []rest.ExecutorOption{
		rest.WithLogger(settings.logger.WithPrefix("chutes")),
		rest.WithMetrics(settings.metrics),
		rest.WithHooks(settings.hooks),
		rest.WithRateLimiter(resilience.NewRateLimiter("chutes-api", resilience.RateLimiterConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		})),
	}
	if settings.httpClient != nil {
		execOpts = append(execOpts, rest.WithHTTPClient(settings.httpClient))
	}
	if !settings.disableBreaker {
		execOpts = append(execOpts, rest.WithCircuitBreaker(resilience.NewCircuitBreaker("chutes-api", resilience.CircuitBreakerConfig{})))
	}

	listPolicy := policy
	listPolicy.StatusIsSuccess = func(status int) bool {
		return (status >= 200 && status < 300) || status == http.StatusNotFound
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		executor:   rest.NewExecutor(policy, execOpts...),
		logger:     settings.logger.WithPrefix("chutes"),
		listPolicy: listPolicy,
		listCache:  expirable.NewLRU[string, json.RawMessage](8, nil, listCacheTTL),
	}, nil
}

// GetCurrentUser returns the authenticated account.
func (c *Client) GetCurrentUser(ctx context.Context) (*models.User, error) {
	resp, err := c.executor.Do(ctx, http.MethodGet, c.baseURL+"/users/me", rest.RequestOptions{})
	if err != nil {
		return nil, c.wrapErr(err)
	}
	var user models.User
	if err := resp.Decode(&user); err != nil {
		return nil, c.wrapErr(err)
	}
	return &user, nil
}

// GetDeveloperDeposit returns the deposit required for developer access.
func (c *Client) GetDeveloperDeposit(ctx context.Context) (*models.DeveloperDeposit, error) {
	resp, err := c.executor.Do(ctx, http.MethodGet, c.baseURL+"/developer_deposit", rest.RequestOptions{})
	if err != nil {
		return nil, c.wrapErr(err)
	}
	var deposit models.DeveloperDeposit
	if err := resp.Decode(&deposit); err != nil {
		return nil, c.wrapErr(err)
	}
	return &deposit, nil
}

// ListChutes returns all chutes for the account. The platform answers
// an empty account with a 404 and a "No matching chute found!" detail;
// that is an empty list, not an error.
func (c *Client) ListChutes(ctx context.Context) ([]*models.Chute, error) {
	if cached, ok := c.listCache.Get("/chutes"); ok {
		c.logger.Debug("serving chute list from cache", nil)
		return decodeList[models.Chute](cached, chuteSpec)
	}

	resp, err := c.executor.Do(ctx, http.MethodGet, c.baseURL+"/chutes", rest.RequestOptions{
		Policy: &c.listPolicy,
	})
	if err != nil {
		return nil, c.wrapErr(err)
	}
	if resp.Status == http.StatusNotFound {
		var body struct {
			Detail string `json:"detail"`
		}
		if derr := resp.Decode(&body); derr == nil && body.Detail == noMatchingChuteDetail {
			return []*models.Chute{}, nil
		}
		return nil, fmt.Errorf("Chutes API error: HTTP Error %d", resp.Status)
	}

	items, err := listPayload(resp)
	if err != nil {
		return nil, c.wrapErr(err)
	}
	c.listCache.Add("/chutes", items)
	return decodeList[models.Chute](items, chuteSpec)
}

// GetChute returns one chute by id.
func (c *Client) GetChute(ctx context.Context, chuteID string) (*models.Chute, error) {
	resp, err := c.executor.Do(ctx, http.MethodGet, c.baseURL+"/chutes/"+chuteID, rest.RequestOptions{})
	if err != nil {
		return nil, c.wrapErr(err)
	}
	return decodeValidated[models.Chute](resp.JSON, chuteSpec)
}

// DeployChute deploys a new workload.
func (c *Client) DeployChute(ctx context.Context, req *models.ChuteDeployRequest) (*models.Chute, error) {
	if req == nil || req.Name == "" {
		return nil, errors.New("Chutes API error: deploy request requires a name")
	}
	resp, err := c.executor.Do(ctx, http.MethodPost, c.baseURL+"/chutes", rest.RequestOptions{Body: req})
	if err != nil {
		return nil, c.wrapErr(err)
	}
	c.listCache.Remove("/chutes")
	return decodeValidated[models.Chute](resp.JSON, chuteSpec)
}

// DeleteChute removes a deployed workload.
func (c *Client) DeleteChute(ctx context.Context, chuteID string) error {
	if chuteID == "" {
		return errors.New("Chutes API error: chute id is required")
	}
	_, err := c.executor.Do(ctx, http.MethodDelete, c.baseURL+"/chutes/"+chuteID, rest.RequestOptions{})
	if err != nil {
		return c.wrapErr(err)
	}
	c.listCache.Remove("/chutes")
	return nil
}

// ListCords returns the remotely-invocable functions a chute exposes.
func (c *Client) ListCords(ctx context.Context, chuteID string) ([]*models.Cord, error) {
	resp, err := c.executor.Do(ctx, http.MethodGet, c.baseURL+"/chutes/"+chuteID+"/cords", rest.RequestOptions{})
	if err != nil {
		return nil, c.wrapErr(err)
	}
	items, err := listPayload(resp)
	if err != nil {
		return nil, c.wrapErr(err)
	}
	return decodeList[models.Cord](items, rest.ValidationSpec{RequiredFields: []string{"name"}})
}

// InvokeCord calls a named cord on a chute and returns the raw result,
// since cord return shapes are defined by the chute author.
func (c *Client) InvokeCord(ctx context.Context, chuteID, cordName string, inv *models.CordInvocation) (json.RawMessage, error) {
	if inv == nil {
		inv = &models.CordInvocation{}
	}
	resp, err := c.executor.Do(ctx, http.MethodPost, c.baseURL+"/chutes/"+chuteID+"/cords/"+cordName, rest.RequestOptions{Body: inv})
	if err != nil {
		return nil, c.wrapErr(err)
	}
	if resp.IsJSON() {
		return resp.JSON, nil
	}
	raw, err := json.Marshal(resp.Text)
	if err != nil {
		return nil, c.wrapErr(err)
	}
	return raw, nil
}

// ListImages returns the container templates visible to the account.
func (c *Client) ListImages(ctx context.Context) ([]*models.Image, error) {
	if cached, ok := c.listCache.Get("/images"); ok {
		c.logger.Debug("serving image list from cache", nil)
		return decodeList[models.Image](cached, imageSpec)
	}
	resp, err := c.executor.Do(ctx, http.MethodGet, c.baseURL+"/images", rest.RequestOptions{})
	if err != nil {
		return nil, c.wrapErr(err)
	}
	items, err := listPayload(resp)
	if err != nil {
		return nil, c.wrapErr(err)
	}
	c.listCache.Add("/images", items)
	return decodeList[models.Image](items, imageSpec)
}

// GetImage returns one image by id.
func (c *Client) GetImage(ctx context.Context, imageID string) (*models.Image, error) {
	resp, err := c.executor.Do(ctx, http.MethodGet, c.baseURL+"/images/"+imageID, rest.RequestOptions{})
	if err != nil {
		return nil, c.wrapErr(err)
	}
	return decodeValidated[models.Image](resp.JSON, imageSpec)
}

// wrapErr maps core failures into the stable upward-facing error
// surface. Auth failures get their own prefix so calling UIs can
// pattern-match without parsing internals.
func (c *Client) wrapErr(err error) error {
	var rerr *rest.Error
	if errors.As(err, &rerr) {
		if rerr.Status == http.StatusUnauthorized || rerr.Status == http.StatusForbidden {
			return fmt.Errorf("Authentication error: %w", rerr)
		}
	}
	return fmt.Errorf("Chutes API error: %w", err)
}

// listPayload extracts the item array from a list response, which the
// API serves either bare or wrapped in an {"items": [...]} envelope.
func listPayload(resp *rest.Response) (json.RawMessage, error) {
	if !resp.IsJSON() {
		return nil, &rest.Error{Kind: rest.KindResponse, Message: "list response was not JSON", Status: resp.Status}
	}
	trimmed := string(resp.JSON)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return resp.JSON, nil
	}
	var envelope struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(resp.JSON, &envelope); err != nil {
		return nil, &rest.Error{Kind: rest.KindResponse, Message: "unrecognized list response shape", Status: resp.Status}
	}
	if envelope.Items == nil {
		return json.RawMessage("[]"), nil
	}
	return envelope.Items, nil
}

// decodeList validates every element of a JSON array against spec and
// decodes it into typed values.
func decodeList[T any](items json.RawMessage, spec rest.ValidationSpec) ([]*T, error) {
	var raw []interface{}
	if err := json.Unmarshal(items, &raw); err != nil {
		return nil, fmt.Errorf("Chutes API error: failed to decode list: %v", err)
	}
	out := make([]*T, 0, len(raw))
	for _, item := range raw {
		merged, err := rest.ValidateShape(item, spec)
		if err != nil {
			return nil, fmt.Errorf("Chutes API error: %w", err)
		}
		decoded, err := remarshal[T](merged)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

// decodeValidated validates a single JSON object against spec and
// decodes it into a typed value.
func decodeValidated[T any](body json.RawMessage, spec rest.ValidationSpec) (*T, error) {
	var raw interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("Chutes API error: failed to decode response: %v", err)
		}
	}
	merged, err := rest.ValidateShape(raw, spec)
	if err != nil {
		return nil, fmt.Errorf("Chutes API error: %w", err)
	}
	return remarshal[T](merged)
}

func remarshal[T any](obj map[string]interface{}) (*T, error) {
	buf, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("Chutes API error: %v", err)
	}
	var out T
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, fmt.Errorf("Chutes API error: %v", err)
	}
	return &out, nil
}
