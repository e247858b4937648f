// Package billing is a small REST client for the upstream billing API. It
// speaks JSON over HTTPS with Basic auth, rate limits itself, retries
// transient failures and turns error bodies into *APIError.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"billtool/internal/retry"
)

const (
	ProductionURL = "https://api.invoiced.com"
	SandboxURL    = "https://api.sandbox.invoiced.com"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("billing: API key must not be empty")

// BaseURLFor maps an environment name to its API root. Empty means production.
func BaseURLFor(env string) (string, error) {
	switch strings.ToLower(env) {
	case "", "production", "prod":
		return ProductionURL, nil
	case "sandbox":
		return SandboxURL, nil
	default:
		return "", fmt.Errorf("billing: unknown environment %q (want production or sandbox)", env)
	}
}

// RequestObserver is told about every HTTP attempt. status is 0 when the
// request failed before a response arrived.
type RequestObserver interface {
	ObserveRequest(method string, status int)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (e.g. a sandbox or a test server).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRateLimit caps outgoing requests to rps with the given burst. rps <= 0
// disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetrier sets the retry policy for transient failures. nil disables retries.
func WithRetrier(r *retry.Retrier) Option {
	return func(c *Client) { c.retrier = r }
}

// WithLogger sets a structured logger. If l is nil it is ignored and the
// default slog logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers a per-request observer (metrics).
func WithObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// Client calls the billing REST API. It is safe for concurrent use.
type Client struct {
	apiKey    string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	retrier   *retry.Retrier
	logger    *slog.Logger
	observer  RequestObserver
	userAgent string

	newIdempotencyKey func() string               // for testing
	marshalFunc       func(v any) ([]byte, error) // for testing
}

// New returns a Client authenticated with apiKey. Without options it talks to
// production with a 30s timeout, no rate limit and no retries.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:            apiKey,
		baseURL:           ProductionURL,
		http:              &http.Client{Timeout: defaultTimeout},
		userAgent:         "billtool",
		newIdempotencyKey: uuid.NewString,
		marshalFunc:       json.Marshal,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// List returns one page of res.
func (c *Client) List(ctx context.Context, res Resource, opts ListOptions) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, string(res), opts.Values(), nil)
}

// Retrieve returns the object id of res.
func (c *Client) Retrieve(ctx context.Context, res Resource, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, res.Item(id), nil, nil)
}

// Create posts body to res and returns the created object.
func (c *Client) Create(ctx context.Context, res Resource, body Params) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, string(res), nil, bodyOrEmpty(body))
}

// Update patches the object id of res with body and returns the updated object.
func (c *Client) Update(ctx context.Context, res Resource, id string, body Params) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, res.Item(id), nil, bodyOrEmpty(body))
}

// Delete removes the object id of res.
func (c *Client) Delete(ctx context.Context, res Resource, id string) error {
	_, err := c.do(ctx, http.MethodDelete, res.Item(id), nil, nil)
	return err
}

// Do runs a named operation against the object id (which may be empty for
// collection-level actions). For GET and DELETE the params travel in the
// query string.
func (c *Client) Do(ctx context.Context, op Operation, id string, params Params) (json.RawMessage, error) {
	path := op.Path(id)
	switch op.Method {
	case http.MethodGet, http.MethodDelete:
		return c.do(ctx, op.Method, path, EncodeQuery(params), nil)
	default:
		return c.do(ctx, op.Method, path, nil, bodyOrEmpty(params))
	}
}

func bodyOrEmpty(p Params) Params {
	if p == nil {
		return Params{}
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		raw, err := c.marshalFunc(body)
		if err != nil {
			return nil, fmt.Errorf("billing marshal: %w", err)
		}
		payload = raw
	}
	// One key per logical request so retried POSTs are not applied twice.
	var idempotencyKey string
	if method == http.MethodPost {
		idempotencyKey = c.newIdempotencyKey()
	}
	return retry.Run(ctx, c.retrier, func(ctx context.Context) (json.RawMessage, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return c.roundTrip(ctx, method, path, query, payload, idempotencyKey)
	})
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, payload []byte, idempotencyKey string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("billing request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, 0)
		return nil, fmt.Errorf("billing %s /%s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.observe(method, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("billing read: %w", err)
	}
	c.log().Debug("billing request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(method, path, resp.StatusCode, data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("billing %s /%s: response is not valid JSON", method, path)
	}
	return json.RawMessage(data), nil
}

func (c *Client) observe(method string, status int) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, status)
	}
}
