/**
 * @description
 * This package provides the client for the SubSentry REST backend.
 * It encapsulates the authenticated request path shared by every resource module.
 *
 * Key features:
 * - Attaches the session's bearer token to every request.
 * - Clears the session and reports ErrUnauthorized on a 401.
 * - Retries idempotent GET requests once on transport errors and 5xx responses.
 * - Normalizes the backend's inconsistent response envelopes in one place.
 *
 * @dependencies
 * - github.com/tidwall/gjson: tolerant reads of envelope and error bodies.
 * - The service's internal domain package for the shared resource models.
 */
package subsentryclient

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

	"github.com/subsentry/dashboard-service/internal/domain"
)

// DefaultTimeout bounds every backend request.
const DefaultTimeout = 10 * time.Second

// Session is the slice of session storage the client reads and clears.
type Session interface {
	Token() string
	UserID() string
	ClearToken()
}

// Observer receives one call per completed backend request.
type Observer interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Client is a client for the SubSentry backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	session        Session
	onUnauthorized func()
	logger         *slog.Logger
	observer       Observer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its timeout is forced to DefaultTimeout when unset.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc.Timeout == 0 {
			hc.Timeout = DefaultTimeout
		}
		c.httpClient = hc
	}
}

// WithSession sets where the bearer token and user id come from.
func WithSession(s Session) Option {
	return func(c *Client) { c.session = s }
}

// WithOnUnauthorized registers a hook run after a 401 clears the token.
func WithOnUnauthorized(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new backend client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForSession returns a shallow copy bound to another session. The HTTP client is shared.
func (c *Client) ForSession(s Session, onUnauthorized func()) *Client {
	clone := *c
	clone.session = s
	clone.onUnauthorized = onUnauthorized
	return &clone
}

// ForTransport returns a shallow copy that sends its requests through hc.
func (c *Client) ForTransport(hc *http.Client) *Client {
	clone := *c
	WithHTTPClient(hc)(&clone)
	return &clone
}

// requireUserID resolves the caller's user id: explicit first, then the session's stored user.
func (c *Client) requireUserID(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if c.session != nil {
		if id := c.session.UserID(); id != "" {
			return id, nil
		}
	}
	return "", domain.ErrMissingUserID
}

// userQuery returns params with the resolved userId added.
func (c *Client) userQuery(explicit string, params url.Values) (url.Values, error) {
	id, err := c.requireUserID(explicit)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	for k, v := range params {
		if k == "userId" {
			continue
		}
		for _, item := range v {
			if item != "" {
				q.Add(k, item)
			}
		}
	}
	q.Set("userId", id)
	return q, nil
}

// request describes one backend call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        interface{}
	rawBody     []byte
	contentType string
}

// response is a successful backend reply.
type response struct {
	status int
	header http.Header
	body   []byte
}

// do executes req, retrying a GET once on transport failure or 5xx.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	var payload []byte
	contentType := req.contentType
	switch {
	case req.rawBody != nil:
		payload = req.rawBody
	case req.body != nil:
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = encoded
		contentType = "application/json"
	}

	attempts := 1
	if req.method == http.MethodGet {
		attempts = 2
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.once(ctx, req, payload, contentType)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			c.logger.Warn("retrying backend request", "method", req.method, "path", req.path, "error", err)
		}
	}
	return nil, lastErr
}

type transportError struct{ err error }

func (e *transportError) Error() string { return "backend request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
func (e *transportError) Is(target error) bool { return target == ErrTransport }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 500
}

func (c *Client) once(ctx context.Context, req request, payload []byte, contentType string) (*response, error) {
	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req, 0, started)
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.observe(req, resp.StatusCode, started)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Info("backend rejected session token", "path", req.path)
		if c.session != nil {
			c.session.ClearToken()
		}
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("backend returned non-success status", "method", req.method, "path", req.path, "status", resp.StatusCode)
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: respBody}, nil
}

func (c *Client) observe(req request, status int, started time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(req.method, routeOf(req.path), status, time.Since(started))
}

// routeOf collapses ids out of a path so metric labels stay bounded.
func routeOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	if len(parts) == 2 && !isStaticSegment(parts[1]) {
		parts[1] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}

func isStaticSegment(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '-' {
			return false
		}
	}
	return s != ""
}

// getJSON fetches path and decodes the normalized payload into target.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	return decode(Unwrap(resp.body), target)
}

// getList fetches path and decodes the normalized array, looking under keys when the payload is an object.
func (c *Client) getList(ctx context.Context, path string, query url.Values, target interface{}, keys ...string) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	return decode(UnwrapList(resp.body, keys...), target)
}

// getObject fetches path and decodes the payload, treating a non-object payload as empty.
func (c *Client) getObject(ctx context.Context, path string, query url.Values, target interface{}) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	return decode(UnwrapObject(resp.body), target)
}

// send performs a mutation and decodes the normalized payload when target is non-nil.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, target interface{}) error {
	resp, err := c.do(ctx, request{method: method, path: path, query: query, body: body})
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	return decode(Unwrap(resp.body), target)
}

func decode(raw []byte, target interface{}) error {
	if target == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return nil
}
