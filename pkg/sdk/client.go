// Package sdk is the client-side library for the intern-management API.
// Client is the single outbound channel to the backend; Manager owns the
// authenticated session built on top of it.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultTimeout bounds every request unless overridden.
	DefaultTimeout = 30 * time.Second
	// DefaultHealthTimeout bounds HealthCheck.
	DefaultHealthTimeout = 5 * time.Second

	// HeaderRequestID carries a per-request correlation id.
	HeaderRequestID = "X-Request-ID"

	tracerName = "github.com/celerix-dev/intern-connect/pkg/sdk"
)

// Endpoints the client treats specially.
const (
	PathLogin         = "/api/auth/login"
	PathRegister      = "/api/auth/register"
	PathLogout        = "/api/auth/logout"
	PathMe            = "/api/auth/me"
	PathPendingStatus = "/api/auth/pending-status"
	PathHealth        = "/api/health"
)

// publicPaths never carry the bearer token.
var publicPaths = map[string]bool{
	PathLogin:         true,
	PathRegister:      true,
	PathPendingStatus: true,
	PathHealth:        true,
}

// Request describes one call to the backend.
type Request struct {
	Method  string // defaults to GET
	Path    string // absolute path, e.g. /api/intern/tasks
	Query   url.Values
	Body    any // JSON encoded when non-nil
	Header  http.Header
	Timeout time.Duration // overrides the client default when > 0
}

// HealthResult is the outcome of a reachability probe.
type HealthResult struct {
	Healthy bool   `json:"healthy"`
	Status  int    `json:"status,omitempty"` // 0 when no response arrived
	Error   string `json:"error,omitempty"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL       string
	http          *http.Client
	store         Store
	logger        *zap.Logger
	timeout       time.Duration
	healthTimeout time.Duration
	tracer        trace.Tracer

	events  broadcaster[Event]
	clearMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHealthTimeout sets the HealthCheck timeout.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.healthTimeout = d
		}
	}
}

// WithHTTPClient replaces the transport. A cookie jar is added when the given client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		if cp.Jar == nil {
			cp.Jar = c.http.Jar
		}
		c.http = &cp
	}
}

// WithTracerProvider sets the provider spans are created from. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewClient returns a client for the API at baseURL that reads and clears
// credentials in store.
func NewClient(baseURL string, store Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	if store == nil {
		return nil, errors.New("store is required")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Jar: jar},
		store:         store,
		logger:        zap.NewNop(),
		timeout:       DefaultTimeout,
		healthTimeout: DefaultHealthTimeout,
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the resolved API origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Subscribe registers fn for session events. The returned func unsubscribes.
func (c *Client) Subscribe(fn func(Event)) func() {
	return c.events.subscribe(fn)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Execute performs req and returns the response, or an *APIError for any
// non-2xx status or transport failure. A 401 from a non-public endpoint
// clears the persisted session before the error is returned.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", target),
		))
	defer span.End()

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set(HeaderRequestID, requestID)
	c.authorize(httpReq, req.Path)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	log := c.logger.With(
		zap.String("method", method),
		zap.String("url", target),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.fail(span, log, transportError(method, req.Path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(span, log, transportError(method, req.Path, err))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fail(span, log, statusError(method, req.Path, resp.StatusCode, data))
	}

	log.Debug("api response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Response{Status: resp.StatusCode, Header: resp.Header, Data: data}, nil
}

// authorize attaches the persisted bearer token. A read failure is logged and
// the request goes out without the header.
func (c *Client) authorize(req *http.Request, path string) {
	if isPublic(path) {
		return
	}
	token, err := c.store.Get(KeyAuthToken)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			c.logger.Warn("could not read auth token", zap.Error(err))
		}
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// fail logs a classified error, runs the 401 side effect and returns the error unchanged.
func (c *Client) fail(span trace.Span, log *zap.Logger, apiErr *APIError) error {
	span.RecordError(apiErr)
	span.SetStatus(codes.Error, string(apiErr.Kind))

	fields := []zap.Field{
		zap.Int("status", apiErr.Status),
		zap.String("kind", string(apiErr.Kind)),
		zap.String("message", apiErr.Message),
	}
	switch apiErr.Kind {
	case KindUnauthorized:
		log.Warn("unauthorized", fields...)
		c.invalidate(apiErr.Path)
	case KindForbidden:
		log.Warn("access forbidden", fields...)
	case KindNotFound:
		log.Warn("resource not found", fields...)
	case KindRateLimited:
		log.Warn("too many requests", fields...)
	case KindServer:
		log.Error("server error", fields...)
	case KindNetwork, KindTimeout:
		log.Error("network error", fields...)
	default:
		log.Warn("request failed", fields...)
	}
	return apiErr
}

// invalidate clears the persisted session and notifies subscribers.
func (c *Client) invalidate(path string) {
	if err := c.ClearSession(); err != nil {
		c.logger.Error("failed to clear session", zap.Error(err))
	}
	c.events.publish(Event{Type: EventSessionInvalidated, Path: path})
}

// ClearSession removes the persisted user, token and authenticated flag.
// Clearing an already empty session is a no-op.
func (c *Client) ClearSession() error {
	c.clearMu.Lock()
	defer c.clearMu.Unlock()
	if err := c.store.Delete(sessionKeys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// SetToken persists token for subsequent requests. An empty token is ignored.
func (c *Client) SetToken(token string) error {
	if token == "" {
		return nil
	}
	if err := c.store.Set(KeyAuthToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	c.events.publish(Event{Type: EventTokenSet})
	return nil
}

// ClearToken removes the persisted token.
func (c *Client) ClearToken() error {
	if err := c.store.Delete(KeyAuthToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	c.events.publish(Event{Type: EventTokenCleared})
	return nil
}

// HealthCheck probes /api/health. It never returns an error; failures are
// reported in the result.
func (c *Client) HealthCheck(ctx context.Context) HealthResult {
	resp, err := c.Execute(ctx, Request{Path: PathHealth, Timeout: c.healthTimeout})
	if err != nil {
		return HealthResult{Healthy: false, Status: StatusOf(err), Error: err.Error()}
	}
	return HealthResult{Healthy: true, Status: resp.Status}
}

func isPublic(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return publicPaths[strings.TrimRight(path, "/")]
}

func transportError(method, path string, err error) *APIError {
	kind := KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &APIError{
		Kind:    kind,
		Method:  method,
		Path:    path,
		Message: err.Error(),
		Err:     err,
	}
}

func statusError(method, path string, status int, data []byte) *APIError {
	apiErr := &APIError{
		Kind:   classify(status),
		Status: status,
		Method: method,
		Path:   path,
	}
	var body map[string]any
	if json.Unmarshal(data, &body) == nil {
		apiErr.Body = body
		apiErr.Message = errorMessage(body)
		apiErr.Code, _ = body["status"].(string)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
