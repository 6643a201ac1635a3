// Package gateway provides the request/response transport shared by every
// SuperApp data client.
//
// A Gateway joins a path to its base URL, attaches JSON and bearer headers, issues
// the call once and turns the outcome into either a decoded payload or a
// *tiqology.Error carrying a short user-facing message. Raw response bodies are
// logged for diagnostics and never returned to callers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/metrics"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Gateway issues JSON requests against one base URL.
type Gateway struct {
	name       string
	baseURL    string
	httpClient *http.Client
	tokens     tiqology.TokenSource
	headers    http.Header
	messages   map[tiqology.ErrorKind]string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts tiqology.TokenSource) Option {
	return func(g *Gateway) { g.tokens = ts }
}

// WithHeader adds a static header sent with every request.
func WithHeader(key, value string) Option {
	return func(g *Gateway) { g.headers.Set(key, value) }
}

// WithMessage replaces the fixed user-facing message for kind on this gateway.
// A message taken from a structured error body still wins.
func WithMessage(kind tiqology.ErrorKind, msg string) Option {
	return func(g *Gateway) { g.messages[kind] = msg }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithName labels the gateway in logs and metrics. Default: "api".
func WithName(name string) Option {
	return func(g *Gateway) { g.name = name }
}

// New creates a gateway for baseURL.
// The default HTTP client has no timeout: ordinary requests are fire-once and
// bounded only by the caller's context.
func New(baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		name:       "api",
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		headers:    make(http.Header),
		messages:   make(map[tiqology.ErrorKind]string),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(g)
	}
	g.logger = g.logger.With("component", "gateway", "gateway", g.name)
	return g
}

// BaseURL returns the base URL requests are resolved against.
func (g *Gateway) BaseURL() string { return g.baseURL }

// Get issues an authenticated GET and decodes the response into out.
func (g *Gateway) Get(ctx context.Context, path string, out any) error {
	return g.Do(ctx, http.MethodGet, path, nil, true, out)
}

// Post issues an authenticated POST with a JSON body and decodes the response into out.
func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPost, path, body, true, out)
}

// Request is the typed form of Do.
func Request[T any](ctx context.Context, g *Gateway, method, path string, body any, requiresAuth bool) (*T, error) {
	var out T
	if err := g.Do(ctx, method, path, body, requiresAuth, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Do issues one request. When requiresAuth is true and the token source yields a
// token, it is sent as a bearer credential. On a 2xx response the JSON body is
// decoded into out (skipped when out is nil). Every failure is a *tiqology.Error.
func (g *Gateway) Do(ctx context.Context, method, path string, body any, requiresAuth bool, out any) error {
	start := time.Now()
	err := g.do(ctx, method, path, body, requiresAuth, out)

	outcome := "ok"
	if err != nil {
		outcome = tiqology.KindOf(err).String()
	}
	g.metrics.ObserveRequest(g.name, method, outcome, time.Since(start))
	return err
}

func (g *Gateway) do(ctx context.Context, method, path string, body any, requiresAuth bool, out any) error {
	url := g.resolve(path)

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			// A body the caller cannot encode is a programming error, not a backend response.
			return &tiqology.Error{Kind: tiqology.KindUnknown, Message: tiqology.MsgGeneric, Err: fmt.Errorf("gateway: marshal request: %w", err)}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return &tiqology.Error{Kind: tiqology.KindUnknown, Message: tiqology.MsgGeneric, Err: fmt.Errorf("gateway: create request: %w", err)}
	}

	for k, vs := range g.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	requestID := tiqology.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	if requiresAuth && g.tokens != nil {
		token, err := g.tokens.Token(ctx)
		if err != nil {
			g.logger.Warn("token source failed", "error", err)
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	g.logger.Debug("request", "method", method, "url", url, "request_id", requestID)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return g.transportError(method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.responseError(method, url, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return g.newError(tiqology.KindTimeout, err)
		}
		g.logger.Warn("undecodable response", "method", method, "url", url, "status", resp.StatusCode, "error", err)
		return g.newError(tiqology.KindInvalidResponse, fmt.Errorf("gateway: decode response: %w", err))
	}
	return nil
}

func (g *Gateway) resolve(path string) string {
	if path == "" {
		return g.baseURL
	}
	return g.baseURL + "/" + strings.TrimLeft(path, "/")
}

// transportError classifies a failure where no response was received.
func (g *Gateway) transportError(method, url string, err error) error {
	g.logger.Warn("transport failure", "method", method, "url", url, "error", err)
	if errors.Is(err, context.DeadlineExceeded) {
		return g.newError(tiqology.KindTimeout, err)
	}
	return g.newError(tiqology.KindNetwork, err)
}

func (g *Gateway) newError(kind tiqology.ErrorKind, cause error) *tiqology.Error {
	return &tiqology.Error{Kind: kind, Message: g.message(kind), Err: cause}
}

// message returns the gateway's fixed message for kind.
func (g *Gateway) message(kind tiqology.ErrorKind) string {
	if msg, ok := g.messages[kind]; ok {
		return msg
	}
	return tiqology.DefaultMessage(kind)
}

// responseError normalizes a non-2xx response into a user-facing error.
func (g *Gateway) responseError(method, url string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	kind := tiqology.KindForStatus(resp.StatusCode)

	g.logger.Warn("request failed",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"body", string(raw),
	)

	msg := structuredMessage(raw)
	if msg == "" {
		msg = g.message(kind)
	}
	return &tiqology.Error{
		Kind:    kind,
		Status:  resp.StatusCode,
		Message: msg,
		Err:     fmt.Errorf("gateway: %s %s returned %d", method, url, resp.StatusCode),
	}
}

// structuredMessage extracts a string "error" or "message" field from a JSON body.
func structuredMessage(raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		if s, ok := body[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a decoded payload against its validate tags. A payload that
// fails validation is reported as an InvalidResponse error.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return tiqology.NewError(tiqology.KindInvalidResponse, fmt.Errorf("gateway: invalid payload: %w", err))
	}
	return nil
}

// ValidateInput checks a caller-supplied payload before it is sent. A payload
// that fails is reported as a Validation error.
func ValidateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return tiqology.NewError(tiqology.KindValidation, fmt.Errorf("gateway: invalid input: %w", err))
	}
	return nil
}
