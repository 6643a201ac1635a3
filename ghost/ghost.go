// Package ghost is the client for the Ghost evaluation gateway: a stateless
// service that scores a prompt from 0 to 100 and returns short feedback.
//
// The gateway is separate from the main API. It is addressed by its own URL,
// authenticated with an API key header rather than the session token, and every
// evaluation is bounded by a fixed deadline.
package ghost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/gateway"
	"github.com/tiqology/superapp-go/metrics"
)

const (
	// DefaultURL is used when no gateway URL is configured.
	DefaultURL = "http://localhost:3000/api/ghost"

	// APIKeyHeader carries the gateway API key.
	APIKeyHeader = "x-api-key"

	// MsgNetwork is reported when the gateway cannot be reached.
	MsgNetwork = "Network error: Unable to connect to Ghost Mode API"
)

var errDeadline = errors.New("ghost: evaluation deadline exceeded")

// Client implements tiqology.Evaluator.
type Client struct {
	gw      *gateway.Gateway
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	apiKey     string
	httpClient *http.Client
}

// compile-time check
var _ tiqology.Evaluator = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets the key sent in the x-api-key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout sets the per-evaluation deadline. Default: tiqology.DefaultGhostTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates an evaluation client for the gateway at url ("" means DefaultURL).
func New(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		timeout: tiqology.DefaultGhostTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	if c.timeout <= 0 {
		c.timeout = tiqology.DefaultGhostTimeout
	}
	c.logger = c.logger.With("component", "ghost")

	gwOpts := []gateway.Option{
		gateway.WithName("ghost"),
		gateway.WithMessage(tiqology.KindNetwork, MsgNetwork),
		gateway.WithLogger(c.logger),
		gateway.WithMetrics(c.metrics),
	}
	if c.apiKey != "" {
		gwOpts = append(gwOpts, gateway.WithHeader(APIKeyHeader, c.apiKey))
	}
	if c.httpClient != nil {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(c.httpClient))
	}
	c.gw = gateway.New(url, gwOpts...)
	return c
}

// Timeout returns the per-evaluation deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Evaluate scores a prompt. The call is abandoned once the deadline passes and
// reported as a Timeout error with its own message. An empty model selects
// tiqology.ModelChat.
func (c *Client) Evaluate(ctx context.Context, req tiqology.EvaluationRequest) (*tiqology.Evaluation, error) {
	if req.Model == "" {
		req.Model = tiqology.ModelChat
	}
	if err := gateway.ValidateInput(req); err != nil {
		return nil, err
	}

	c.logger.Debug("evaluation request",
		"prompt_len", len(req.Prompt),
		"has_context", req.Context != nil,
		"model", req.Model,
	)

	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, errDeadline)
	defer cancel()

	res, err := gateway.Request[tiqology.Evaluation](ctx, c.gw, http.MethodPost, "", req, false)
	if err != nil {
		if errors.Is(context.Cause(ctx), errDeadline) {
			c.metrics.RecordEvaluationTimeout()
			c.logger.Warn("evaluation timed out", "timeout", c.timeout)
			return nil, &tiqology.Error{
				Kind:    tiqology.KindTimeout,
				Message: TimeoutMessage(c.timeout),
				Err:     fmt.Errorf("ghost: %w", err),
			}
		}
		return nil, err
	}
	if err := gateway.Validate(res); err != nil {
		return nil, err
	}

	c.logger.Debug("evaluation response", "score", res.Score, "model", res.Model)
	return res, nil
}

// BatchEvaluate evaluates each request in order, stopping at the first failure.
// The results gathered before the failure are returned with the error.
func (c *Client) BatchEvaluate(ctx context.Context, reqs []tiqology.EvaluationRequest) ([]*tiqology.Evaluation, error) {
	c.logger.Debug("batch evaluation", "count", len(reqs))

	results := make([]*tiqology.Evaluation, 0, len(reqs))
	for _, req := range reqs {
		res, err := c.Evaluate(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Health reports the gateway status.
func (c *Client) Health(ctx context.Context) (*tiqology.GhostHealth, error) {
	return gateway.Request[tiqology.GhostHealth](ctx, c.gw, http.MethodGet, "", nil, false)
}

// TimeoutMessage is the user-facing message for an evaluation that ran past d.
func TimeoutMessage(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("Evaluation timeout: Request took longer than %d seconds", int(d/time.Second))
	}
	return fmt.Sprintf("Evaluation timeout: Request took longer than %s", d)
}
