// Package ai is the client for the SuperApp AI gateway. Every agent call goes
// through the backend's chat endpoint; the client never talks to a model
// provider directly.
package ai

import (
	"context"
	"iter"
	"log/slog"
	"net/http"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/gateway"
)

// ChatPath is the AI gateway endpoint, relative to the API base URL.
const ChatPath = "/api/ai/chat"

// MsgNetwork is reported when the AI gateway cannot be reached.
const MsgNetwork = "Network error: Unable to connect to AI service. Please check your connection."

// Client implements tiqology.Assistant.
type Client struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// compile-time check
var _ tiqology.Assistant = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates an AI client over gw.
func New(gw *gateway.Gateway, opts ...Option) *Client {
	c := &Client{
		gw:     gw,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("component", "ai")
	return c
}

// GatewayOptions returns the gateway options the AI gateway expects.
func GatewayOptions() []gateway.Option {
	return []gateway.Option{
		gateway.WithName("ai"),
		gateway.WithMessage(tiqology.KindNetwork, MsgNetwork),
	}
}

// Send issues one agent request.
func (c *Client) Send(ctx context.Context, req tiqology.AIRequest) (*tiqology.AIResponse, error) {
	c.logger.Debug("ai request",
		"role", req.Role,
		"task_preview", preview(req.Task, 100),
		"has_context", req.Context != nil,
		"has_history", len(req.History) > 0,
		"model", req.Model,
	)

	res, err := gateway.Request[tiqology.AIResponse](ctx, c.gw, http.MethodPost, ChatPath, req, true)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ai response",
		"role", res.Role,
		"model", res.Metadata.Model,
		"tokens_used", res.Metadata.TokensUsed,
		"processing_ms", res.Metadata.ProcessingTimeMs,
	)
	return res, nil
}

// Ask sends task to a single agent.
func (c *Client) Ask(ctx context.Context, role tiqology.AgentRole, task string, taskCtx map[string]any) (*tiqology.AIResponse, error) {
	return c.Send(ctx, tiqology.AIRequest{Role: role, Task: task, Context: taskCtx})
}

// Orchestrate sends the same task to each agent in order. It stops at the first
// failure and returns the responses collected so far with the error.
func (c *Client) Orchestrate(ctx context.Context, task string, roles []tiqology.AgentRole, taskCtx map[string]any) ([]*tiqology.AIResponse, error) {
	c.logger.Debug("orchestrating agents", "roles", roles)

	responses := make([]*tiqology.AIResponse, 0, len(roles))
	for _, role := range roles {
		res, err := c.Ask(ctx, role, task, taskCtx)
		if err != nil {
			return responses, err
		}
		responses = append(responses, res)
	}
	return responses, nil
}

// Stream yields the response to req as it arrives. The backend has no
// streaming transport yet, so the whole response is yielded once.
func (c *Client) Stream(ctx context.Context, req tiqology.AIRequest) iter.Seq2[*tiqology.AIResponse, error] {
	return func(yield func(*tiqology.AIResponse, error) bool) {
		res, err := c.Send(ctx, req)
		yield(res, err)
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
