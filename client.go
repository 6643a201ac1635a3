// Package tiqology provides a Go SDK for the TiQology SuperApp backend.
//
// The SDK defines interfaces for session management, organizations, the dashboard
// snapshot, the AI gateway and the evaluation gateway. Concrete implementations are
// injected via Option functions; see internal/app for the default HTTP wiring and
// fake/ for an in-memory backend.
//
// Example usage:
//
//	client, err := tiqology.NewClient(
//	    tiqology.Config{APIBaseURL: "https://api.example.com"},
//	    tiqology.WithSessionManager(store),
//	    tiqology.WithOrganizationService(orgs),
//	)
package tiqology

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Client is the main entry point for SuperApp operations.
// Service implementations are injected via Option functions.
type Client struct {
	config    Config
	logger    *slog.Logger
	authn     Authenticator
	sessions  SessionManager
	orgs      OrganizationService
	dashboard DashboardService
	assistant Assistant
	evaluator Evaluator
	closers   []io.Closer
}

// Config holds connection and behavior configuration.
type Config struct {
	// APIBaseURL is the backend base URL, e.g. "https://api.example.com".
	APIBaseURL string

	// GhostURL is the evaluation gateway endpoint.
	GhostURL string

	// GhostAPIKey is sent as x-api-key to the evaluation gateway when set.
	GhostAPIKey string

	// GhostTimeout is the hard deadline of one evaluation call. Default: 30 seconds.
	GhostTimeout time.Duration
}

// DefaultGhostTimeout bounds a single evaluation call.
const DefaultGhostTimeout = 30 * time.Second

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithAuthenticator sets the credential backend used for registration.
func WithAuthenticator(a Authenticator) Option {
	return func(c *Client) { c.authn = a }
}

// WithSessionManager sets the session store.
func WithSessionManager(s SessionManager) Option {
	return func(c *Client) { c.sessions = s }
}

// WithOrganizationService sets the organizations implementation.
func WithOrganizationService(o OrganizationService) Option {
	return func(c *Client) { c.orgs = o }
}

// WithDashboardService sets the dashboard implementation.
func WithDashboardService(d DashboardService) Option {
	return func(c *Client) { c.dashboard = d }
}

// WithAssistant sets the AI gateway implementation.
func WithAssistant(a Assistant) Option {
	return func(c *Client) { c.assistant = a }
}

// WithEvaluator sets the evaluation gateway implementation.
func WithEvaluator(e Evaluator) Option {
	return func(c *Client) { c.evaluator = e }
}

// WithCloser registers a resource released by Close, such as a storage connection.
func WithCloser(cl io.Closer) Option {
	return func(c *Client) { c.closers = append(c.closers, cl) }
}

// NewClient creates a new client with the given configuration and options.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("tiqology: APIBaseURL is required")
	}
	if cfg.GhostTimeout == 0 {
		cfg.GhostTimeout = DefaultGhostTimeout
	}

	c := &Client{config: cfg, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Authenticator returns the credential backend, or nil if not configured.
func (c *Client) Authenticator() Authenticator { return c.authn }

// Sessions returns the session manager, or nil if not configured.
func (c *Client) Sessions() SessionManager { return c.sessions }

// Organizations returns the organization service, or nil if not configured.
func (c *Client) Organizations() OrganizationService { return c.orgs }

// Dashboard returns the dashboard service, or nil if not configured.
func (c *Client) Dashboard() DashboardService { return c.dashboard }

// Assistant returns the AI gateway, or nil if not configured.
func (c *Client) Assistant() Assistant { return c.assistant }

// Evaluator returns the evaluation gateway, or nil if not configured.
func (c *Client) Evaluator() Evaluator { return c.evaluator }

// Close releases all resources held by the client.
// Registered closers and any injected service that implements io.Closer are closed.
func (c *Client) Close() error {
	closers := []any{c.sessions, c.orgs, c.dashboard, c.assistant, c.evaluator}
	var firstErr error
	for _, svc := range closers {
		if cl, ok := svc.(io.Closer); ok && cl != nil {
			if err := cl.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
