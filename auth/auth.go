// Package auth provides the Authenticator backed by the SuperApp REST API.
//
// Wire contract: the login body is the flat object {"email", "password"}; the
// response is {"user": {...}, "token": "..."}. No client-side validation of the
// credentials is performed.
package auth

import (
	"context"
	"net/http"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/gateway"
)

// Endpoint paths relative to the API base URL.
const (
	LoginPath    = "/api/v1/auth/login"
	RegisterPath = "/api/v1/auth/register"
)

// Client implements tiqology.Authenticator over a gateway.
type Client struct {
	gw *gateway.Gateway
}

// compile-time check
var _ tiqology.Authenticator = (*Client)(nil)

// New creates an authenticator using gw.
func New(gw *gateway.Gateway) *Client {
	return &Client{gw: gw}
}

// Login exchanges credentials for a user and bearer token.
func (c *Client) Login(ctx context.Context, creds tiqology.Credentials) (*tiqology.AuthResult, error) {
	return c.call(ctx, LoginPath, creds)
}

// Register creates an account and returns the backend's user and token.
func (c *Client) Register(ctx context.Context, reg tiqology.Registration) (*tiqology.AuthResult, error) {
	return c.call(ctx, RegisterPath, reg)
}

func (c *Client) call(ctx context.Context, path string, body any) (*tiqology.AuthResult, error) {
	res, err := gateway.Request[tiqology.AuthResult](ctx, c.gw, http.MethodPost, path, body, false)
	if err != nil {
		return nil, err
	}
	if err := gateway.Validate(res); err != nil {
		return nil, err
	}
	return res, nil
}
