// Package token reads the claims carried by SuperApp bearer tokens.
//
// The client never holds the backend's signing key, so Inspect decodes claims
// without verifying the signature; the result is for display (who, which
// roles, when it expires) and never for access decisions. Issue and Verify sign
// and check HS256 tokens for holders of a shared secret, such as the fake
// backend.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaque is returned by Inspect for tokens that are not JWTs.
var ErrOpaque = errors.New("token: not a JWT")

// Claims are the identity claims of a bearer token.
type Claims struct {
	Subject   string
	Email     string
	Issuer    string
	Roles     []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Extra     map[string]any
}

// Expired reports whether the token has an expiry that is before now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Inspect decodes the claims of raw without verifying its signature.
func Inspect(raw string) (*Claims, error) {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpaque, err)
	}
	m, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrOpaque
	}
	return mapToClaims(m), nil
}

// Issue signs c with secret using HS256. A zero IssuedAt is set to now.
func Issue(c Claims, secret []byte) (string, error) {
	if c.IssuedAt.IsZero() {
		c.IssuedAt = time.Now()
	}
	m := jwt.MapClaims{}
	for k, v := range c.Extra {
		m[k] = v
	}
	m["sub"] = c.Subject
	m["iat"] = c.IssuedAt.Unix()
	if c.Email != "" {
		m["email"] = c.Email
	}
	if c.Issuer != "" {
		m["iss"] = c.Issuer
	}
	if len(c.Roles) > 0 {
		m["roles"] = c.Roles
	}
	if !c.ExpiresAt.IsZero() {
		m["exp"] = c.ExpiresAt.Unix()
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, m).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return s, nil
}

// Verify checks the HS256 signature and expiry of raw and returns its claims.
func Verify(raw string, secret []byte) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	tok, err := parser.Parse(raw, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	m, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("token: invalid claims")
	}
	return mapToClaims(m), nil
}

// mapToClaims converts jwt.MapClaims to Claims.
func mapToClaims(m jwt.MapClaims) *Claims {
	c := &Claims{
		Extra: make(map[string]any),
	}

	if v, ok := m["sub"].(string); ok {
		c.Subject = v
	}
	if v, ok := m["email"].(string); ok {
		c.Email = v
	}
	if v, ok := m["iss"].(string); ok {
		c.Issuer = v
	}
	if v, ok := m["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(v), 0)
	}
	if v, ok := m["iat"].(float64); ok {
		c.IssuedAt = time.Unix(int64(v), 0)
	}
	if roles, ok := m["roles"].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				c.Roles = append(c.Roles, s)
			}
		}
	}

	// Non-standard claims go to Extra
	standard := map[string]bool{
		"sub": true, "email": true, "iss": true, "exp": true,
		"iat": true, "roles": true, "aud": true, "nbf": true, "jti": true,
	}
	for k, v := range m {
		if !standard[k] {
			c.Extra[k] = v
		}
	}

	return c
}
