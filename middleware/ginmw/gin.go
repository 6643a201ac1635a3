// Package ginmw provides Gin HTTP middleware that applies session and role
// gating to a local console server.
//
// The middleware reads the session from a tiqology.SessionManager and decides
// through the guard package, so the same rules gate both the CLI and HTTP.
package ginmw

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/guard"
)

// Context keys for storing session data in gin.Context.
const (
	KeySession   = "tiqology_session"
	KeyRequestID = "tiqology_request_id"
)

// HeaderRequestID is read from and echoed on every request.
const HeaderRequestID = "X-Request-ID"

// AuthOption configures RequireAuth behavior.
type AuthOption func(*authConfig)

type authConfig struct {
	excludedPaths map[string]bool
}

// WithExcludedPaths sets paths that skip authentication (e.g. health checks).
func WithExcludedPaths(paths ...string) AuthOption {
	return func(cfg *authConfig) {
		for _, p := range paths {
			cfg.excludedPaths[p] = true
		}
	}
}

// RequestID returns Gin middleware that propagates X-Request-ID, generating
// one when the caller sent none.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(KeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(tiqology.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Session returns Gin middleware that snapshots the current session of m into
// the Gin context and the request context.
func Session(m tiqology.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := m.Current()
		c.Set(KeySession, s)
		c.Request = c.Request.WithContext(tiqology.WithSession(c.Request.Context(), s))
		c.Next()
	}
}

// RequireAuth returns Gin middleware that admits any authenticated session.
// Requires Session middleware to run first.
// Responds with 401 and the login path when no one is logged in.
func RequireAuth(opts ...AuthOption) gin.HandlerFunc {
	cfg := &authConfig{excludedPaths: make(map[string]bool)}
	for _, o := range opts {
		o(cfg)
	}

	return func(c *gin.Context) {
		if cfg.excludedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		apply(c, guard.Evaluate(GetSession(c)))
	}
}

// RequireAnyRole returns Gin middleware that checks if the user has any of the given roles.
// Responds with 401 when logged out and 403 when every role is missing.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apply(c, guard.Evaluate(GetSession(c), roles...))
	}
}

// RequireArea returns Gin middleware that gates a named area such as
// guard.AreaTrustShield. It panics if area is not a gated area, so a typo
// fails at route setup instead of opening the route to every logged-in user.
func RequireArea(area string) gin.HandlerFunc {
	if !guard.Gated(area) {
		panic(fmt.Sprintf("ginmw: unknown area %q", area))
	}
	return RequireAnyRole(guard.RolesFor(area)...)
}

func apply(c *gin.Context, d guard.Decision) {
	switch d.Outcome {
	case guard.Allow:
		c.Next()
	case guard.RequireLogin:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": d.Message, "redirect": guard.LoginPath})
	default:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": d.Message, "required": d.Required})
	}
}

// --- Context helpers ---

// GetSession returns the session stored by Session middleware.
func GetSession(c *gin.Context) tiqology.Session {
	v, _ := c.Get(KeySession)
	s, _ := v.(tiqology.Session)
	return s
}

// GetUserID returns the authenticated user ID from the Gin context.
func GetUserID(c *gin.Context) string {
	s := GetSession(c)
	if s.User == nil {
		return ""
	}
	return string(s.User.ID)
}

// GetRequestID returns the request ID set by RequestID middleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(KeyRequestID)
}
