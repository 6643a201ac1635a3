package ginmw_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/guard"
	"github.com/tiqology/superapp-go/middleware/ginmw"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// staticManager serves a fixed session.
type staticManager struct {
	tiqology.SessionManager
	s tiqology.Session
}

func (m staticManager) Current() tiqology.Session { return m.s }

func withRoles(roles ...string) staticManager {
	return staticManager{s: tiqology.Session{
		User:            &tiqology.User{ID: "u1", Roles: roles},
		Token:           "tok",
		IsAuthenticated: true,
	}}
}

func router(m tiqology.SessionManager) *gin.Engine {
	r := gin.New()
	r.Use(ginmw.RequestID(), ginmw.Session(m))

	ok := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": ginmw.GetUserID(c), "request_id": ginmw.GetRequestID(c)})
	}
	authed := r.Group("/api", ginmw.RequireAuth(ginmw.WithExcludedPaths("/api/public")))
	authed.GET("/public", ok)
	authed.GET("/dashboard", ok)
	authed.GET("/trustshield", ginmw.RequireArea(guard.AreaTrustShield), ok)
	authed.GET("/enterprise", ginmw.RequireAnyRole(tiqology.RoleOwner, tiqology.RoleAdmin), ok)
	r.GET("/ctx", func(c *gin.Context) {
		s := tiqology.SessionFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"authenticated": s.IsAuthenticated, "request_id": tiqology.RequestIDFromContext(c.Request.Context())})
	})
	return r
}

func do(t *testing.T, h http.Handler, path string, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRequireAuth(t *testing.T) {
	w, body := do(t, router(staticManager{}), "/api/dashboard", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if body["redirect"] != guard.LoginPath {
		t.Errorf("redirect = %v, want %q", body["redirect"], guard.LoginPath)
	}

	w, body = do(t, router(withRoles("user")), "/api/dashboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body["user"] != "u1" {
		t.Errorf("user = %v, want u1", body["user"])
	}
}

func TestRequireAuth_ExcludedPath(t *testing.T) {
	w, _ := do(t, router(staticManager{}), "/api/public", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireArea(t *testing.T) {
	tests := []struct {
		name string
		m    staticManager
		path string
		code int
	}{
		{"security on trustshield", withRoles("user", "security"), "/api/trustshield", http.StatusOK},
		{"user on trustshield", withRoles("user"), "/api/trustshield", http.StatusForbidden},
		{"security on enterprise", withRoles("security"), "/api/enterprise", http.StatusForbidden},
		{"admin on enterprise", withRoles("admin"), "/api/enterprise", http.StatusOK},
		{"owner on enterprise", withRoles("owner"), "/api/enterprise", http.StatusOK},
		{"logged out on enterprise", staticManager{}, "/api/enterprise", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, router(tt.m), tt.path, nil)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if tt.code == http.StatusForbidden && body["error"] == "" {
				t.Error("forbidden response should carry a message")
			}
		})
	}
}

func TestRequireArea_UnknownAreaPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("RequireArea(unknown) did not panic")
		}
		if msg, _ := r.(string); !strings.Contains(msg, "trustshild") {
			t.Errorf("panic = %v, want it to name the area", r)
		}
	}()
	ginmw.RequireArea("trustshild")
}

func TestRequestID(t *testing.T) {
	w, body := do(t, router(withRoles("user")), "/api/dashboard", map[string]string{ginmw.HeaderRequestID: "req-9"})
	if got := w.Header().Get(ginmw.HeaderRequestID); got != "req-9" {
		t.Errorf("echoed request ID = %q, want %q", got, "req-9")
	}
	if body["request_id"] != "req-9" {
		t.Errorf("request_id = %v, want req-9", body["request_id"])
	}

	w, _ = do(t, router(withRoles("user")), "/api/dashboard", nil)
	if w.Header().Get(ginmw.HeaderRequestID) == "" {
		t.Error("a request ID should be generated")
	}
}

func TestSession_RequestContext(t *testing.T) {
	_, body := do(t, router(withRoles("user")), "/ctx", map[string]string{ginmw.HeaderRequestID: "r1"})
	if body["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", body["authenticated"])
	}
	if body["request_id"] != "r1" {
		t.Errorf("request_id = %v, want r1", body["request_id"])
	}
}
