package fake

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/token"
)

const (
	keyUser    = "fake_user"
	fakeIssuer = "tiqology-fake"
)

func (b *Backend) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), b.count)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", b.login)
	v1.POST("/auth/register", b.register)

	authed := v1.Group("", b.requireToken)
	authed.GET("/organizations", b.listOrganizations)
	authed.GET("/organizations/:id", b.getOrganization)
	authed.GET("/dashboard/snapshot", b.dashboardSnapshot)

	r.POST("/api/ai/chat", b.requireToken, b.chat)

	r.POST(GhostPath, b.requireAPIKey, b.evaluate)
	r.GET(GhostPath, b.ghostHealth)

	return r
}

func (b *Backend) count(c *gin.Context) {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	b.s.mu.Lock()
	b.s.hits[c.Request.Method+" "+path]++
	b.s.mu.Unlock()
	c.Next()
}

// --- auth ---

func (b *Backend) login(c *gin.Context) {
	var creds tiqology.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
		return
	}

	b.s.mu.RLock()
	a, ok := b.s.users[creds.Email]
	b.s.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(a.hash, []byte(creds.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	b.respondWithToken(c, http.StatusOK, a.user)
}

func (b *Backend) register(c *gin.Context) {
	var reg tiqology.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
		return
	}
	if reg.Email == "" || reg.Password == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Email and password are required"})
		return
	}

	b.s.mu.Lock()
	if _, exists := b.s.users[reg.Email]; exists {
		b.s.mu.Unlock()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Email has already been taken"})
		return
	}
	a := b.s.addUser(reg.Email, reg.Password, reg.Name, nil)
	b.s.mu.Unlock()

	b.respondWithToken(c, http.StatusCreated, a.user)
}

func (b *Backend) respondWithToken(c *gin.Context, status int, u tiqology.User) {
	tok, err := token.Issue(token.Claims{
		Subject:   string(u.ID),
		Email:     u.Email,
		Issuer:    fakeIssuer,
		Roles:     u.Roles,
		ExpiresAt: time.Now().Add(b.s.tokenTTL),
	}, b.s.secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(status, gin.H{"user": u, "token": tok})
}

func (b *Backend) requireToken(c *gin.Context) {
	raw := extractBearerToken(c.Request)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	claims, err := token.Verify(raw, b.s.secret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.Set(keyUser, claims.Subject)
	c.Next()
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// --- organizations and dashboard ---

func (b *Backend) listOrganizations(c *gin.Context) {
	b.s.mu.RLock()
	orgs := append([]tiqology.Organization{}, b.s.orgs...)
	b.s.mu.RUnlock()
	c.JSON(http.StatusOK, tiqology.OrganizationsResponse{Organizations: orgs})
}

func (b *Backend) getOrganization(c *gin.Context) {
	b.s.mu.RLock()
	org, ok := b.s.findOrg(c.Param("id"))
	b.s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}
	c.JSON(http.StatusOK, org)
}

func (b *Backend) dashboardSnapshot(c *gin.Context) {
	if err := sleep(c, b.s.snapshotDelay); err != nil {
		return
	}
	b.s.mu.RLock()
	snap := b.s.currentSnapshot()
	b.s.mu.RUnlock()
	c.JSON(http.StatusOK, snap)
}

// --- AI gateway ---

func (b *Backend) chat(c *gin.Context) {
	start := time.Now()
	var req tiqology.AIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body", "code": "bad_request"})
		return
	}
	if req.Role == "" || req.Task == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "role and task are required", "code": "invalid_request"})
		return
	}

	model := req.Model
	if model == "" {
		model = "fake-model"
	}
	c.JSON(http.StatusOK, tiqology.AIResponse{
		Message: fmt.Sprintf("[%s] %s", req.Role, req.Task),
		Role:    req.Role,
		Metadata: tiqology.AIMetadata{
			Model:            model,
			TokensUsed:       len(strings.Fields(req.Task)),
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
		Suggestions: []string{"Tell me more"},
	})
}

// --- Ghost gateway ---

func (b *Backend) requireAPIKey(c *gin.Context) {
	if b.s.ghostAPIKey != "" && c.GetHeader("x-api-key") != b.s.ghostAPIKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Invalid API key"})
		return
	}
	c.Next()
}

func (b *Backend) evaluate(c *gin.Context) {
	var req tiqology.EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request", "message": "prompt is required"})
		return
	}
	if err := sleep(c, b.s.ghostDelay); err != nil {
		return
	}

	c.JSON(http.StatusOK, tiqology.Evaluation{
		Score:     float64(50 + len(req.Prompt)%51),
		Feedback:  "Evaluated by the fake Ghost gateway",
		Result:    "Echo: " + req.Prompt,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Model:     req.Model,
	})
}

func (b *Backend) ghostHealth(c *gin.Context) {
	c.JSON(http.StatusOK, tiqology.GhostHealth{Status: "ok", Service: "ghost-mode", Version: "fake"})
}

// sleep waits d or until the client goes away.
func sleep(c *gin.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-c.Request.Context().Done():
		c.Abort()
		return errors.New("fake: client gone")
	}
}
