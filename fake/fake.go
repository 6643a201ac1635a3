// Package fake provides an in-memory TiQology backend for testing.
//
// A Backend serves the SuperApp REST API, the AI gateway and the Ghost
// evaluation gateway from one Gin router. Use fake.NewServer in tests to get a
// running backend, and fake.NewClient for a *tiqology.Client wired against it.
package fake

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	tiqology "github.com/tiqology/superapp-go"
)

// Paths served by the backend.
const (
	GhostPath = "/api/ghost"
)

// Option configures the fake backend.
type Option func(*state)

type state struct {
	mu            sync.RWMutex
	users         map[string]*account // email → account
	orgs          []tiqology.Organization
	snapshot      *tiqology.DashboardSnapshot
	secret        []byte
	tokenTTL      time.Duration
	snapshotDelay time.Duration
	ghostDelay    time.Duration
	ghostAPIKey   string
	hits          map[string]int // "METHOD path" → count
}

type account struct {
	user tiqology.User
	hash []byte
}

// WithUser adds a fake user whose password is stored as a bcrypt hash.
func WithUser(email, password, name string, roles ...string) Option {
	return func(s *state) {
		s.addUser(email, password, name, roles)
	}
}

// WithOrganization adds a fake organization.
func WithOrganization(org tiqology.Organization) Option {
	return func(s *state) {
		s.orgs = append(s.orgs, org)
	}
}

// WithSnapshot sets the dashboard snapshot. By default the snapshot is built
// from the first organization.
func WithSnapshot(snap tiqology.DashboardSnapshot) Option {
	return func(s *state) { s.snapshot = &snap }
}

// WithSnapshotDelay delays every snapshot response.
func WithSnapshotDelay(d time.Duration) Option {
	return func(s *state) { s.snapshotDelay = d }
}

// WithGhostDelay delays every evaluation response.
func WithGhostDelay(d time.Duration) Option {
	return func(s *state) { s.ghostDelay = d }
}

// WithGhostAPIKey makes the Ghost gateway require key in the x-api-key header.
func WithGhostAPIKey(key string) Option {
	return func(s *state) { s.ghostAPIKey = key }
}

// WithSigningKey sets the HS256 key used for issued tokens.
func WithSigningKey(key []byte) Option {
	return func(s *state) { s.secret = key }
}

// WithTokenTTL sets the lifetime of issued tokens. Default: 24 hours.
func WithTokenTTL(d time.Duration) Option {
	return func(s *state) { s.tokenTTL = d }
}

// Backend is an in-memory TiQology backend.
type Backend struct {
	s      *state
	router *gin.Engine
}

// New creates a backend.
func New(opts ...Option) *Backend {
	s := &state{
		users:    make(map[string]*account),
		secret:   []byte("fake-signing-key"),
		tokenTTL: 24 * time.Hour,
		hits:     make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}

	b := &Backend{s: s}
	b.router = b.routes()
	return b
}

// NewServer starts a backend on a local HTTP server. Close the server when done.
func NewServer(opts ...Option) (*Backend, *httptest.Server) {
	b := New(opts...)
	return b, httptest.NewServer(b.Handler())
}

// Handler returns the HTTP handler serving every fake endpoint.
func (b *Backend) Handler() http.Handler { return b.router }

// Hits returns how many requests reached method and path (the route pattern,
// e.g. "/api/v1/organizations/:id").
func (b *Backend) Hits(method, path string) int {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	return b.s.hits[method+" "+path]
}

// SigningKey returns the HS256 key used for issued tokens.
func (b *Backend) SigningKey() []byte { return b.s.secret }

// User returns the user registered under email.
func (b *Backend) User(email string) (tiqology.User, bool) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	a, ok := b.s.users[email]
	if !ok {
		return tiqology.User{}, false
	}
	return *a.user.Clone(), true
}

func (s *state) addUser(email, password, name string, roles []string) *account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("fake: hash password: %v", err))
	}
	if len(roles) == 0 {
		roles = []string{tiqology.RoleUser}
	}
	a := &account{
		user: tiqology.User{ID: tiqology.ID(uuid.NewString()), Email: email, Name: name, Roles: append([]string(nil), roles...)},
		hash: hash,
	}
	s.users[email] = a
	return a
}

func (s *state) findOrg(id string) (tiqology.Organization, bool) {
	for _, o := range s.orgs {
		if string(o.ID) == id {
			return o, true
		}
	}
	return tiqology.Organization{}, false
}

func (s *state) currentSnapshot() tiqology.DashboardSnapshot {
	if s.snapshot != nil {
		return *s.snapshot
	}
	snap := tiqology.DashboardSnapshot{
		Posts:  []tiqology.Post{},
		Events: []tiqology.Event{},
		Tasks:  []tiqology.Task{},
	}
	if len(s.orgs) > 0 {
		snap.Organization = s.orgs[0]
		orgID := s.orgs[0].ID
		snap.Posts = append(snap.Posts, tiqology.Post{ID: 1, OrganizationID: orgID, Title: "Welcome", Published: true})
		snap.Events = append(snap.Events, tiqology.Event{ID: 1, OrganizationID: orgID, Title: "Kickoff", Public: true})
		snap.Tasks = append(snap.Tasks, tiqology.Task{ID: 1, OrganizationID: orgID, Title: "Onboard", Status: "open", Priority: "high"})
	}
	return snap
}
