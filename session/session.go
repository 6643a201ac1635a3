// Package session provides the SessionStore: the single owner of who is logged in.
//
// A Store holds the current tiqology.Session, writes it through a
// tiqology.SessionStorage on every successful mutation and notifies subscribers.
// Only Login and Logout mutate it; Restore loads the persisted record once at
// startup.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/audit"
	"github.com/tiqology/superapp-go/metrics"
)

// Store implements tiqology.SessionManager.
type Store struct {
	authn   tiqology.Authenticator
	storage tiqology.SessionStorage
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Logger

	// writeMu serializes Login, Logout and Restore.
	writeMu sync.Mutex

	mu      sync.RWMutex
	current tiqology.Session

	subMu  sync.Mutex
	nextID uint64
	subs   map[uint64]func(tiqology.Session)
}

// compile-time check
var _ tiqology.SessionManager = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithAudit sets the audit logger for login, logout and restore events.
func WithAudit(a *audit.Logger) Option {
	return func(s *Store) { s.audit = a }
}

// New creates an unauthenticated Store. Call Restore to load a persisted session.
func New(authn tiqology.Authenticator, storage tiqology.SessionStorage, opts ...Option) *Store {
	s := &Store{
		authn:   authn,
		storage: storage,
		logger:  slog.New(slog.DiscardHandler),
		subs:    make(map[uint64]func(tiqology.Session)),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "session")
	return s
}

// Restore loads the persisted record. A missing record leaves the store
// unauthenticated; a record that does not hold a user and a token is discarded
// and cleared.
func (s *Store) Restore(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec, err := s.storage.Load(ctx)
	if err != nil {
		s.audit.Log(audit.Event{Action: audit.ActionRestore, Result: audit.ResultFailure, Error: err.Error()})
		return fmt.Errorf("session: restore: %w", err)
	}
	if rec == nil {
		return nil
	}

	if !rec.Valid() {
		s.logger.Warn("discarding inconsistent session record",
			"is_authenticated", rec.IsAuthenticated,
			"has_user", rec.User != nil,
			"has_token", rec.Token != "",
		)
		if err := s.storage.Clear(ctx); err != nil {
			s.logger.Warn("clear inconsistent record failed", "error", err)
		}
		s.set(tiqology.Session{})
		return nil
	}

	next := rec.Session()
	s.set(next)
	s.logger.Info("session restored", "user_id", next.User.ID)
	s.audit.Log(audit.Event{
		Action:    audit.ActionRestore,
		Result:    audit.ResultSuccess,
		RequestID: tiqology.RequestIDFromContext(ctx),
		UserID:    string(next.User.ID),
		Email:     next.User.Email,
	})
	return nil
}

// Login authenticates with the backend and, on success, persists and swaps in
// the new session. On any failure the previous session is left untouched.
// The credentials are sent as given; the backend decides what is valid.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := s.login(ctx, email, password)
	if err != nil {
		s.metrics.RecordLogin("failure")
		s.audit.Log(audit.Event{
			Action:    audit.ActionLogin,
			Result:    audit.ResultFailure,
			RequestID: tiqology.RequestIDFromContext(ctx),
			Email:     email,
			Error:     err.Error(),
		})
		s.logger.Info("login failed", "email", email, "kind", tiqology.KindOf(err).String())
		return err
	}

	s.set(next)
	s.metrics.RecordLogin("success")
	s.audit.Log(audit.Event{
		Action:    audit.ActionLogin,
		Result:    audit.ResultSuccess,
		RequestID: tiqology.RequestIDFromContext(ctx),
		UserID:    string(next.User.ID),
		Email:     next.User.Email,
	})
	s.logger.Info("login succeeded", "user_id", next.User.ID, "roles", next.User.Roles)
	return nil
}

func (s *Store) login(ctx context.Context, email, password string) (tiqology.Session, error) {
	res, err := s.authn.Login(ctx, tiqology.Credentials{Email: email, Password: password})
	if err != nil {
		return tiqology.Session{}, err
	}
	if res == nil || res.User == nil || res.Token == "" {
		return tiqology.Session{}, tiqology.NewError(tiqology.KindInvalidResponse, errors.New("session: login response missing user or token"))
	}

	next := tiqology.Session{User: res.User.Clone(), Token: res.Token, IsAuthenticated: true}
	if err := s.storage.Save(ctx, next.Record()); err != nil {
		return tiqology.Session{}, tiqology.NewError(tiqology.KindUnknown, fmt.Errorf("session: persist: %w", err))
	}
	return next, nil
}

// Logout clears the session and removes the persisted record. It always
// succeeds; a storage failure is logged. Calling it twice is harmless.
func (s *Store) Logout(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.Current()
	s.set(tiqology.Session{})

	if err := s.storage.Clear(ctx); err != nil {
		// An empty record restores as logged out.
		s.logger.Warn("clear persisted session failed, overwriting with empty record", "error", err)
		if err := s.storage.Save(ctx, &tiqology.PersistedSession{}); err != nil {
			s.logger.Error("persisted session survives logout", "error", err)
		}
	}

	s.metrics.RecordLogout()
	ev := audit.Event{
		Action:    audit.ActionLogout,
		Result:    audit.ResultSuccess,
		RequestID: tiqology.RequestIDFromContext(ctx),
	}
	if prev.User != nil {
		ev.UserID = string(prev.User.ID)
		ev.Email = prev.User.Email
	}
	s.audit.Log(ev)
	s.logger.Info("logged out", "user_id", ev.UserID)
}

// Current returns a copy of the current session.
func (s *Store) Current() tiqology.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// IsAuthenticated reports whether a user is logged in.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.IsAuthenticated
}

// HasRole reports whether the current user carries role.
func (s *Store) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.HasRole(role)
}

// IsSecurity reports whether the current user carries the security role.
func (s *Store) IsSecurity() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.IsSecurity()
}

// IsEnterpriseAdmin reports whether the current user is an owner or admin.
func (s *Store) IsEnterpriseAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.IsEnterpriseAdmin()
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token, nil
}

// Subscribe registers fn to receive a copy of every new session, in mutation
// order. fn runs on the mutating goroutine and must not call Login or Logout.
func (s *Store) Subscribe(fn func(tiqology.Session)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// set swaps the session and notifies subscribers. Callers hold writeMu.
func (s *Store) set(next tiqology.Session) {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	s.metrics.SetAuthenticated(next.IsAuthenticated)

	s.subMu.Lock()
	fns := make([]func(tiqology.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(next.Clone())
	}
}
