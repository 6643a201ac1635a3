package tiqology

import "context"

// TokenSource supplies the bearer token attached to outgoing requests.
// An empty token with a nil error means "no credential available".
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Authenticator verifies credentials against the backend.
// Implementations: auth/ (HTTP), fake/ (testing).
type Authenticator interface {
	// Login exchanges credentials for a user record and bearer token.
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)

	// Register creates an account. It does not establish a session.
	Register(ctx context.Context, reg Registration) (*AuthResult, error)
}

// SessionStorage persists the session record across process restarts.
// Implementations: storage/ (memory, file), storage/redisstore, storage/sqlitestore.
type SessionStorage interface {
	// Load returns the stored record, or nil when nothing is stored.
	Load(ctx context.Context) (*PersistedSession, error)

	// Save replaces the stored record as a whole.
	Save(ctx context.Context, rec *PersistedSession) error

	// Clear removes the stored record. Clearing an empty storage is not an error.
	Clear(ctx context.Context) error
}

// SessionManager is the single source of truth for who is logged in.
type SessionManager interface {
	TokenSource

	// Login authenticates and, on success, replaces the session and persists it.
	Login(ctx context.Context, email, password string) error

	// Logout clears the session and its persisted record. It always succeeds.
	Logout(ctx context.Context)

	// Current returns a copy of the current session.
	Current() Session

	// HasRole reports whether the current user carries role.
	HasRole(role string) bool

	// IsSecurity reports whether the current user carries the security role.
	IsSecurity() bool

	// IsEnterpriseAdmin reports whether the current user is an owner or admin.
	IsEnterpriseAdmin() bool

	// Subscribe registers fn to receive every new session. The returned
	// function removes the subscription.
	Subscribe(fn func(Session)) (cancel func())
}

// OrganizationService reads organizations.
type OrganizationService interface {
	// List returns every organization visible to the current user.
	List(ctx context.Context) ([]Organization, error)

	// Get returns one organization by ID.
	Get(ctx context.Context, id string) (*Organization, error)
}

// DashboardService reads the dashboard snapshot.
type DashboardService interface {
	Snapshot(ctx context.Context) (*DashboardSnapshot, error)
}

// Assistant talks to the AI gateway.
type Assistant interface {
	Send(ctx context.Context, req AIRequest) (*AIResponse, error)
}

// Evaluator talks to the secondary evaluation gateway.
type Evaluator interface {
	// Evaluate scores a prompt. Each call is bounded by a fixed deadline.
	Evaluate(ctx context.Context, req EvaluationRequest) (*Evaluation, error)

	// Health reports the evaluation service status.
	Health(ctx context.Context) (*GhostHealth, error)
}
