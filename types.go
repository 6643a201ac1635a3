package tiqology

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Well-known role names used for feature gating.
const (
	RoleUser     = "user"
	RoleSecurity = "security"
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
)

// ID is an opaque identifier. The backend may send it as a JSON string or a
// number; it is always held and re-encoded as a string.
type ID string

// String returns the identifier as text.
func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts a JSON string or number. null leaves id unchanged.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("tiqology: id must be a string or number, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

// User is the identity record returned by the backend at login time.
type User struct {
	ID    ID       `json:"id" validate:"required"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Clone returns a deep copy of the user, or nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}

// HasRole reports whether the role set contains role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// Session is the client-held record of the current identity and its bearer token.
// IsAuthenticated is true if and only if both User and Token are present.
type Session struct {
	User            *User
	Token           string
	IsAuthenticated bool
}

// HasRole reports whether the session's user carries role.
// Always false for an unauthenticated session.
func (s Session) HasRole(role string) bool {
	if !s.IsAuthenticated {
		return false
	}
	return s.User.HasRole(role)
}

// HasAnyRole reports whether the session's user carries at least one of roles.
func (s Session) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

// IsSecurity reports the security capability.
func (s Session) IsSecurity() bool { return s.HasRole(RoleSecurity) }

// IsEnterpriseAdmin reports the enterprise-admin capability.
func (s Session) IsEnterpriseAdmin() bool { return s.HasRole(RoleOwner) || s.HasRole(RoleAdmin) }

// Clone returns a copy that shares no memory with s.
func (s Session) Clone() Session {
	return Session{User: s.User.Clone(), Token: s.Token, IsAuthenticated: s.IsAuthenticated}
}

// Record returns the persisted projection of the session.
func (s Session) Record() *PersistedSession {
	return &PersistedSession{User: s.User.Clone(), Token: s.Token, IsAuthenticated: s.IsAuthenticated}
}

// PersistedSession is the durable serialization of a Session.
type PersistedSession struct {
	User            *User  `json:"user"`
	Token           string `json:"token"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Valid reports whether the record satisfies the session invariant in its
// authenticated form.
func (p *PersistedSession) Valid() bool {
	return p != nil && p.IsAuthenticated && p.User != nil && p.Token != ""
}

// Session converts the record back into a Session.
func (p *PersistedSession) Session() Session {
	if !p.Valid() {
		return Session{}
	}
	return Session{User: p.User.Clone(), Token: p.Token, IsAuthenticated: true}
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up request body.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// AuthResult is returned by the login and register endpoints.
type AuthResult struct {
	User  *User  `json:"user" validate:"required"`
	Token string `json:"token" validate:"required"`
}

// Organization is a tenant organization as served by the backend.
type Organization struct {
	ID               ID     `json:"id"`
	Name             string `json:"name"`
	OrganizationType string `json:"organization_type"`
	Description      string `json:"description"`
	Website          string `json:"website"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	LogoURL          string `json:"logo_url"`
	RegionKey        string `json:"region_key"`
	Active           bool   `json:"active"`
	Residency        string `json:"residency"`
	Plan             string `json:"plan"`
	MemberCount      int    `json:"memberCount"`
}

// OrganizationsResponse wraps the organizations listing.
type OrganizationsResponse struct {
	Organizations []Organization `json:"organizations"`
}

// Task is a to-do item attached to an organization.
type Task struct {
	ID             int64  `json:"id"`
	OrganizationID ID     `json:"organization_id"`
	UserID         ID     `json:"user_id"`
	CreatedByID    ID     `json:"created_by_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	DueDate        string `json:"due_date"`
	CompletedAt    string `json:"completed_at"`
}

// Event is a scheduled organization event.
type Event struct {
	ID                   int64  `json:"id"`
	OrganizationID       ID     `json:"organization_id"`
	UserID               ID     `json:"user_id"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	StartTime            string `json:"start_time"`
	EndTime              string `json:"end_time"`
	Timezone             string `json:"timezone"`
	LocationName         string `json:"location_name"`
	LocationAddress      string `json:"location_address"`
	EventType            string `json:"event_type"`
	Capacity             int    `json:"capacity"`
	AttendeesCount       int    `json:"attendees_count"`
	Public               bool   `json:"public"`
	RegistrationRequired bool   `json:"registration_required"`
}

// Post is an organization feed entry.
type Post struct {
	ID             int64  `json:"id"`
	OrganizationID ID     `json:"organization_id"`
	UserID         ID     `json:"user_id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	PostType       string `json:"post_type"`
	Published      bool   `json:"published"`
	PublishedAt    string `json:"published_at"`
	ViewsCount     int    `json:"views_count"`
	LikesCount     int    `json:"likes_count"`
	CommentsCount  int    `json:"comments_count"`
}

// DashboardSnapshot is the aggregate served to the dashboard.
type DashboardSnapshot struct {
	Organization Organization `json:"organization"`
	Posts        []Post       `json:"posts"`
	Events       []Event      `json:"events"`
	Tasks        []Task       `json:"tasks"`
}

// Clone returns a copy whose slices share no memory with s, or nil.
func (s *DashboardSnapshot) Clone() *DashboardSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Posts = slices.Clone(s.Posts)
	c.Events = slices.Clone(s.Events)
	c.Tasks = slices.Clone(s.Tasks)
	return &c
}

// AgentRole names an AI agent behind the AI gateway.
type AgentRole string

const (
	AgentOpsBot   AgentRole = "opsbot"   // operational automation
	AgentLeri     AgentRole = "leri"     // financial analysis
	AgentRocket   AgentRole = "rocket"   // deployment
	AgentDevin    AgentRole = "devin"    // engineering
	AgentKiki     AgentRole = "kiki"     // general assistant
	AgentSentinel AgentRole = "sentinel" // security
	AgentOracle   AgentRole = "oracle"   // analytics
	AgentSage     AgentRole = "sage"     // strategy
)

// AgentRoles lists every known agent.
var AgentRoles = []AgentRole{
	AgentOpsBot, AgentLeri, AgentRocket, AgentDevin,
	AgentKiki, AgentSentinel, AgentOracle, AgentSage,
}

// ChatMessage is one turn of a multi-turn conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// AIRequest is the AI gateway request payload.
type AIRequest struct {
	Role        AgentRole      `json:"role"`
	Task        string         `json:"task"`
	Context     map[string]any `json:"context,omitempty"`
	History     []ChatMessage  `json:"history,omitempty"`
	Model       string         `json:"model,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int            `json:"maxTokens,omitempty"`
}

// AIMetadata describes how a response was produced.
type AIMetadata struct {
	Model            string   `json:"model"`
	TokensUsed       int      `json:"tokensUsed,omitempty"`
	Timestamp        string   `json:"timestamp"`
	ProcessingTimeMs int64    `json:"processingTimeMs,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
}

// AIAction is a follow-up action suggested by an agent.
type AIAction struct {
	Label      string         `json:"label"`
	ActionID   string         `json:"actionId"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// AIResponse is the AI gateway response payload.
type AIResponse struct {
	Message     string         `json:"message"`
	Role        AgentRole      `json:"role"`
	Metadata    AIMetadata     `json:"metadata"`
	Data        map[string]any `json:"data,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Actions     []AIAction     `json:"actions,omitempty"`
}

// Evaluation models accepted by the evaluation gateway.
const (
	ModelChat          = "chat-model"
	ModelChatReasoning = "chat-model-reasoning"
)

// EvaluationRequest is the evaluation gateway request payload.
type EvaluationRequest struct {
	Prompt  string         `json:"prompt" validate:"required"`
	Context map[string]any `json:"context,omitempty"`
	Model   string         `json:"model" validate:"omitempty,oneof=chat-model chat-model-reasoning"`
}

// Evaluation is a scored evaluation result.
type Evaluation struct {
	Score     float64 `json:"score" validate:"gte=0,lte=100"`
	Feedback  string  `json:"feedback"`
	Result    string  `json:"result"`
	Timestamp string  `json:"timestamp"`
	Model     string  `json:"model"`
}

// GhostHealth is the evaluation gateway health payload.
type GhostHealth struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
