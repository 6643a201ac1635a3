// Package guard decides whether a session may open a gated area of the app.
package guard

import (
	"fmt"
	"slices"
	"strings"

	tiqology "github.com/tiqology/superapp-go"
)

// Outcome is the result of a guard check.
type Outcome int

const (
	// Allow lets the request through.
	Allow Outcome = iota
	// RequireLogin sends an unauthenticated caller to the login page.
	RequireLogin
	// Forbidden means the user is logged in but lacks every required role.
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RequireLogin:
		return "require_login"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// LoginPath is where RequireLogin decisions redirect.
const LoginPath = "/login"

// Gated areas and the roles that open them (any one suffices).
const (
	AreaTrustShield = "trustshield"
	AreaEnterprise  = "enterprise"
)

var areaRoles = map[string][]string{
	AreaTrustShield: {tiqology.RoleSecurity},
	AreaEnterprise:  {tiqology.RoleOwner, tiqology.RoleAdmin},
}

// RolesFor returns the roles that open area, or nil for an ungated area.
func RolesFor(area string) []string {
	return slices.Clone(areaRoles[area])
}

// Gated reports whether area is one of the gated areas.
func Gated(area string) bool {
	_, ok := areaRoles[area]
	return ok
}

// Decision explains a guard outcome.
type Decision struct {
	Outcome  Outcome
	Required []string
	Message  string
}

// Allowed reports whether the outcome is Allow.
func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Evaluate checks s against anyOf. With no roles listed, any authenticated
// session is allowed.
func Evaluate(s tiqology.Session, anyOf ...string) Decision {
	if !s.IsAuthenticated {
		return Decision{Outcome: RequireLogin, Required: anyOf, Message: "Please log in to continue."}
	}
	if len(anyOf) == 0 || s.HasAnyRole(anyOf...) {
		return Decision{Outcome: Allow, Required: anyOf}
	}
	return Decision{Outcome: Forbidden, Required: anyOf, Message: RestrictedMessage(anyOf)}
}

// EvaluateArea checks s against the roles that open area.
func EvaluateArea(s tiqology.Session, area string) Decision {
	return Evaluate(s, RolesFor(area)...)
}

// RestrictedMessage names the roles a page requires.
func RestrictedMessage(roles []string) string {
	suffix := ""
	if len(roles) > 1 {
		suffix = "s"
	}
	return fmt.Sprintf("You don't have permission to access this page. This page requires the %s role%s.",
		strings.Join(roles, " or "), suffix)
}
