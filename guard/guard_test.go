package guard_test

import (
	"testing"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/guard"
)

func session(roles ...string) tiqology.Session {
	return tiqology.Session{
		User:            &tiqology.User{ID: "1", Roles: roles},
		Token:           "tok",
		IsAuthenticated: true,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		session tiqology.Session
		anyOf   []string
		want    guard.Outcome
	}{
		{"logged out, no roles", tiqology.Session{}, nil, guard.RequireLogin},
		{"logged out, roles", tiqology.Session{}, []string{"security"}, guard.RequireLogin},
		{"authenticated only", session("user"), nil, guard.Allow},
		{"has role", session("user", "security"), []string{"security"}, guard.Allow},
		{"lacks role", session("user"), []string{"security"}, guard.Forbidden},
		{"any of, second", session("admin"), []string{"owner", "admin"}, guard.Allow},
		{"any of, none", session("security"), []string{"owner", "admin"}, guard.Forbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := guard.Evaluate(tt.session, tt.anyOf...)
			if d.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v", d.Outcome, tt.want)
			}
			if d.Allowed() != (tt.want == guard.Allow) {
				t.Errorf("Allowed() = %v", d.Allowed())
			}
		})
	}
}

func TestEvaluateArea(t *testing.T) {
	sec := session("user", "security")
	owner := session("owner")

	if d := guard.EvaluateArea(sec, guard.AreaTrustShield); !d.Allowed() {
		t.Errorf("security user on trustshield = %v, want allow", d.Outcome)
	}
	if d := guard.EvaluateArea(sec, guard.AreaEnterprise); d.Outcome != guard.Forbidden {
		t.Errorf("security user on enterprise = %v, want forbidden", d.Outcome)
	}
	if d := guard.EvaluateArea(owner, guard.AreaEnterprise); !d.Allowed() {
		t.Errorf("owner on enterprise = %v, want allow", d.Outcome)
	}
	if d := guard.EvaluateArea(owner, "dashboard"); !d.Allowed() {
		t.Errorf("owner on ungated area = %v, want allow", d.Outcome)
	}
}

func TestGated(t *testing.T) {
	for _, area := range []string{guard.AreaTrustShield, guard.AreaEnterprise} {
		if !guard.Gated(area) {
			t.Errorf("Gated(%q) = false, want true", area)
		}
	}
	if guard.Gated("dashboard") {
		t.Error(`Gated("dashboard") = true, want false`)
	}
}

func TestRolesFor_ReturnsCopy(t *testing.T) {
	roles := guard.RolesFor(guard.AreaEnterprise)
	roles[0] = "user"

	if got := guard.RolesFor(guard.AreaEnterprise); got[0] != tiqology.RoleOwner {
		t.Errorf("RolesFor(enterprise)[0] = %q after caller mutation, want %q", got[0], tiqology.RoleOwner)
	}
}

func TestRestrictedMessage(t *testing.T) {
	tests := []struct {
		roles []string
		want  string
	}{
		{[]string{"security"}, "You don't have permission to access this page. This page requires the security role."},
		{[]string{"owner", "admin"}, "You don't have permission to access this page. This page requires the owner or admin roles."},
	}
	for _, tt := range tests {
		if got := guard.RestrictedMessage(tt.roles); got != tt.want {
			t.Errorf("RestrictedMessage(%v) = %q, want %q", tt.roles, got, tt.want)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	if guard.Forbidden.String() != "forbidden" || guard.RequireLogin.String() != "require_login" {
		t.Error("unexpected outcome names")
	}
}
