package perm

import (
	"testing"

	"crm-cli/internal/model"
)

func TestResolveRole_AdminClaimWinsRegardlessOfUsername(t *testing.T) {
	t.Parallel()

	usernames := []string{"", "user", "manager", "Admin", "alice"}
	claimSets := [][]string{
		{"ADMIN"},
		{"ROLE_ADMIN"},
		{"ROLE_USER", "ROLE_ADMIN"},
		{"MANAGER", "ADMIN", "USER"},
		{" role_admin "},
	}
	for _, u := range usernames {
		for _, claims := range claimSets {
			p := &model.Principal{Username: u, RoleClaims: claims}
			if got := ResolveRole(p); got != RoleAdmin {
				t.Fatalf("ResolveRole(%q, %v) = %v, want ADMIN", u, claims, got)
			}
		}
	}
}

func TestResolveRole_UsernameFallbackWhenNoClaims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		claims   []string
		want     Role
	}{
		{name: "manager lower", username: "manager", want: RoleManager},
		{name: "manager upper", username: "MANAGER", want: RoleManager},
		{name: "manager mixed", username: "MaNaGeR", claims: []string{}, want: RoleManager},
		{name: "admin", username: "admin", want: RoleAdmin},
		{name: "user", username: "User", want: RoleUser},
		{name: "prefix is not exact", username: "managers", want: RoleNone},
		{name: "unknown", username: "alice", want: RoleNone},
		{name: "unrecognised claims fall through", username: "manager", claims: []string{"ROLE_AUDITOR"}, want: RoleManager},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveRole(&model.Principal{Username: tt.username, RoleClaims: tt.claims})
			if got != tt.want {
				t.Fatalf("ResolveRole(%q, %v) = %v, want %v", tt.username, tt.claims, got, tt.want)
			}
		})
	}
}

func TestResolveRole_ClaimsOrderIsDescending(t *testing.T) {
	p := &model.Principal{Username: "x", RoleClaims: []string{"USER", "ROLE_MANAGER"}}
	if got := ResolveRole(p); got != RoleManager {
		t.Fatalf("expected MANAGER, got %v", got)
	}
}

func TestResolve_ReportsDisagreement(t *testing.T) {
	res := Resolve(&model.Principal{Username: "admin", RoleClaims: []string{"ROLE_USER"}})
	if res.Role != RoleUser {
		t.Fatalf("expected claims to win (USER), got %v", res.Role)
	}
	if res.Source != SourceClaims {
		t.Fatalf("expected source claims, got %q", res.Source)
	}
	if !res.Disagrees {
		t.Fatalf("expected disagreement to be reported")
	}

	res2 := Resolve(&model.Principal{Username: "manager"})
	if res2.Source != SourceUsername || res2.Disagrees {
		t.Fatalf("unexpected resolution: %+v", res2)
	}
}

func TestResolveRole_NilPrincipal(t *testing.T) {
	if got := ResolveRole(nil); got != RoleNone {
		t.Fatalf("expected RoleNone, got %v", got)
	}
}

func TestGate_Predicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role   Role
		view   bool
		modify bool
		delete bool
		toggle bool
	}{
		{RoleNone, false, false, false, false},
		{RoleUser, true, false, false, true},
		{RoleManager, true, true, false, true},
		{RoleAdmin, true, true, true, true},
	}
	for _, tt := range tests {
		if got := CanView(tt.role); got != tt.view {
			t.Fatalf("CanView(%v) = %v", tt.role, got)
		}
		if got := CanModify(tt.role); got != tt.modify {
			t.Fatalf("CanModify(%v) = %v", tt.role, got)
		}
		if got := CanDelete(tt.role); got != tt.delete {
			t.Fatalf("CanDelete(%v) = %v", tt.role, got)
		}
		if got := CanToggleCompletion(tt.role); got != tt.toggle {
			t.Fatalf("CanToggleCompletion(%v) = %v", tt.role, got)
		}
	}
}

func TestGate_Monotonic(t *testing.T) {
	for _, r := range []Role{RoleNone, RoleUser, RoleManager, RoleAdmin} {
		if CanDelete(r) && !CanModify(r) {
			t.Fatalf("CanDelete(%v) without CanModify", r)
		}
		if CanModify(r) && !CanView(r) {
			t.Fatalf("CanModify(%v) without CanView", r)
		}
		if CanModify(r) && !CanToggleCompletion(r) {
			t.Fatalf("CanModify(%v) without CanToggleCompletion", r)
		}
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"admin":        RoleAdmin,
		"ROLE_MANAGER": RoleManager,
		" user ":       RoleUser,
	} {
		got, ok := ParseRole(in)
		if !ok || got != want {
			t.Fatalf("ParseRole(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseRole("owner"); ok {
		t.Fatalf("expected unknown role to fail")
	}
}
