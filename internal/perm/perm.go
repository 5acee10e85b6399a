package perm

import (
	"strings"

	"crm-cli/internal/model"
)

// Role is the effective permission tier. The zero value RoleNone means
// "unauthenticated or unknown" and grants nothing.
//
// Roles are totally ordered; a higher role has every capability of a lower one.
type Role int

const (
	RoleNone Role = iota
	RoleUser
	RoleManager
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "USER"
	case RoleManager:
		return "MANAGER"
	case RoleAdmin:
		return "ADMIN"
	default:
		return ""
	}
}

// Claim is the prefixed form the backend uses in role claims (e.g. ROLE_ADMIN).
func (r Role) Claim() string {
	if r == RoleNone {
		return ""
	}
	return "ROLE_" + r.String()
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ParseRole accepts both bare and prefixed labels, case-insensitively.
func ParseRole(s string) (Role, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "ROLE_")
	switch s {
	case "ADMIN":
		return RoleAdmin, true
	case "MANAGER":
		return RoleManager, true
	case "USER":
		return RoleUser, true
	default:
		return RoleNone, false
	}
}

// Source says which step of ResolveRole produced the role.
type Source string

const (
	SourceNone     Source = "none"
	SourceClaims   Source = "claims"
	SourceUsername Source = "username"
)

type Resolution struct {
	Role   Role   `json:"role"`
	Source Source `json:"source"`
	// Disagrees is set when claims decided the role but the username heuristic
	// would have produced a different one. Claims still win.
	Disagrees bool `json:"disagrees,omitempty"`
}

// descending priority; the first claimed role wins
var claimOrder = []Role{RoleAdmin, RoleManager, RoleUser}

// ResolveRole derives the effective role of a principal.
//
// Rules (in order):
//   - Non-empty role claims: test ADMIN, MANAGER, USER; "ADMIN" and "ROLE_ADMIN" are equivalent.
//   - Otherwise: case-insensitive exact username match (admin, manager, user).
//   - Otherwise: RoleNone.
func ResolveRole(p *model.Principal) Role {
	return Resolve(p).Role
}

func Resolve(p *model.Principal) Resolution {
	if p == nil || strings.TrimSpace(p.Username) == "" && len(p.RoleClaims) == 0 {
		return Resolution{Role: RoleNone, Source: SourceNone}
	}

	byName := roleFromUsername(p.Username)

	if len(p.RoleClaims) > 0 {
		if r, ok := roleFromClaims(p.RoleClaims); ok {
			return Resolution{
				Role:      r,
				Source:    SourceClaims,
				Disagrees: byName != RoleNone && byName != r,
			}
		}
	}

	if byName != RoleNone {
		return Resolution{Role: byName, Source: SourceUsername}
	}
	return Resolution{Role: RoleNone, Source: SourceNone}
}

func roleFromClaims(claims []string) (Role, bool) {
	have := make(map[string]struct{}, len(claims))
	for _, c := range claims {
		have[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	for _, r := range claimOrder {
		if _, ok := have[r.String()]; ok {
			return r, true
		}
		if _, ok := have[r.Claim()]; ok {
			return r, true
		}
	}
	return RoleNone, false
}

func roleFromUsername(username string) Role {
	switch strings.ToLower(strings.TrimSpace(username)) {
	case "admin":
		return RoleAdmin
	case "manager":
		return RoleManager
	case "user":
		return RoleUser
	default:
		return RoleNone
	}
}
