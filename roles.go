package auth

import "strings"

// Role is the administrative role carried by an identity and its session
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleEditor:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{RoleAdmin, RoleEditor}
}

// RoleSet is the allow-list consulted by the gate.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles. Empty entries are ignored.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// RoleSetFromStrings is NewRoleSet for configuration values.
func RoleSetFromStrings(roles []string) RoleSet {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, Role(strings.ToLower(strings.TrimSpace(r))))
	}
	return NewRoleSet(out...)
}

// DefaultAllowedRoles admits every predefined role
func DefaultAllowedRoles() RoleSet {
	return NewRoleSet(GetAllRoles()...)
}

// Allows reports whether role is a member of the set
func (s RoleSet) Allows(role Role) bool {
	if role == "" {
		return false
	}
	_, ok := s[role]
	return ok
}

// Roles returns the members of the set in a stable order
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s))
	for _, r := range GetAllRoles() {
		if s.Allows(r) {
			out = append(out, r)
		}
	}
	for r := range s {
		if !r.IsValid() {
			out = append(out, r)
		}
	}
	return out
}
