package auth

import "strings"

// Role is the closed set of identities the portal recognizes. The ordinal
// hierarchy is super_admin > admin > employee > data_subject.
type Role string

const (
	RoleDataSubject Role = "data_subject"
	RoleEmployee    Role = "employee"
	RoleAdmin       Role = "admin"
	RoleSuperAdmin  Role = "super_admin"
)

var roleRank = map[Role]int{
	RoleDataSubject: 0,
	RoleEmployee:    1,
	RoleAdmin:       2,
	RoleSuperAdmin:  3,
}

// ParseRole normalizes and validates a role string.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	_, ok := roleRank[role]
	return role, ok
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role ranks at or above min in the hierarchy.
// Unknown roles never satisfy any minimum.
func (r Role) AtLeast(min Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	minRank, ok := roleRank[min]
	if !ok {
		return false
	}
	return rank >= minRank
}

// In reports set membership.
func (r Role) In(set ...Role) bool {
	for _, candidate := range set {
		if r == candidate {
			return true
		}
	}
	return false
}

// CompanyRoles is the set allowed on company-scoped operations.
var CompanyRoles = []Role{RoleAdmin, RoleEmployee}
