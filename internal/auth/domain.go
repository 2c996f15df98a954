package auth

import "strings"

// Roles recognised by the API.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super admin"
)

// Subject is the authenticated caller resolved from a bearer token. It is the
// single source of tenant scope for every catalog and invoice operation.
type Subject struct {
	UserID     int64  `json:"user_id"`
	PharmacyID string `json:"pharmacy_id,omitempty"`
	Role       string `json:"role"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

// IsSuperAdmin reports whether the subject carries the super admin role.
func (s Subject) IsSuperAdmin() bool {
	return normalizeRole(s.Role) == RoleSuperAdmin
}

// HasRole compares roles case-insensitively.
func (s Subject) HasRole(role string) bool {
	return normalizeRole(s.Role) == normalizeRole(role)
}

func normalizeRole(role string) string {
	return strings.Join(strings.Fields(strings.ToLower(role)), " ")
}
