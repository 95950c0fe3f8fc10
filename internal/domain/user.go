package domain

import (
	"strings"
	"time"
)

// Role enumerates the three kinds of principals.
type Role string

const (
	RoleUser         Role = "USER"
	RoleSupportAgent Role = "SUPPORT_AGENT"
	RoleAdmin        Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSupportAgent, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole normalizes and validates a role string.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// User is an account that files or works tickets.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the acting identity for this user.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Role: u.Role}
}
