package domain

// Principal is the authenticated actor of a single operation.
type Principal struct {
	UserID string
	Role   Role
}

// IsStaff reports whether the principal works tickets rather than files them.
func (p Principal) IsStaff() bool {
	switch p.Role {
	case RoleAdmin, RoleSupportAgent:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}
