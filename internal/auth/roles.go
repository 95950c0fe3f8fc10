package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketflow/internal/domain"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// RequireRole ensures the principal has one of the allowed roles. action names
// the denied operation in the error body.
func RequireRole(action string, allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewUnauthorized(action)
		}
		return c.Next()
	}
}

// RequireStaff admits support agents and administrators.
func RequireStaff(action string) fiber.Handler {
	return RequireRole(action, domain.RoleSupportAgent, domain.RoleAdmin)
}

// RequireAdmin admits administrators only.
func RequireAdmin(action string) fiber.Handler {
	return RequireRole(action, domain.RoleAdmin)
}

// RequireAuthenticated ensures some principal is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		return c.Next()
	}
}
