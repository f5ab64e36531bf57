package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// ResolveRole returns the first valid role among candidates, in order of
// precedence.
func ResolveRole(candidates ...domain.Role) (domain.Role, bool) {
	for _, role := range candidates {
		if role.Valid() {
			return role, true
		}
	}
	return "", false
}

// RequireUser ensures the request carries a user token rather than the
// anonymous key.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Anonymous() {
			return fiber.NewError(http.StatusUnauthorized, "user token required")
		}
		return c.Next()
	}
}
