package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Claims is nil for requests
// made with the anonymous key.
type Principal struct {
	Claims *Claims
	Token  string
}

func (p *Principal) Anonymous() bool {
	return p == nil || p.Claims == nil
}

// AuthMiddleware checks the api key and the optional bearer token on every
// request.
type AuthMiddleware struct {
	tokens  *TokenManager
	anonKey string
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, anonKey string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, anonKey: anonKey}
}

// Handle rejects requests without the api key and resolves the principal.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if m.anonKey != "" && c.Get("apikey") != m.anonKey {
		return fiber.NewError(http.StatusUnauthorized, "invalid api key")
	}

	principal := &Principal{}
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(http.StatusUnauthorized, "invalid authorization header")
		}
		token := strings.TrimSpace(parts[1])
		if token != m.anonKey {
			claims, err := m.tokens.ParseToken(token)
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid token")
			}
			principal.Claims = claims
			principal.Token = token
		}
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
