package http

import (
	"errors"
	"strings"
	"time"

	"arcade/internal/server/core"

	"github.com/gofiber/fiber/v2"
	"github.com/lixenwraith/auth"
)

// RoleAdmin is the claim value granting access to admin endpoints
const RoleAdmin = "admin"

var errNotAdmin = errors.New("token lacks admin role")

// TokenValidator validates bearer tokens
type TokenValidator func(token string) (subject string, claims map[string]any, err error)

// NewTokenValidator checks HS256 tokens signed with secret
func NewTokenValidator(secret []byte) TokenValidator {
	return func(token string) (string, map[string]any, error) {
		return auth.ValidateHS256Token(secret, token)
	}
}

// IssueAdminToken signs a token carrying the admin role
func IssueAdminToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	claims := map[string]any{"role": RoleAdmin}
	return auth.GenerateHS256Token(secret, subject, claims, ttl)
}

// AdminRequired enforces an admin bearer token. A nil validator disables the route.
func AdminRequired(validateToken TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if validateToken == nil {
			return c.Status(fiber.StatusForbidden).JSON(core.ErrorResponse{
				Error: "admin endpoints are disabled",
				Code:  core.ErrUnauthorized,
			})
		}

		token := extractBearerToken(c.Get("Authorization"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "missing authorization token",
				Code:  core.ErrUnauthorized,
			})
		}

		subject, claims, err := validateToken(token)
		if err == nil && claims["role"] != RoleAdmin {
			err = errNotAdmin
		}
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "invalid or expired token",
				Code:  core.ErrUnauthorized,
			})
		}

		c.Locals("userID", subject)
		return c.Next()
	}
}

// extractBearerToken extracts the token from an Authorization header
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
