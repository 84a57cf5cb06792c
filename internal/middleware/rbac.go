package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/inform-api/internal/utils"
)

// RequireAuthenticated rejects requests that did not pass JWTProtected.
// Organization roles are resolved per request by the services.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		return c.Next()
	}
}

// RequireSuperAdmin restricts platform-level endpoints to super admins.
func RequireSuperAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if !IsSuperAdmin(c) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// UserID returns the authenticated caller id, or an empty string.
func UserID(c *fiber.Ctx) string {
	if value, ok := c.Locals(LocalUserID).(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// IsSuperAdmin reports whether the caller carries the super admin claim.
func IsSuperAdmin(c *fiber.Ctx) bool {
	value, ok := c.Locals(LocalIsSuperAdmin).(bool)
	return ok && value
}
