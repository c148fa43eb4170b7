package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

// RequireRole rejects callers whose role is not one of roles. It must run
// after JWTAuth.
func RequireRole(roles ...model.Role) fiber.Handler {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *fiber.Ctx) error {
		viewer, ok := GetViewer(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		if !allowed[viewer.Role] {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "access denied",
			})
		}

		return c.Next()
	}
}
