package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AdminKeyMiddleware admits requests whose X-Admin-Key header matches
// adminKey. With no key configured every admin request is refused.
func AdminKeyMiddleware(adminKey string, logger *zap.Logger) fiber.Handler {
	if adminKey == "" {
		logger.Warn("[ADMIN_AUTH] ADMIN_KEY is not set; admin routes are disabled")
	}

	return func(c *fiber.Ctx) error {
		key := c.Get("X-Admin-Key")
		if adminKey == "" || key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			logger.Warn("[ADMIN_AUTH] rejected admin request",
				zap.String("path", c.Path()),
				zap.Bool("key_present", key != ""))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Next()
	}
}
