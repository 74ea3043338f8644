package handlers

import (
	"agriquest/middleware"
	"agriquest/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

// NewApp builds the authority's fiber app with every route mounted.
func NewApp(profileService *services.ProfileService, evidenceService *services.EvidenceService, adminKey, corsOrigins string, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "agriquest-authority",
		BodyLimit:    12 * 1024 * 1024, // base64 images
		ErrorHandler: errorHandler(logger),
	})

	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, X-Admin-Key",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	SetupProfileRoutes(app, profileService)
	SetupReviewRoutes(app, evidenceService, adminKey, logger)
	return app
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if fe, ok := err.(*fiber.Error); ok {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("[HTTP] unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
