package handlers

import (
	"agriquest/services"

	"github.com/gofiber/fiber/v2"
)

// SetupProfileRoutes serves the profile snapshot store clients sync against.
func SetupProfileRoutes(app *fiber.App, profileService *services.ProfileService) {
	profiles := app.Group("/api/profiles")
	profiles.Get("/:id", profileService.GetProfile)
	profiles.Put("/:id", profileService.PutProfile)
}
