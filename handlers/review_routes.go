package handlers

import (
	"agriquest/middleware"
	"agriquest/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupReviewRoutes serves evidence submission and status to clients, and
// the decision endpoints to reviewers holding the admin key.
func SetupReviewRoutes(app *fiber.App, evidenceService *services.EvidenceService, adminKey string, logger *zap.Logger) {
	review := app.Group("/api/review")
	review.Get("/health", evidenceService.Health)
	review.Post("/evidence/submit", evidenceService.SubmitEvidence)
	review.Get("/evidence/status", evidenceService.EvidenceStatus)

	admin := review.Group("/admin", middleware.AdminKeyMiddleware(adminKey, logger))
	admin.Get("/evidence", evidenceService.AdminList)
	admin.Post("/evidence/decision", evidenceService.AdminDecide)
	admin.Post("/evidence/:id/reset", evidenceService.AdminReset)
	admin.Delete("/evidence/:id", evidenceService.AdminDelete)
}
