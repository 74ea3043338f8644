package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agriquest/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// statusScanLimit bounds the rows read when reducing to the latest record
// per quest.
const statusScanLimit = 200

// ImageUploader stores a data-URL image and returns its public URL.
type ImageUploader interface {
	UploadDataURL(ctx context.Context, profileID, questID, dataURL string) (string, error)
}

// EvidenceService owns the review records. Rewards are never granted here;
// the client claims after it observes an approval.
type EvidenceService struct {
	DB       *gorm.DB
	Uploader ImageUploader
	Logger   *zap.Logger
	now      func() time.Time
}

// NewEvidenceService returns the service. uploader may be nil, in which case
// only submissions carrying an image URL are accepted.
func NewEvidenceService(db *gorm.DB, uploader ImageUploader, logger *zap.Logger) *EvidenceService {
	return &EvidenceService{DB: db, Uploader: uploader, Logger: logger, now: time.Now}
}

// Submit stores a new pending record for sub.
func (s *EvidenceService) Submit(ctx context.Context, sub models.EvidenceSubmission) (models.Evidence, error) {
	if sub.ProfileID == "" || sub.QuestID == "" {
		return models.Evidence{}, ErrMissingFields
	}
	if _, ok := models.QuestByID(sub.QuestID); !ok {
		return models.Evidence{}, fmt.Errorf("%w: %s", ErrUnknownQuest, sub.QuestID)
	}
	if sub.ImageData == "" && sub.ImageURL == "" {
		return models.Evidence{}, ErrNoImage
	}

	latest, err := s.LatestByQuest(ctx, sub.ProfileID)
	if err != nil {
		return models.Evidence{}, err
	}
	switch latest[sub.QuestID].Status {
	case models.EvidencePending, models.EvidenceApproved:
		return models.Evidence{}, ErrEvidenceOpen
	}

	imageURL := sub.ImageURL
	if imageURL == "" {
		if s.Uploader == nil {
			return models.Evidence{}, ErrUploadsDisabled
		}
		imageURL, err = s.Uploader.UploadDataURL(ctx, sub.ProfileID, sub.QuestID, sub.ImageData)
		if err != nil {
			return models.Evidence{}, fmt.Errorf("upload evidence image: %w", err)
		}
	}

	ev := models.Evidence{
		ID:        uuid.NewString(),
		ProfileID: sub.ProfileID,
		QuestID:   sub.QuestID,
		ImageURL:  imageURL,
		Notes:     sub.Notes,
		Status:    models.EvidencePending,
	}
	ev.CreatedAt = s.now().UTC()
	if err := s.DB.WithContext(ctx).Create(&ev).Error; err != nil {
		return models.Evidence{}, err
	}
	return ev, nil
}

// LatestByQuest reduces the profile's recent records to the newest one per
// quest. Deleted records are not visible.
func (s *EvidenceService) LatestByQuest(ctx context.Context, profileID string) (map[string]models.EvidenceSummary, error) {
	var rows []models.Evidence
	err := s.DB.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC").
		Limit(statusScanLimit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[string]models.EvidenceSummary)
	for _, r := range rows {
		if _, seen := latest[r.QuestID]; seen {
			continue
		}
		latest[r.QuestID] = models.EvidenceSummary{Status: r.Status, ID: r.ID, ImageURL: r.ImageURL, Notes: r.Notes}
	}
	return latest, nil
}

// List returns recent records with the given status; "all" lists every
// status and an empty status means pending.
func (s *EvidenceService) List(ctx context.Context, status string) ([]models.Evidence, error) {
	if status == "" {
		status = string(models.EvidencePending)
	}
	q := s.DB.WithContext(ctx).Order("created_at DESC").Limit(statusScanLimit)
	if status != "all" {
		q = q.Where("status = ?", status)
	}
	var rows []models.Evidence
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Decide records an approval or rejection.
func (s *EvidenceService) Decide(ctx context.Context, id string, decision models.EvidenceStatus) error {
	if id == "" || (decision != models.EvidenceApproved && decision != models.EvidenceRejected) {
		return ErrInvalidDecision
	}
	now := s.now().UTC()
	return s.update(ctx, id, map[string]any{"status": decision, "decided_at": &now})
}

// Reset puts a record back into review.
func (s *EvidenceService) Reset(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]any{"status": models.EvidencePending, "decided_at": nil})
}

// Delete hides a record from every query. Clients see the quest as having no
// evidence and revoke any claim on it.
func (s *EvidenceService) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Evidence{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEvidenceNotFound
	}
	return nil
}

// PurgeDeleted permanently removes records deleted before cutoff.
func (s *EvidenceService) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&models.Evidence{})
	return res.RowsAffected, res.Error
}

func (s *EvidenceService) update(ctx context.Context, id string, fields map[string]any) error {
	res := s.DB.WithContext(ctx).Model(&models.Evidence{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEvidenceNotFound
	}
	return nil
}

// --- Handlers ---

// Health handles GET /api/review/health.
func (s *EvidenceService) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "time": s.now().UTC().Format(time.RFC3339)})
}

// SubmitEvidence handles POST /api/review/evidence/submit.
func (s *EvidenceService) SubmitEvidence(c *fiber.Ctx) error {
	var sub models.EvidenceSubmission
	if err := c.BodyParser(&sub); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "cause": err.Error()})
	}

	ev, err := s.Submit(c.UserContext(), sub)
	if err != nil {
		s.Logger.Warn("[REVIEW] submission refused",
			zap.String("profile_id", sub.ProfileID),
			zap.String("quest_id", sub.QuestID),
			zap.Error(err))
		return c.Status(submitStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	s.Logger.Info("[REVIEW] evidence submitted",
		zap.String("evidence_id", ev.ID),
		zap.String("profile_id", ev.ProfileID),
		zap.String("quest_id", ev.QuestID))
	return c.JSON(models.EvidenceSubmitResponse{OK: true, ID: ev.ID, Status: ev.Status, ImageURL: ev.ImageURL})
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrUnknownQuest), errors.Is(err, ErrNoImage):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrEvidenceOpen):
		return fiber.StatusConflict
	case errors.Is(err, ErrUploadsDisabled):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// EvidenceStatus handles GET /api/review/evidence/status?profileId=.
func (s *EvidenceService) EvidenceStatus(c *fiber.Ctx) error {
	profileID := c.Query("profileId")
	if profileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "profileId required"})
	}
	latest, err := s.LatestByQuest(c.UserContext(), profileID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load evidence", "cause": err.Error()})
	}
	return c.JSON(models.EvidenceStatusResponse{OK: true, ByQuest: latest})
}

// AdminList handles GET /api/review/admin/evidence?status=.
func (s *EvidenceService) AdminList(c *fiber.Ctx) error {
	rows, err := s.List(c.UserContext(), c.Query("status"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list evidence", "cause": err.Error()})
	}
	return c.JSON(models.EvidenceListResponse{OK: true, Items: rows})
}

// AdminDecide handles POST /api/review/admin/evidence/decision.
func (s *EvidenceService) AdminDecide(c *fiber.Ctx) error {
	var req models.EvidenceDecision
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "cause": err.Error()})
	}
	if err := s.Decide(c.UserContext(), req.ID, req.Decision); err != nil {
		return s.adminError(c, "decision", req.ID, err)
	}
	s.Logger.Info("[ADMIN] evidence decided", zap.String("evidence_id", req.ID), zap.String("decision", string(req.Decision)))
	return c.JSON(fiber.Map{"ok": true})
}

// AdminReset handles POST /api/review/admin/evidence/:id/reset.
func (s *EvidenceService) AdminReset(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.Reset(c.UserContext(), id); err != nil {
		return s.adminError(c, "reset", id, err)
	}
	s.Logger.Info("[ADMIN] evidence reset", zap.String("evidence_id", id))
	return c.JSON(fiber.Map{"ok": true})
}

// AdminDelete handles DELETE /api/review/admin/evidence/:id.
func (s *EvidenceService) AdminDelete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.Delete(c.UserContext(), id); err != nil {
		return s.adminError(c, "delete", id, err)
	}
	s.Logger.Info("[ADMIN] evidence deleted", zap.String("evidence_id", id))
	return c.JSON(fiber.Map{"ok": true})
}

func (s *EvidenceService) adminError(c *fiber.Ctx, action, id string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidDecision):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrEvidenceNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	s.Logger.Error("[ADMIN] evidence "+action+" failed", zap.String("evidence_id", id), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to " + action + " evidence", "cause": err.Error()})
}
