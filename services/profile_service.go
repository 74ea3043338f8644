package services

import (
	"context"
	"errors"
	"time"

	"agriquest/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileService stores the authoritative copy of each profile. A push is a
// full snapshot and simply overwrites the row.
type ProfileService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewProfileService(db *gorm.DB, logger *zap.Logger) *ProfileService {
	return &ProfileService{DB: db, Logger: logger}
}

// Upsert writes p keyed by id. A zero UpdatedAt is stamped with the current
// time.
func (s *ProfileService) Upsert(ctx context.Context, p models.RemoteProfile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	if p.QuestsCompleted == nil {
		p.QuestsCompleted = []string{}
	}
	if p.Points < 0 {
		p.Points = 0
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "points", "quests_completed", "updated_at"}),
	}).Create(&p).Error
}

// Get returns the stored profile or ErrProfileNotFound.
func (s *ProfileService) Get(ctx context.Context, id string) (models.RemoteProfile, error) {
	var p models.RemoteProfile
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RemoteProfile{}, ErrProfileNotFound
	}
	return p, err
}

// --- Handlers ---

// PutProfile handles PUT /api/profiles/:id.
func (s *ProfileService) PutProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	var body models.RemoteProfile
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "cause": err.Error()})
	}
	if body.ID != "" && body.ID != id {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "profile id does not match path"})
	}
	body.ID = id

	if err := s.Upsert(c.UserContext(), body); err != nil {
		s.Logger.Error("[PROFILE] upsert failed", zap.String("profile_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save profile", "cause": err.Error()})
	}
	s.Logger.Info("[PROFILE] upserted",
		zap.String("profile_id", id),
		zap.Int64("points", body.Points),
		zap.Int("quests", len(body.QuestsCompleted)))
	return c.JSON(fiber.Map{"ok": true})
}

// GetProfile handles GET /api/profiles/:id.
func (s *ProfileService) GetProfile(c *fiber.Ctx) error {
	p, err := s.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, ErrProfileNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load profile", "cause": err.Error()})
	}
	return c.JSON(p)
}
