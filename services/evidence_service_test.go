package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"agriquest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEvidenceService(t *testing.T, uploader ImageUploader) *EvidenceService {
	t.Helper()
	svc := NewEvidenceService(newTestDB(t), uploader, zap.NewNop())
	svc.now = stepClock(t0)
	return svc
}

func submission(quest string) models.EvidenceSubmission {
	return models.EvidenceSubmission{ProfileID: "farmer-1", QuestID: quest, Notes: "see photo", ImageURL: "https://img.example.com/a.jpg"}
}

func TestEvidenceService_SubmitValidation(t *testing.T) {
	svc := newTestEvidenceService(t, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, models.EvidenceSubmission{QuestID: "pest-scout", ImageURL: "x"})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Submit(ctx, models.EvidenceSubmission{ProfileID: "p", QuestID: "moon-landing", ImageURL: "x"})
	assert.ErrorIs(t, err, ErrUnknownQuest)

	_, err = svc.Submit(ctx, models.EvidenceSubmission{ProfileID: "p", QuestID: "pest-scout"})
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = svc.Submit(ctx, models.EvidenceSubmission{ProfileID: "p", QuestID: "pest-scout", ImageData: "data:image/png;base64,AA=="})
	assert.ErrorIs(t, err, ErrUploadsDisabled)
}

func TestEvidenceService_SubmitUploadsImageData(t *testing.T) {
	up := &fakeUploader{}
	svc := newTestEvidenceService(t, up)

	ev, err := svc.Submit(context.Background(), models.EvidenceSubmission{
		ProfileID: "farmer-1", QuestID: "soil-setup", ImageData: "data:image/jpeg;base64,AA==",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, "https://cdn.example.com/farmer-1/soil-setup.jpg", ev.ImageURL)
	assert.Equal(t, models.EvidencePending, ev.Status)

	up.err = errors.New("bucket offline")
	_, err = svc.Submit(context.Background(), models.EvidenceSubmission{
		ProfileID: "farmer-2", QuestID: "soil-setup", ImageData: "data:image/jpeg;base64,AA==",
	})
	assert.ErrorIs(t, err, up.err)
}

func TestEvidenceService_Lifecycle(t *testing.T) {
	svc := newTestEvidenceService(t, nil)
	ctx := context.Background()

	first, err := svc.Submit(ctx, submission("pest-scout"))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, submission("pest-scout"))
	require.ErrorIs(t, err, ErrEvidenceOpen, "pending evidence blocks resubmission")

	require.NoError(t, svc.Decide(ctx, first.ID, models.EvidenceRejected))
	latest, err := svc.LatestByQuest(ctx, "farmer-1")
	require.NoError(t, err)
	assert.Equal(t, models.EvidenceRejected, latest["pest-scout"].Status)

	second, err := svc.Submit(ctx, submission("pest-scout"))
	require.NoError(t, err, "rejected evidence can be resubmitted")

	latest, err = svc.LatestByQuest(ctx, "farmer-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest["pest-scout"].ID)
	assert.Equal(t, models.EvidencePending, latest["pest-scout"].Status)

	require.NoError(t, svc.Decide(ctx, second.ID, models.EvidenceApproved))
	_, err = svc.Submit(ctx, submission("pest-scout"))
	require.ErrorIs(t, err, ErrEvidenceOpen, "approved evidence blocks resubmission")

	require.NoError(t, svc.Reset(ctx, second.ID))
	latest, _ = svc.LatestByQuest(ctx, "farmer-1")
	assert.Equal(t, models.EvidencePending, latest["pest-scout"].Status)

	require.NoError(t, svc.Delete(ctx, second.ID))
	latest, _ = svc.LatestByQuest(ctx, "farmer-1")
	assert.Equal(t, first.ID, latest["pest-scout"].ID, "deleted records are hidden")

	assert.ErrorIs(t, svc.Delete(ctx, second.ID), ErrEvidenceNotFound)
	assert.ErrorIs(t, svc.Reset(ctx, "missing"), ErrEvidenceNotFound)
}

func TestEvidenceService_DecideValidation(t *testing.T) {
	svc := newTestEvidenceService(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Decide(ctx, "", models.EvidenceApproved), ErrInvalidDecision)
	assert.ErrorIs(t, svc.Decide(ctx, "x", models.EvidencePending), ErrInvalidDecision)
	assert.ErrorIs(t, svc.Decide(ctx, "x", models.EvidenceApproved), ErrEvidenceNotFound)
}

func TestEvidenceService_List(t *testing.T) {
	svc := newTestEvidenceService(t, nil)
	ctx := context.Background()

	a, err := svc.Submit(ctx, submission("pest-scout"))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, submission("soil-setup"))
	require.NoError(t, err)
	require.NoError(t, svc.Decide(ctx, a.ID, models.EvidenceApproved))

	pending, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "soil-setup", pending[0].QuestID)

	approved, err := svc.List(ctx, "approved")
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.NotNil(t, approved[0].DecidedAt)

	all, err := svc.List(ctx, "all")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "soil-setup", all[0].QuestID, "newest first")
}

func TestEvidenceService_PurgeDeleted(t *testing.T) {
	svc := newTestEvidenceService(t, nil)
	ctx := context.Background()

	ev, err := svc.Submit(ctx, submission("community-share"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, ev.ID))

	n, err := svc.PurgeDeleted(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "recently deleted rows are kept")

	n, err = svc.PurgeDeleted(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int64
	require.NoError(t, svc.DB.Unscoped().Model(&models.Evidence{}).Count(&count).Error)
	assert.Zero(t, count)
}
