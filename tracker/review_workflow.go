package tracker

import (
	"context"
	"fmt"
	"sync"

	"agriquest/models"

	"go.uber.org/zap"
)

// EvidenceAPI is the transport contract of the remote review authority.
type EvidenceAPI interface {
	Submit(ctx context.Context, sub models.EvidenceSubmission) (models.EvidenceSubmitResponse, error)
	Status(ctx context.Context, profileID string) (map[string]models.EvidenceSummary, error)
}

// EvidencePayload is what the user attaches for review.
type EvidencePayload struct {
	Notes     string
	ImageData string // data: URL
	ImageURL  string
}

// Revocation describes a claim withdrawn because its approval went away.
// Status is empty when the evidence record was deleted.
type Revocation struct {
	QuestID string
	Title   string
	Reward  int64
	Status  models.EvidenceStatus
}

func (r Revocation) String() string {
	status := string(r.Status)
	if status == "" {
		status = "deleted"
	}
	return fmt.Sprintf("%s: evidence %s, -%d pts", r.Title, status, r.Reward)
}

// ReviewWorkflow tracks evidence status per quest and keeps local claims in
// line with the authority. It only ever removes rewards; granting one needs
// an explicit claim through QuestController.
type ReviewWorkflow struct {
	mu       sync.Mutex
	api      EvidenceAPI
	profiles *ProfileStore
	catalog  []models.Quest
	logger   *zap.Logger

	statuses map[string]models.EvidenceSummary
	loaded   bool
	inFlight map[string]bool

	// gen counts successful submits; submitted[q] is the gen of the last one
	// for q. A status fetch started before that gen must not clobber it.
	gen       uint64
	submitted map[string]uint64
}

// NewReviewWorkflow builds a workflow over the given catalog (nil selects
// models.Quests).
func NewReviewWorkflow(api EvidenceAPI, profiles *ProfileStore, catalog []models.Quest, logger *zap.Logger) *ReviewWorkflow {
	if catalog == nil {
		catalog = models.Quests
	}
	return &ReviewWorkflow{
		api:      api,
		profiles: profiles,
		catalog:  catalog,
		logger:   logger,
		statuses:  map[string]models.EvidenceSummary{},
		inFlight:  map[string]bool{},
		submitted: map[string]uint64{},
	}
}

// StatusOf returns the last observed evidence record for questID.
func (w *ReviewWorkflow) StatusOf(questID string) (models.EvidenceSummary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.statuses[questID]
	return s, ok
}

// Submit sends evidence for questID. Submissions that could only create
// duplicate review work are refused locally, before the submit call.
func (w *ReviewWorkflow) Submit(ctx context.Context, questID string, payload EvidencePayload) (models.EvidenceSubmitResponse, error) {
	quest, ok := w.quest(questID)
	if !ok {
		return models.EvidenceSubmitResponse{}, fmt.Errorf("%w: %s", ErrUnknownQuest, questID)
	}
	if !quest.RequiresEvidence {
		return models.EvidenceSubmitResponse{}, fmt.Errorf("%w: %s", ErrEvidenceNotRequired, questID)
	}
	if payload.ImageData == "" && payload.ImageURL == "" {
		return models.EvidenceSubmitResponse{}, ErrEmptyEvidence
	}

	profile, err := w.profiles.Snapshot()
	if err != nil {
		return models.EvidenceSubmitResponse{}, err
	}
	if profile.HasCompleted(questID) {
		return models.EvidenceSubmitResponse{}, fmt.Errorf("%w: %s", ErrAlreadyClaimed, questID)
	}

	w.mu.Lock()
	loaded := w.loaded
	w.mu.Unlock()
	if !loaded {
		// Unknown remote state; learn it first so a pending review is not duplicated.
		if _, err := w.Reconcile(ctx); err != nil {
			return models.EvidenceSubmitResponse{}, fmt.Errorf("check evidence status: %w", err)
		}
	}

	w.mu.Lock()
	if err := w.guardLocked(questID); err != nil {
		w.mu.Unlock()
		return models.EvidenceSubmitResponse{}, err
	}
	w.inFlight[questID] = true
	w.mu.Unlock()

	resp, err := w.api.Submit(ctx, models.EvidenceSubmission{
		ProfileID: profile.ID,
		QuestID:   questID,
		Notes:     payload.Notes,
		ImageData: payload.ImageData,
		ImageURL:  payload.ImageURL,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, questID)
	if err != nil {
		w.logger.Warn("[REVIEW] evidence submission failed", zap.String("quest_id", questID), zap.Error(err))
		return models.EvidenceSubmitResponse{}, fmt.Errorf("submit evidence for %s: %w", questID, err)
	}

	status := resp.Status
	if status == "" {
		status = models.EvidencePending
	}
	w.statuses[questID] = models.EvidenceSummary{Status: status, ID: resp.ID, ImageURL: resp.ImageURL, Notes: payload.Notes}
	w.gen++
	w.submitted[questID] = w.gen
	w.logger.Info("[REVIEW] evidence submitted", zap.String("quest_id", questID), zap.String("evidence_id", resp.ID))
	return resp, nil
}

func (w *ReviewWorkflow) guardLocked(questID string) error {
	if w.inFlight[questID] {
		return fmt.Errorf("%w: %s", ErrSubmissionInFlight, questID)
	}
	switch w.statuses[questID].Status {
	case models.EvidencePending:
		return fmt.Errorf("%w: %s", ErrReviewPending, questID)
	case models.EvidenceApproved:
		return fmt.Errorf("%w: %s", ErrAlreadyApproved, questID)
	}
	return nil
}

// Reconcile fetches current statuses and revokes every local claim on an
// evidence-gated quest whose record is no longer approved. On a fetch error
// nothing changes locally. Submits that finish while the fetch is in flight
// keep their cached status.
func (w *ReviewWorkflow) Reconcile(ctx context.Context) ([]Revocation, error) {
	local, err := w.profiles.Snapshot()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	since := w.gen
	w.mu.Unlock()

	byQuest, err := w.api.Status(ctx, local.ID)
	if err != nil {
		w.logger.Debug("[REVIEW] status poll failed", zap.Error(err))
		return nil, fmt.Errorf("fetch evidence status: %w", err)
	}

	w.mu.Lock()
	statuses := make(map[string]models.EvidenceSummary, len(byQuest))
	for questID, summary := range byQuest {
		statuses[questID] = summary
	}
	for questID, gen := range w.submitted {
		if gen > since {
			statuses[questID] = w.statuses[questID]
			continue
		}
		delete(w.submitted, questID)
	}
	w.statuses = statuses
	w.loaded = true
	snapshot := make(map[string]models.EvidenceSummary, len(w.statuses))
	for k, v := range w.statuses {
		snapshot[k] = v
	}
	w.mu.Unlock()

	var revoked []Revocation
	profile, err := w.profiles.Snapshot()
	if err != nil {
		return nil, err
	}
	for _, q := range w.catalog {
		if !q.RequiresEvidence || !profile.HasCompleted(q.ID) {
			continue
		}
		summary := snapshot[q.ID]
		if summary.Status == models.EvidenceApproved {
			continue
		}
		if _, changed := w.profiles.RevokeClaim(q.ID, q.Reward); !changed {
			continue
		}
		r := Revocation{QuestID: q.ID, Title: q.Title, Reward: q.Reward, Status: summary.Status}
		revoked = append(revoked, r)
		w.logger.Info("[REVIEW] claim revoked",
			zap.String("quest_id", q.ID),
			zap.String("status", string(summary.Status)),
			zap.Int64("reward", q.Reward))
	}
	return revoked, nil
}

func (w *ReviewWorkflow) quest(id string) (models.Quest, bool) {
	for _, q := range w.catalog {
		if q.ID == id {
			return q, true
		}
	}
	return models.Quest{}, false
}
