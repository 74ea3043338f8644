package tracker

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"agriquest/models"

	"go.uber.org/zap"
)

// QuestState is where a quest sits in its lifecycle. A revoked claim falls
// back to InProgress (or NotStarted) purely by recomputation.
type QuestState string

const (
	QuestNotStarted   QuestState = "not_started"
	QuestInProgress   QuestState = "in_progress"
	QuestReadyToClaim QuestState = "ready_to_claim"
	QuestClaimed      QuestState = "claimed"
)

// StepProgress is one step as the user sees it.
type StepProgress struct {
	Index        int    `json:"index"`
	Description  string `json:"description"`
	Done         bool   `json:"done"`
	AutoVerified bool   `json:"auto_verified"`
}

// QuestProgress is the derived view of a quest. It is never persisted.
type QuestProgress struct {
	Quest     models.Quest            `json:"quest"`
	Steps     []StepProgress          `json:"steps"`
	DoneCount int                     `json:"done_count"`
	Fraction  float64                 `json:"fraction"`
	Evidence  *models.EvidenceSummary `json:"evidence,omitempty"`
	State     QuestState              `json:"state"`
}

// AllStepsDone reports whether every step is satisfied.
func (qp QuestProgress) AllStepsDone() bool {
	return qp.DoneCount == len(qp.Steps)
}

// questToggles is the persisted shape under QuestStateKey.
type questToggles struct {
	Done map[string]bool `json:"done"`
}

// QuestController derives quest progress from manual toggles, the verified
// set and evidence status, and is the only path that claims a reward.
type QuestController struct {
	mu       sync.Mutex // guards the toggle key
	claimMu  sync.Mutex // serializes Claim check-then-act
	kv       KeyValueStore
	profiles *ProfileStore
	events   *EventLog
	review   *ReviewWorkflow
	logger   *zap.Logger

	catalog []models.Quest
	rules   RuleSet
	steps   StepVerifications

	lastToggles map[string]bool // guarded by mu
}

// NewQuestController wires the controller with the default catalog, rules
// and step map. review may be nil, in which case evidence-gated quests can
// never become claimable.
func NewQuestController(kv KeyValueStore, profiles *ProfileStore, events *EventLog, review *ReviewWorkflow, logger *zap.Logger) *QuestController {
	return &QuestController{
		kv:       kv,
		profiles: profiles,
		events:   events,
		review:   review,
		logger:   logger,
		catalog:  models.Quests,
		rules:    DefaultRules,
		steps:    DefaultStepVerifications,
	}
}

// Catalog returns the quests the controller serves.
func (c *QuestController) Catalog() []models.Quest {
	return c.catalog
}

// TotalAvailable sums every quest reward.
func (c *QuestController) TotalAvailable() int64 {
	var total int64
	for _, q := range c.catalog {
		total += q.Reward
	}
	return total
}

// Progress computes the current view of one quest.
func (c *QuestController) Progress(questID string) (QuestProgress, error) {
	q, ok := c.quest(questID)
	if !ok {
		return QuestProgress{}, fmt.Errorf("%w: %s", ErrUnknownQuest, questID)
	}
	c.mu.Lock()
	toggles := c.currentToggles()
	c.mu.Unlock()
	return c.progress(q, c.profiles.Profile(), toggles, c.events.VerifiedSet(c.rules)), nil
}

// Overview computes progress for the whole catalog from a single snapshot.
func (c *QuestController) Overview() []QuestProgress {
	c.mu.Lock()
	toggles := c.currentToggles()
	c.mu.Unlock()

	profile := c.profiles.Profile()
	verified := c.events.VerifiedSet(c.rules)
	out := make([]QuestProgress, 0, len(c.catalog))
	for _, q := range c.catalog {
		out = append(out, c.progress(q, profile, toggles, verified))
	}
	return out
}

// ToggleStep flips the manual flag of a step and returns its new value.
// Auto-verified steps are locked.
func (c *QuestController) ToggleStep(questID string, step int) (bool, error) {
	q, ok := c.quest(questID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownQuest, questID)
	}
	if step < 0 || step >= len(q.Steps) {
		return false, fmt.Errorf("%w: %s has %d steps", ErrStepOutOfRange, questID, len(q.Steps))
	}
	if c.isAutoVerified(questID, step, c.events.VerifiedSet(c.rules)) {
		return false, fmt.Errorf("%w: %s step %d", ErrStepAutoVerified, questID, step)
	}

	c.mu.Lock()
	toggles, err := c.loadToggles()
	if err != nil {
		c.mu.Unlock()
		return false, fmt.Errorf("read step toggles: %w", err)
	}
	key := models.StepKey(questID, step)
	done := !toggles.Done[key]
	toggles.Done[key] = done
	err = c.saveToggles(toggles)
	c.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("save step toggle: %w", err)
	}

	c.record(models.EventQuestToggle, map[string]any{"id": questID, "step": step, "done": done})
	return done, nil
}

// Claim credits the quest reward if the quest is ready. Claiming an already
// claimed quest returns the profile unchanged. The check and the credit run
// under claimMu, and MarkQuestComplete is itself idempotent. Subscribers
// notified during a claim must not call Claim.
func (c *QuestController) Claim(questID string) (models.Profile, error) {
	q, ok := c.quest(questID)
	if !ok {
		return models.Profile{}, fmt.Errorf("%w: %s", ErrUnknownQuest, questID)
	}

	c.claimMu.Lock()
	defer c.claimMu.Unlock()

	c.mu.Lock()
	toggles := c.currentToggles()
	c.mu.Unlock()

	profile, err := c.profiles.Snapshot()
	if err != nil {
		return models.Profile{}, err
	}
	qp := c.progress(q, profile, toggles, c.events.VerifiedSet(c.rules))
	switch qp.State {
	case QuestClaimed:
		return profile, nil
	case QuestReadyToClaim:
	default:
		if qp.AllStepsDone() && q.RequiresEvidence {
			return profile, fmt.Errorf("%w: %s", ErrEvidenceNotApproved, questID)
		}
		return profile, fmt.Errorf("%w: %s (%d/%d)", ErrNotReadyToClaim, questID, qp.DoneCount, len(q.Steps))
	}

	updated := c.profiles.MarkQuestComplete(q.ID, q.Reward)
	if !updated.HasCompleted(q.ID) {
		return updated, fmt.Errorf("%w: claim of %s not recorded", ErrProfileUnavailable, q.ID)
	}
	c.logger.Info("[QUEST] reward claimed",
		zap.String("quest_id", q.ID),
		zap.Int64("reward", q.Reward),
		zap.Int64("points", updated.Points))
	c.record(models.EventQuestCompleted, map[string]any{"id": q.ID, "reward": q.Reward})
	return updated, nil
}

// ResetToggles clears every manual step flag.
func (c *QuestController) ResetToggles() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastToggles = nil
	return c.kv.Delete(QuestStateKey)
}

func (c *QuestController) progress(q models.Quest, profile models.Profile, toggles questToggles, verified VerifiedSet) QuestProgress {
	qp := QuestProgress{Quest: q, Steps: make([]StepProgress, len(q.Steps))}
	for i, desc := range q.Steps {
		auto := c.isAutoVerified(q.ID, i, verified)
		done := auto || toggles.Done[models.StepKey(q.ID, i)]
		qp.Steps[i] = StepProgress{Index: i, Description: desc, Done: done, AutoVerified: auto}
		if done {
			qp.DoneCount++
		}
	}
	if len(q.Steps) > 0 {
		qp.Fraction = float64(qp.DoneCount) / float64(len(q.Steps))
	}

	approved := !q.RequiresEvidence
	if q.RequiresEvidence && c.review != nil {
		if summary, ok := c.review.StatusOf(q.ID); ok {
			qp.Evidence = &summary
			approved = summary.Status == models.EvidenceApproved
		}
	}

	switch {
	case profile.HasCompleted(q.ID):
		qp.State = QuestClaimed
	case qp.AllStepsDone() && approved:
		qp.State = QuestReadyToClaim
	case qp.DoneCount > 0:
		qp.State = QuestInProgress
	default:
		qp.State = QuestNotStarted
	}
	return qp
}

func (c *QuestController) isAutoVerified(questID string, step int, verified VerifiedSet) bool {
	id, ok := c.steps[questID][step]
	return ok && verified.Has(id)
}

func (c *QuestController) record(kind models.EventKind, data map[string]any) {
	if _, err := c.events.RecordEvent(kind, data); err != nil {
		c.logger.Warn("[QUEST] failed to record event", zap.String("type", string(kind)), zap.Error(err))
	}
}

// loadToggles must be called with c.mu held. Missing or corrupt state reads
// as no toggles; a read error is returned.
func (c *QuestController) loadToggles() (questToggles, error) {
	t := questToggles{Done: map[string]bool{}}
	raw, ok, err := c.kv.Get(QuestStateKey)
	if err != nil {
		c.logger.Warn("[QUEST] failed to read step toggles", zap.Error(err))
		return t, fmt.Errorf("%w: %w", ErrStateUnavailable, err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &t); err != nil || t.Done == nil {
			t.Done = map[string]bool{}
		}
	}
	c.lastToggles = maps.Clone(t.Done)
	return t, nil
}

// currentToggles is loadToggles for readers: a failed read falls back to the
// last toggles seen. It must be called with c.mu held.
func (c *QuestController) currentToggles() questToggles {
	t, err := c.loadToggles()
	if err != nil {
		t.Done = maps.Clone(c.lastToggles)
		if t.Done == nil {
			t.Done = map[string]bool{}
		}
	}
	return t
}

// saveToggles must be called with c.mu held.
func (c *QuestController) saveToggles(t questToggles) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := c.kv.Set(QuestStateKey, string(b)); err != nil {
		return err
	}
	c.lastToggles = maps.Clone(t.Done)
	return nil
}

func (c *QuestController) quest(id string) (models.Quest, bool) {
	for _, q := range c.catalog {
		if q.ID == id {
			return q, true
		}
	}
	return models.Quest{}, false
}
