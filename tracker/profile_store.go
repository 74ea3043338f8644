package tracker

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"slices"
	"strconv"
	"sync"
	"time"

	"agriquest/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// SyncTrigger requests a best-effort background push. Implementations must
// not block the caller.
type SyncTrigger interface {
	Trigger()
}

// ProfileStore is the single writer of the local profile. Every mutation
// reloads the durable copy, applies the change, records a pending op,
// persists, asks for a sync and notifies subscribers, in that order.
type ProfileStore struct {
	mu      sync.Mutex
	kv      KeyValueStore
	clock   clockwork.Clock
	logger  *zap.Logger
	trigger SyncTrigger
	newID   func() string
	subs    observers[models.Profile]

	// last is the most recent profile read or written. It answers readers
	// while storage is unreadable.
	last *models.Profile
}

// NewProfileStore builds a store over kv. The sync trigger is attached later
// with SetSyncTrigger because the sync worker itself depends on the store.
func NewProfileStore(kv KeyValueStore, clock clockwork.Clock, logger *zap.Logger) *ProfileStore {
	return &ProfileStore{kv: kv, clock: clock, logger: logger, newID: NewProfileID}
}

// SetSyncTrigger attaches the component that pushes changes upstream.
func (s *ProfileStore) SetSyncTrigger(t SyncTrigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = t
}

// Subscribe registers fn to receive the profile after every change.
func (s *ProfileStore) Subscribe(fn func(models.Profile)) (unsubscribe func()) {
	return s.subs.add(fn)
}

// Load returns the durable profile, creating and persisting a fresh one when
// storage is empty or corrupt. It never fails: if storage cannot be read the
// last known profile is returned and nothing is written.
func (s *ProfileStore) Load() models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.load()
	if err != nil {
		return s.lastKnown()
	}
	return p.Clone()
}

// Snapshot is Load for callers that must not act on a stale or placeholder
// profile, such as pushes and evidence submissions.
func (s *ProfileStore) Snapshot() (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.load()
	if err != nil {
		return models.Profile{}, err
	}
	return p.Clone(), nil
}

// Profile is an alias of Load for read-only callers.
func (s *ProfileStore) Profile() models.Profile {
	return s.Load()
}

// AddPoints credits n points. Non-positive n is recorded but not applied.
func (s *ProfileStore) AddPoints(n int64, reason string) models.Profile {
	return s.mutate(func(p *models.Profile) bool {
		if n > 0 {
			p.Points += n
		}
		s.appendOp(p, models.OpAddPoints, map[string]any{"points": n, "reason": reason})
		return true
	})
}

// DeductPoints removes n points, never going below zero.
func (s *ProfileStore) DeductPoints(n int64, reason string) models.Profile {
	return s.mutate(func(p *models.Profile) bool {
		if n > 0 {
			p.Points = max(0, p.Points-n)
		}
		s.appendOp(p, models.OpDeductPoints, map[string]any{"points": n, "reason": reason})
		return true
	})
}

// MarkQuestComplete claims questID and credits reward once. Claiming an
// already claimed quest changes nothing.
func (s *ProfileStore) MarkQuestComplete(questID string, reward int64) models.Profile {
	return s.mutate(func(p *models.Profile) bool {
		if p.HasCompleted(questID) {
			return false
		}
		p.CompletedQuests = append(p.CompletedQuests, questID)
		if reward > 0 {
			p.Points += reward
		}
		s.appendOp(p, models.OpQuestComplete, map[string]any{"questId": questID, "rewardPoints": reward})
		return true
	})
}

// UnmarkQuestComplete revokes a claim and deducts its reward, clamped at
// zero. Revoking an unclaimed quest changes nothing.
func (s *ProfileStore) UnmarkQuestComplete(questID string, reward int64) models.Profile {
	p, _ := s.RevokeClaim(questID, reward)
	return p
}

// RevokeClaim is UnmarkQuestComplete that also reports whether a claim was
// actually removed.
func (s *ProfileStore) RevokeClaim(questID string, reward int64) (models.Profile, bool) {
	return s.mutateChanged(func(p *models.Profile) bool {
		if !p.HasCompleted(questID) {
			return false
		}
		p.CompletedQuests = slices.DeleteFunc(p.CompletedQuests, func(q string) bool { return q == questID })
		if reward > 0 {
			p.Points = max(0, p.Points-reward)
		}
		s.appendOp(p, models.OpQuestRevoke, map[string]any{"questId": questID, "rewardPoints": reward})
		return true
	})
}

// AckSync records a confirmed push of a snapshot that carried the first
// pushed pending ops. Ops appended after the snapshot was taken survive. If
// the profile cannot be read the ops stay queued and are pushed again.
func (s *ProfileStore) AckSync(pushed int, at time.Time) models.Profile {
	s.mu.Lock()
	p, err := s.load()
	if err != nil {
		out := s.lastKnown()
		s.mu.Unlock()
		return out
	}
	pushed = min(max(pushed, 0), len(p.Pending))
	p.Pending = append([]models.PendingOp{}, p.Pending[pushed:]...)
	p.LastSyncAt = &at
	s.save(p)
	out := p.Clone()
	s.mu.Unlock()

	s.subs.notify(out)
	return out
}

// MergeFrom replaces the profile with fn(current) without recording a
// pending op or requesting a sync. The profile id cannot be changed.
func (s *ProfileStore) MergeFrom(fn func(local models.Profile) models.Profile) (models.Profile, error) {
	s.mu.Lock()
	p, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return models.Profile{}, err
	}
	merged := fn(p.Clone())
	merged.ID = p.ID
	merged.Points = max(0, merged.Points)
	s.save(&merged)
	out := merged.Clone()
	s.mu.Unlock()

	s.subs.notify(out)
	return out, nil
}

// Reset signs out: every engine key is removed and a fresh profile created.
func (s *ProfileStore) Reset() models.Profile {
	s.mu.Lock()
	if err := ClearLocalState(s.kv); err != nil {
		s.logger.Warn("[PROFILE] failed to clear local state", zap.Error(err))
	}
	s.last = nil
	var out models.Profile
	if p, err := s.load(); err == nil {
		out = p.Clone()
	} else {
		out = s.lastKnown()
	}
	s.mu.Unlock()

	s.subs.notify(out)
	return out
}

func (s *ProfileStore) mutate(fn func(p *models.Profile) bool) models.Profile {
	p, _ := s.mutateChanged(fn)
	return p
}

func (s *ProfileStore) mutateChanged(fn func(p *models.Profile) bool) (models.Profile, bool) {
	s.mu.Lock()
	p, err := s.load()
	if err != nil {
		out := s.lastKnown()
		s.mu.Unlock()
		s.logger.Warn("[PROFILE] change skipped, profile unreadable", zap.Error(err))
		return out, false
	}
	if !fn(p) {
		out := p.Clone()
		s.mu.Unlock()
		return out, false
	}
	s.save(p)
	out := p.Clone()
	trigger := s.trigger
	s.mu.Unlock()

	if trigger != nil {
		trigger.Trigger()
	}
	s.subs.notify(out)
	return out, true
}

func (s *ProfileStore) appendOp(p *models.Profile, typ string, data map[string]any) {
	p.Pending = append(p.Pending, models.PendingOp{Type: typ, Data: data, TS: s.clock.Now().UnixMilli()})
}

// load must be called with s.mu held. Only a profile that is known to be
// missing or corrupt is replaced; a read error is returned untouched so the
// stored profile is never overwritten by a guess.
func (s *ProfileStore) load() (*models.Profile, error) {
	raw, ok, err := s.kv.Get(ProfileKey)
	if err != nil {
		s.logger.Warn("[PROFILE] failed to read profile", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}
	if ok {
		p, repaired, decoded := decodeProfile(raw, s.newID)
		if decoded {
			if repaired {
				s.save(p)
			}
			s.remember(p)
			return p, nil
		}
		s.logger.Warn("[PROFILE] stored profile is corrupt, starting fresh")
	}

	fresh := &models.Profile{ID: s.newID(), CompletedQuests: []string{}, Pending: []models.PendingOp{}}
	s.save(fresh)
	s.logger.Info("[PROFILE] created profile", zap.String("profile_id", fresh.ID))
	return fresh, nil
}

// lastKnown must be called with s.mu held. Before any successful read it is
// an empty profile without an id.
func (s *ProfileStore) lastKnown() models.Profile {
	if s.last != nil {
		return s.last.Clone()
	}
	return models.Profile{CompletedQuests: []string{}, Pending: []models.PendingOp{}}
}

func (s *ProfileStore) remember(p *models.Profile) {
	c := p.Clone()
	s.last = &c
}

// save must be called with s.mu held. A failed write leaves the in-memory
// result with the caller; the next successful write persists everything.
func (s *ProfileStore) save(p *models.Profile) {
	s.remember(p)
	b, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("[PROFILE] failed to encode profile", zap.Error(err))
		return
	}
	if err := s.kv.Set(ProfileKey, string(b)); err != nil {
		s.logger.Warn("[PROFILE] failed to persist profile", zap.Error(err))
	}
}

// decodeProfile reads a stored profile field by field so one bad field does
// not cost the whole record (in particular the id). repaired is true when a
// default had to be filled in and the blob should be rewritten.
func decodeProfile(raw string, newID func() string) (p *models.Profile, repaired bool, ok bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return nil, false, false
	}

	p = &models.Profile{}
	if err := json.Unmarshal(fields["id"], &p.ID); err != nil || p.ID == "" {
		p.ID = newID()
		repaired = true
	}

	var name *string
	if err := json.Unmarshal(fields["name"], &name); err == nil {
		p.Name = name
	}

	var points float64
	if err := json.Unmarshal(fields["points"], &points); err == nil && points > 0 {
		p.Points = int64(points)
	}

	var quests []string
	if err := json.Unmarshal(fields["completedQuests"], &quests); err == nil {
		for _, q := range quests {
			if !slices.Contains(p.CompletedQuests, q) {
				p.CompletedQuests = append(p.CompletedQuests, q)
			}
		}
	}
	if p.CompletedQuests == nil {
		p.CompletedQuests = []string{}
	}

	p.LastSyncAt = decodeTime(fields["lastSyncAt"])

	if err := json.Unmarshal(fields["pending"], &p.Pending); err != nil || p.Pending == nil {
		p.Pending = []models.PendingOp{}
	}
	return p, repaired, true
}

// decodeTime accepts RFC 3339 strings and unix-millisecond numbers.
func decodeTime(raw json.RawMessage) *time.Time {
	if len(raw) == 0 {
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err == nil && !t.IsZero() {
		return &t
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		t = time.UnixMilli(int64(ms))
		return &t
	}
	return nil
}

// NewProfileID returns a random UUID, falling back to a timestamp plus a
// short random suffix if the system random source is unavailable.
func NewProfileID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return fallbackProfileID(time.Now())
}

func fallbackProfileID(now time.Time) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return fmt.Sprintf("u_%s_%s", strconv.FormatInt(now.UnixMilli(), 36), suffix)
}
