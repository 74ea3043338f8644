package workers

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"agriquest/models"
	"agriquest/tracker"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ProfileAPI is the remote profile store.
type ProfileAPI interface {
	// Fetch returns nil, nil when no remote record exists.
	Fetch(ctx context.Context, id string) (*models.RemoteProfile, error)
	Upsert(ctx context.Context, p models.RemoteProfile) error
}

// OnlineNotifier reports offline→online transitions.
type OnlineNotifier interface {
	OnOnline(fn func()) (unsubscribe func())
}

// ProfileSyncWorker pushes the local profile to the authority. It holds the
// process-scoped guards (bootstrap done, online listener attached), so
// exactly one should be constructed per process.
type ProfileSyncWorker struct {
	profiles *tracker.ProfileStore
	api      ProfileAPI
	clock    clockwork.Clock
	logger   *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	triggers chan struct{}
	syncMu   sync.Mutex // one push at a time so acks line up with snapshots

	bootMu       sync.Mutex
	bootstrapped bool
	listening    atomic.Bool
}

// NewProfileSyncWorker builds the worker and registers it as the store's
// sync trigger.
func NewProfileSyncWorker(profiles *tracker.ProfileStore, api ProfileAPI, clock clockwork.Clock, logger *zap.Logger, minBackoff, maxBackoff time.Duration) *ProfileSyncWorker {
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	w := &ProfileSyncWorker{
		profiles:   profiles,
		api:        api,
		clock:      clock,
		logger:     logger,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		triggers:   make(chan struct{}, 1),
	}
	profiles.SetSyncTrigger(w)
	return w
}

// Trigger requests a push without blocking. Requests made while one is
// already queued coalesce into it.
func (w *ProfileSyncWorker) Trigger() {
	select {
	case w.triggers <- struct{}{}:
	default:
	}
}

// Flush pushes once if a sync was requested and not yet consumed, e.g. after
// Run has stopped.
func (w *ProfileSyncWorker) Flush(ctx context.Context) (requested, ok bool) {
	select {
	case <-w.triggers:
		return true, w.Push(ctx)
	default:
		return false, true
	}
}

// SyncProfile pushes the current profile as a full snapshot. On success the
// pending ops carried by the snapshot are acknowledged; on failure they stay
// queued. It never panics and reports only success.
func (w *ProfileSyncWorker) SyncProfile(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("[SYNC] push panicked", zap.Any("panic", r))
			ok = false
		}
	}()

	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	p, err := w.profiles.Snapshot()
	if err != nil {
		w.logger.Warn("[SYNC] push skipped", zap.Error(err))
		return false
	}
	carried := len(p.Pending)
	now := w.clock.Now().UTC()

	err = w.api.Upsert(ctx, models.RemoteProfile{
		ID:              p.ID,
		Name:            p.Name,
		Points:          p.Points,
		QuestsCompleted: p.CompletedQuests,
		UpdatedAt:       now,
	})
	if err != nil {
		w.logger.Warn("[SYNC] push failed, pending kept",
			zap.String("profile_id", p.ID),
			zap.Int("pending", carried),
			zap.Error(err))
		return false
	}

	w.profiles.AckSync(carried, now)
	w.logger.Debug("[SYNC] pushed profile",
		zap.String("profile_id", p.ID),
		zap.Int64("points", p.Points),
		zap.Int("acked", carried))
	return true
}

// EnsureProfileBootstrap reconciles the local profile with the remote record
// once per worker. A failed attempt leaves the guard open for a retry.
func (w *ProfileSyncWorker) EnsureProfileBootstrap(ctx context.Context) bool {
	_, ok := w.bootstrap(ctx)
	return ok
}

// Push bootstraps if that has not happened yet and then pushes the current
// snapshot. A first sync made by the bootstrap counts as the push.
func (w *ProfileSyncWorker) Push(ctx context.Context) bool {
	pushed, ok := w.bootstrap(ctx)
	if !ok {
		return false
	}
	if pushed {
		return true
	}
	return w.SyncProfile(ctx)
}

func (w *ProfileSyncWorker) bootstrap(ctx context.Context) (pushed, ok bool) {
	w.bootMu.Lock()
	defer w.bootMu.Unlock()
	if w.bootstrapped {
		return false, true
	}

	local, err := w.profiles.Snapshot()
	if err != nil {
		w.logger.Warn("[SYNC] bootstrap skipped", zap.Error(err))
		return false, false
	}
	remote, err := w.api.Fetch(ctx, local.ID)
	if err != nil {
		w.logger.Warn("[SYNC] bootstrap fetch failed", zap.String("profile_id", local.ID), zap.Error(err))
		return false, false
	}

	if remote == nil {
		w.logger.Info("[SYNC] no remote profile, pushing first sync", zap.String("profile_id", local.ID))
		if !w.SyncProfile(ctx) {
			return false, false
		}
		pushed = true
	} else {
		merged, err := w.profiles.MergeFrom(func(l models.Profile) models.Profile {
			return MergeRemote(l, *remote)
		})
		if err != nil {
			w.logger.Warn("[SYNC] bootstrap merge failed", zap.String("profile_id", local.ID), zap.Error(err))
			return false, false
		}
		w.logger.Info("[SYNC] merged remote profile",
			zap.String("profile_id", merged.ID),
			zap.Int64("points", merged.Points),
			zap.Int("quests", len(merged.CompletedQuests)))
	}

	w.bootstrapped = true
	return pushed, true
}

// MergeRemote folds a remote record into the local profile: points take the
// maximum, claimed quests the union (local order first), and the remote name
// wins only when the remote record changed after the last local sync.
// Pending ops and LastSyncAt stay local.
func MergeRemote(local models.Profile, remote models.RemoteProfile) models.Profile {
	merged := local.Clone()
	merged.Points = max(local.Points, remote.Points, 0)

	for _, q := range remote.QuestsCompleted {
		if q != "" && !slices.Contains(merged.CompletedQuests, q) {
			merged.CompletedQuests = append(merged.CompletedQuests, q)
		}
	}

	var lastSync time.Time
	if local.LastSyncAt != nil {
		lastSync = *local.LastSyncAt
	}
	if remote.Name != nil && remote.UpdatedAt.After(lastSync) {
		name := *remote.Name
		merged.Name = &name
	}
	return merged
}

// EnsureOnlineSyncListener subscribes Trigger to n's online transitions.
// Only the first call per worker registers; later calls report false.
func (w *ProfileSyncWorker) EnsureOnlineSyncListener(n OnlineNotifier) bool {
	if !w.listening.CompareAndSwap(false, true) {
		return false
	}
	n.OnOnline(func() {
		w.logger.Debug("[SYNC] back online, scheduling push")
		w.Trigger()
	})
	return true
}

// Start runs the worker on its own goroutine until ctx is done.
func (w *ProfileSyncWorker) Start(ctx context.Context) {
	w.logger.Info("🔁 starting profile sync worker")
	go w.Run(ctx)
}

// Run is the single consumer of sync requests. Nothing is pushed before the
// bootstrap merge has succeeded. A failed push is retried after a backoff
// that doubles up to maxBackoff and resets on success.
func (w *ProfileSyncWorker) Run(ctx context.Context) {
	backoff := w.minBackoff
	var retry clockwork.Timer
	var retryC <-chan time.Time
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("⏹️ profile sync worker stopped")
			return
		case <-w.triggers:
		case <-retryC:
			retryC = nil
		}

		if w.Push(ctx) {
			backoff = w.minBackoff
			if retry != nil {
				retry.Stop()
			}
			retryC = nil
			continue
		}

		if ctx.Err() != nil {
			continue
		}
		if retry != nil {
			retry.Stop()
		}
		retry = w.clock.NewTimer(backoff)
		retryC = retry.Chan()
		w.logger.Debug("[SYNC] retry scheduled", zap.Duration("in", backoff))
		backoff = min(backoff*2, w.maxBackoff)
	}
}
