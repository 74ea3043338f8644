package workers

import (
	"context"
	"testing"
	"time"

	"agriquest/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func strptr(s string) *string { return &s }

func TestSyncProfile_PushesSnapshotAndAcks(t *testing.T) {
	api := &fakeProfileAPI{}
	clock := clockwork.NewFakeClockAt(epoch)
	w, store := newTestWorker(t, api, clock)

	store.AddPoints(10, "seed")
	store.MarkQuestComplete("weather-prep", 25)
	require.Len(t, store.Profile().Pending, 2)

	require.True(t, w.SyncProfile(context.Background()))

	pushed := api.pushed()
	require.Len(t, pushed, 1)
	assert.Equal(t, int64(35), pushed[0].Points)
	assert.Equal(t, []string{"weather-prep"}, pushed[0].QuestsCompleted)
	assert.True(t, epoch.Equal(pushed[0].UpdatedAt))

	p := store.Profile()
	assert.Empty(t, p.Pending)
	require.NotNil(t, p.LastSyncAt)
	assert.True(t, epoch.Equal(*p.LastSyncAt))
}

func TestSyncProfile_FailureKeepsPending(t *testing.T) {
	api := &fakeProfileAPI{failUpserts: 1}
	w, store := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))

	store.MarkQuestComplete("soil-setup", 50)
	assert.False(t, w.SyncProfile(context.Background()))

	p := store.Profile()
	assert.Len(t, p.Pending, 1)
	assert.Nil(t, p.LastSyncAt)
	assert.Equal(t, int64(50), p.Points, "local state stays authoritative")
}

func TestSyncProfile_OpsDuringPushSurvive(t *testing.T) {
	api := &fakeProfileAPI{}
	w, store := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))
	store.AddPoints(1, "before")

	once := false
	api.onUpsert = func() {
		if !once {
			once = true
			store.AddPoints(2, "during")
		}
	}
	require.True(t, w.SyncProfile(context.Background()))

	p := store.Profile()
	require.Len(t, p.Pending, 1)
	assert.Equal(t, "during", p.Pending[0].Data["reason"])
	assert.Equal(t, int64(3), p.Points)
}

func TestSyncProfile_UnreadableProfileIsNotPushed(t *testing.T) {
	remote := models.RemoteProfile{Points: 90}
	api := &fakeProfileAPI{}
	w, store, kv := newTestWorkerKV(t, api, clockwork.NewFakeClockAt(epoch))
	local := store.MarkQuestComplete("soil-setup", 50)
	remote.ID = local.ID
	api.remote = &remote

	kv.mu.Lock()
	kv.failGet = true
	kv.mu.Unlock()
	assert.False(t, w.SyncProfile(context.Background()))
	assert.False(t, w.EnsureProfileBootstrap(context.Background()), "guard stays open")
	assert.Empty(t, api.pushed())

	kv.mu.Lock()
	kv.failGet = false
	kv.mu.Unlock()
	require.True(t, w.EnsureProfileBootstrap(context.Background()))
	p := store.Profile()
	assert.Equal(t, local.ID, p.ID)
	assert.Equal(t, int64(90), p.Points)
	assert.Equal(t, []string{"soil-setup"}, p.CompletedQuests)
}

func TestSyncProfile_RecoversPanics(t *testing.T) {
	api := &fakeProfileAPI{onUpsert: func() { panic("transport bug") }}
	w, store := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))
	store.AddPoints(1, "x")

	var ok bool
	require.NotPanics(t, func() { ok = w.SyncProfile(context.Background()) })
	assert.False(t, ok)
	assert.Len(t, store.Profile().Pending, 1)
}

func TestEnsureProfileBootstrap_FirstSync(t *testing.T) {
	api := &fakeProfileAPI{}
	w, store := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))
	store.AddPoints(5, "offline")

	require.True(t, w.EnsureProfileBootstrap(context.Background()))
	require.Len(t, api.pushed(), 1)
	assert.Equal(t, int64(5), api.pushed()[0].Points)

	require.True(t, w.EnsureProfileBootstrap(context.Background()))
	assert.Len(t, api.pushed(), 1, "bootstrap runs once")
}

func TestEnsureProfileBootstrap_MergesWithoutPushing(t *testing.T) {
	api := &fakeProfileAPI{}
	w, store := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))
	local := store.MarkQuestComplete("pest-scout", 40)
	local = store.DeductPoints(20, "spent")

	api.remote = &models.RemoteProfile{
		ID:              local.ID,
		Name:            strptr("Asha"),
		Points:          70,
		QuestsCompleted: []string{"soil-setup", "pest-scout"},
		UpdatedAt:       epoch.Add(-time.Hour),
	}

	require.True(t, w.EnsureProfileBootstrap(context.Background()))
	assert.Empty(t, api.pushed(), "merged result is not echoed back")

	p := store.Profile()
	assert.Equal(t, int64(70), p.Points)
	assert.Equal(t, []string{"pest-scout", "soil-setup"}, p.CompletedQuests)
	require.NotNil(t, p.Name)
	assert.Equal(t, "Asha", *p.Name, "never-synced local takes the remote name")
	assert.Len(t, p.Pending, len(local.Pending), "pending ops stay queued")
}

func TestEnsureProfileBootstrap_FailureLeavesGuardOpen(t *testing.T) {
	api := &fakeProfileAPI{fetchErr: errOffline}
	w, _ := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))

	assert.False(t, w.EnsureProfileBootstrap(context.Background()))

	api.mu.Lock()
	api.fetchErr = nil
	api.mu.Unlock()
	assert.True(t, w.EnsureProfileBootstrap(context.Background()))
	assert.Len(t, api.pushed(), 1)
}

func TestEnsureProfileBootstrap_FirstSyncFailure(t *testing.T) {
	api := &fakeProfileAPI{failUpserts: 1}
	w, _ := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))

	assert.False(t, w.EnsureProfileBootstrap(context.Background()))
	assert.True(t, w.EnsureProfileBootstrap(context.Background()))
	assert.Equal(t, 2, api.attemptCount())
}

func TestMergeRemote(t *testing.T) {
	synced := epoch
	tests := []struct {
		name       string
		local      models.Profile
		remote     models.RemoteProfile
		wantPoints int64
		wantQuests []string
		wantName   *string
	}{
		{
			name:       "local points higher",
			local:      models.Profile{Points: 50, CompletedQuests: []string{}},
			remote:     models.RemoteProfile{Points: 30},
			wantPoints: 50,
			wantQuests: []string{},
		},
		{
			name:       "remote points higher",
			local:      models.Profile{Points: 20, CompletedQuests: []string{}},
			remote:     models.RemoteProfile{Points: 70},
			wantPoints: 70,
			wantQuests: []string{},
		},
		{
			name:       "quest union never unclaims",
			local:      models.Profile{CompletedQuests: []string{"a", "b"}},
			remote:     models.RemoteProfile{QuestsCompleted: []string{"b", "c"}},
			wantQuests: []string{"a", "b", "c"},
		},
		{
			name:       "remote name newer than last sync",
			local:      models.Profile{Name: strptr("old"), LastSyncAt: &synced, CompletedQuests: []string{}},
			remote:     models.RemoteProfile{Name: strptr("new"), UpdatedAt: synced.Add(time.Second)},
			wantQuests: []string{},
			wantName:   strptr("new"),
		},
		{
			name:       "remote name not newer",
			local:      models.Profile{Name: strptr("old"), LastSyncAt: &synced, CompletedQuests: []string{}},
			remote:     models.RemoteProfile{Name: strptr("new"), UpdatedAt: synced},
			wantQuests: []string{},
			wantName:   strptr("old"),
		},
		{
			name:       "remote without name keeps local",
			local:      models.Profile{Name: strptr("old"), CompletedQuests: []string{}},
			remote:     models.RemoteProfile{UpdatedAt: synced},
			wantQuests: []string{},
			wantName:   strptr("old"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeRemote(tt.local, tt.remote)
			assert.Equal(t, tt.wantPoints, got.Points)
			assert.Equal(t, tt.wantQuests, got.CompletedQuests)
			assert.Equal(t, tt.wantName, got.Name)
		})
	}
}

func TestMergeRemote_DoesNotAliasLocal(t *testing.T) {
	local := models.Profile{CompletedQuests: make([]string, 1, 4)}
	local.CompletedQuests[0] = "a"
	_ = MergeRemote(local, models.RemoteProfile{QuestsCompleted: []string{"b"}})
	assert.Equal(t, []string{"a"}, local.CompletedQuests)
	assert.Equal(t, "", local.CompletedQuests[:2][1], "merge must not write into the local backing array")
}

func TestTriggerCoalesces(t *testing.T) {
	w, _ := newTestWorker(t, &fakeProfileAPI{}, clockwork.NewFakeClockAt(epoch))
	for i := 0; i < 5; i++ {
		w.Trigger()
	}
	assert.Len(t, w.triggers, 1)
}

func TestFlush(t *testing.T) {
	api := &fakeProfileAPI{}
	w, store := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))

	requested, ok := w.Flush(context.Background())
	assert.False(t, requested)
	assert.True(t, ok)
	assert.Zero(t, api.attemptCount())

	store.AddPoints(3, "x")
	requested, ok = w.Flush(context.Background())
	assert.True(t, requested)
	assert.True(t, ok)
	assert.Empty(t, store.Profile().Pending)
	assert.Empty(t, w.triggers)
}

func TestPush_MergesBeforePushing(t *testing.T) {
	api := &fakeProfileAPI{}
	w, store := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))
	id := store.AddPoints(5, "offline").ID
	api.remote = &models.RemoteProfile{ID: id, Points: 90, QuestsCompleted: []string{"market-check"}}

	require.True(t, w.Push(context.Background()))

	pushed := api.pushed()
	require.Len(t, pushed, 1)
	assert.Equal(t, int64(90), pushed[0].Points, "remote progress is never overwritten by a lower snapshot")
	assert.Equal(t, []string{"market-check"}, pushed[0].QuestsCompleted)
	assert.Empty(t, store.Profile().Pending)
}

func TestPush_FirstSyncIsTheBootstrap(t *testing.T) {
	api := &fakeProfileAPI{}
	w, store := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))
	store.AddPoints(5, "offline")

	require.True(t, w.Push(context.Background()))
	assert.Len(t, api.pushed(), 1)

	require.True(t, w.Push(context.Background()))
	assert.Len(t, api.pushed(), 2)
}

func TestPush_BootstrapFailure(t *testing.T) {
	api := &fakeProfileAPI{fetchErr: errOffline}
	w, store := newTestWorker(t, api, clockwork.NewFakeClockAt(epoch))
	store.AddPoints(5, "offline")

	assert.False(t, w.Push(context.Background()))
	assert.Zero(t, api.attemptCount())
	assert.Len(t, store.Profile().Pending, 1)
}

type fakeNotifier struct{ registered []func() }

func (f *fakeNotifier) OnOnline(fn func()) func() {
	f.registered = append(f.registered, fn)
	return func() {}
}

func TestEnsureOnlineSyncListener_Once(t *testing.T) {
	w, _ := newTestWorker(t, &fakeProfileAPI{}, clockwork.NewFakeClockAt(epoch))
	n := &fakeNotifier{}

	assert.True(t, w.EnsureOnlineSyncListener(n))
	assert.False(t, w.EnsureOnlineSyncListener(n))
	assert.False(t, w.EnsureOnlineSyncListener(&fakeNotifier{}))
	require.Len(t, n.registered, 1)

	n.registered[0]()
	assert.Len(t, w.triggers, 1)
}

func TestRun_RetriesWithBackoff(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	api := &fakeProfileAPI{failUpserts: 2}
	clock := clockwork.NewFakeClockAt(epoch)
	w, store := newTestWorker(t, api, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	store.AddPoints(5, "offline")
	require.Eventually(t, func() bool { return api.attemptCount() == 1 }, waitFor, tick)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return api.attemptCount() == 2 }, waitFor, tick)

	// Second retry waits twice as long.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	assert.Never(t, func() bool { return api.attemptCount() > 2 }, 50*time.Millisecond, tick)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return api.attemptCount() == 3 }, waitFor, tick)

	require.Eventually(t, func() bool { return len(store.Profile().Pending) == 0 }, waitFor, tick)
	assert.Len(t, api.pushed(), 1)

	cancel()
	<-done
}

func TestRun_TriggerDuringBackoffSyncsNow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	api := &fakeProfileAPI{failUpserts: 1}
	clock := clockwork.NewFakeClockAt(epoch)
	w, store := newTestWorker(t, api, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	store.AddPoints(1, "a")
	require.Eventually(t, func() bool { return api.attemptCount() == 1 }, waitFor, tick)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	store.AddPoints(1, "b")
	require.Eventually(t, func() bool { return api.attemptCount() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return len(store.Profile().Pending) == 0 }, waitFor, tick)

	cancel()
	<-done
}
