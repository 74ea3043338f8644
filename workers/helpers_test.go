package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agriquest/models"
	"agriquest/tracker"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var (
	epoch      = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	errOffline = errors.New("offline")
	errBusy    = errors.New("database is locked")
)

type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	failGet bool
}

func (m *memKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", false, errBusy
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeProfileAPI struct {
	mu          sync.Mutex
	remote      *models.RemoteProfile
	fetchErr    error
	failUpserts int
	upserts     []models.RemoteProfile
	attempts    int
	onUpsert    func()
}

func (f *fakeProfileAPI) Fetch(ctx context.Context, id string) (*models.RemoteProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.remote == nil || f.remote.ID != id {
		return nil, nil
	}
	r := *f.remote
	return &r, nil
}

func (f *fakeProfileAPI) Upsert(ctx context.Context, p models.RemoteProfile) error {
	f.mu.Lock()
	f.attempts++
	hook := f.onUpsert
	fail := f.failUpserts > 0
	if fail {
		f.failUpserts--
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return errOffline
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, p)
	return nil
}

func (f *fakeProfileAPI) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeProfileAPI) pushed() []models.RemoteProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RemoteProfile(nil), f.upserts...)
}

func newTestWorker(t *testing.T, api ProfileAPI, clock clockwork.Clock) (*ProfileSyncWorker, *tracker.ProfileStore) {
	t.Helper()
	w, store, _ := newTestWorkerKV(t, api, clock)
	return w, store
}

func newTestWorkerKV(t *testing.T, api ProfileAPI, clock clockwork.Clock) (*ProfileSyncWorker, *tracker.ProfileStore, *memKV) {
	t.Helper()
	logger := zap.NewNop()
	kv := &memKV{data: map[string]string{}}
	store := tracker.NewProfileStore(kv, clock, logger)
	return NewProfileSyncWorker(store, api, clock, logger, time.Second, 4*time.Second), store, kv
}
