package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"agriquest/models"
	"agriquest/tracker"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fakeReconciler struct {
	mu      sync.Mutex
	revoked []tracker.Revocation
	err     error
	calls   int
}

func (f *fakeReconciler) Reconcile(ctx context.Context) ([]tracker.Revocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.revoked
	f.revoked = nil
	return out, nil
}

func (f *fakeReconciler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type noticeSink struct {
	mu      sync.Mutex
	notices []string
}

func (s *noticeSink) notify(r tracker.Revocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, r.String())
}

func (s *noticeSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notices...)
}

func TestEvidencePoller_PollNotifiesRevocations(t *testing.T) {
	rec := &fakeReconciler{revoked: []tracker.Revocation{
		{QuestID: "soil-setup", Title: "Soil Setup", Reward: 50, Status: models.EvidenceRejected},
		{QuestID: "pest-scout", Title: "Pest Scout", Reward: 40},
	}}
	sink := &noticeSink{}
	p := NewEvidencePoller(rec, clockwork.NewFakeClockAt(epoch), zap.NewNop(), time.Minute, sink.notify)

	revoked := p.Poll(context.Background())
	assert.Len(t, revoked, 2)
	assert.Equal(t, []string{
		"Soil Setup: evidence rejected, -50 pts",
		"Pest Scout: evidence deleted, -40 pts",
	}, sink.all())

	assert.Empty(t, p.Poll(context.Background()))
	assert.Len(t, sink.all(), 2)
}

func TestEvidencePoller_PollFailureIsQuiet(t *testing.T) {
	rec := &fakeReconciler{err: errOffline}
	sink := &noticeSink{}
	p := NewEvidencePoller(rec, clockwork.NewFakeClockAt(epoch), zap.NewNop(), time.Minute, sink.notify)

	assert.Nil(t, p.Poll(context.Background()))
	assert.Empty(t, sink.all())
}

func TestEvidencePoller_NilNotify(t *testing.T) {
	rec := &fakeReconciler{revoked: []tracker.Revocation{{QuestID: "q", Title: "Q", Reward: 1}}}
	p := NewEvidencePoller(rec, clockwork.NewFakeClockAt(epoch), zap.NewNop(), 0, nil)
	assert.NotPanics(t, func() { p.Poll(context.Background()) })
	assert.Equal(t, time.Minute, p.interval)
}

func TestEvidencePoller_PokeBeforeStartPollsInline(t *testing.T) {
	rec := &fakeReconciler{}
	p := NewEvidencePoller(rec, clockwork.NewFakeClockAt(epoch), zap.NewNop(), time.Minute, nil)

	p.Poke(context.Background())
	assert.Equal(t, 1, rec.callCount())
	assert.NoError(t, p.Stop())
}

func TestEvidencePoller_StartAndPoke(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := &fakeReconciler{}
	p := NewEvidencePoller(rec, clockwork.NewRealClock(), zap.NewNop(), time.Hour, nil)

	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return rec.callCount() == 1 }, waitFor, tick)

	// A poke that lands while the previous run is still finishing is skipped.
	require.Eventually(t, func() bool {
		p.Poke(context.Background())
		return rec.callCount() >= 2
	}, waitFor, 20*time.Millisecond)
	require.NoError(t, p.Stop())
}
