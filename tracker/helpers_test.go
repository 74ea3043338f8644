package tracker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var errDiskFull = errors.New("disk full")

var errDatabaseBusy = errors.New("database is locked")

// memKV is an in-memory KeyValueStore with switchable read and write failures.
type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	failSet bool
	failGet bool
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", false, errDatabaseBusy
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errDiskFull
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) setFailGet(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = fail
}

func (m *memKV) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) Trigger() { c.n.Add(1) }

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	kv       *memKV
	clock    *clockwork.FakeClock
	profiles *ProfileStore
	events   *EventLog
	trigger  *countingTrigger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		kv:      newMemKV(),
		clock:   clockwork.NewFakeClockAt(testEpoch),
		trigger: &countingTrigger{},
	}
	logger := zap.NewNop()
	f.profiles = NewProfileStore(f.kv, f.clock, logger)
	f.profiles.SetSyncTrigger(f.trigger)
	f.events = NewEventLog(f.kv, f.clock, logger, 0)
	return f
}

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)
