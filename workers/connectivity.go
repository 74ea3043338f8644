package workers

import (
	"context"
	"sync"
	"time"

	"agriquest/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// HealthChecker probes the authority.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ConnectivityMonitor periodically probes the authority and fires OnOnline
// callbacks when it becomes reachable again. The state starts offline, so
// the first successful probe counts as coming online.
type ConnectivityMonitor struct {
	checker  HealthChecker
	clock    clockwork.Clock
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func()

	sched gocron.Scheduler
}

func NewConnectivityMonitor(checker HealthChecker, clock clockwork.Clock, logger *zap.Logger, interval time.Duration) *ConnectivityMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ConnectivityMonitor{
		checker:  checker,
		clock:    clock,
		logger:   logger,
		interval: interval,
		timeout:  min(interval, 10*time.Second),
		subs:     map[int]func(){},
	}
}

// OnOnline registers fn for offline→online transitions.
func (m *ConnectivityMonitor) OnOnline(fn func()) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Online reports the result of the latest probe.
func (m *ConnectivityMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Check probes once and returns whether the authority answered.
func (m *ConnectivityMonitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.checker.Health(probeCtx)
	cancel()
	up := err == nil

	m.mu.Lock()
	cameOnline := up && !m.online
	wentOffline := !up && m.online
	m.online = up
	var fire []func()
	if cameOnline {
		for _, fn := range m.subs {
			fire = append(fire, fn)
		}
	}
	m.mu.Unlock()

	switch {
	case cameOnline:
		m.logger.Info("[NET] authority reachable")
	case wentOffline:
		m.logger.Warn("[NET] authority unreachable", zap.Error(err))
	}
	for _, fn := range fire {
		fn()
	}
	return up
}

// Start probes immediately and then every interval until Stop.
func (m *ConnectivityMonitor) Start(ctx context.Context) error {
	sched, err := utils.NewScheduler(m.clock, m.logger)
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() { m.Check(ctx) }),
		gocron.WithName("connectivity-probe"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	m.sched = sched
	return nil
}

// Stop shuts the probe scheduler down.
func (m *ConnectivityMonitor) Stop() error {
	if m.sched == nil {
		return nil
	}
	return m.sched.Shutdown()
}
