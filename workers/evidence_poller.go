package workers

import (
	"context"
	"time"

	"agriquest/tracker"
	"agriquest/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Reconciler refreshes evidence status and revokes unapproved claims.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]tracker.Revocation, error)
}

// EvidencePoller reconciles evidence status on a schedule and on demand
// (Poke), reporting every revocation to the notify callback.
type EvidencePoller struct {
	review   Reconciler
	clock    clockwork.Clock
	logger   *zap.Logger
	interval time.Duration
	notify   func(tracker.Revocation)

	sched gocron.Scheduler
	job   gocron.Job
}

// NewEvidencePoller builds a poller. notify may be nil.
func NewEvidencePoller(review Reconciler, clock clockwork.Clock, logger *zap.Logger, interval time.Duration, notify func(tracker.Revocation)) *EvidencePoller {
	if interval <= 0 {
		interval = time.Minute
	}
	if notify == nil {
		notify = func(tracker.Revocation) {}
	}
	return &EvidencePoller{review: review, clock: clock, logger: logger, interval: interval, notify: notify}
}

// Poll reconciles once. Failures are logged and leave local state alone.
func (p *EvidencePoller) Poll(ctx context.Context) []tracker.Revocation {
	revoked, err := p.review.Reconcile(ctx)
	if err != nil {
		p.logger.Debug("[REVIEW] poll skipped", zap.Error(err))
		return nil
	}
	for _, r := range revoked {
		p.logger.Warn("[REVIEW] reward revoked", zap.String("notice", r.String()))
		p.notify(r)
	}
	return revoked
}

// Start polls immediately and then every interval until Stop.
func (p *EvidencePoller) Start(ctx context.Context) error {
	sched, err := utils.NewScheduler(p.clock, p.logger)
	if err != nil {
		return err
	}
	job, err := sched.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(func() { p.Poll(ctx) }),
		gocron.WithName("evidence-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	p.sched, p.job = sched, job
	return nil
}

// Poke asks for an out-of-schedule poll, e.g. when the user returns to the
// app. Before Start it polls synchronously.
func (p *EvidencePoller) Poke(ctx context.Context) {
	if p.job == nil {
		p.Poll(ctx)
		return
	}
	if err := p.job.RunNow(); err != nil {
		p.logger.Debug("[REVIEW] poke failed", zap.Error(err))
	}
}

// Stop shuts the poll scheduler down.
func (p *EvidencePoller) Stop() error {
	if p.sched == nil {
		return nil
	}
	return p.sched.Shutdown()
}
