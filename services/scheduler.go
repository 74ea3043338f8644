package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SchedulePurge registers a job on sched that permanently removes evidence
// deleted more than retention ago.
func (s *EvidenceService) SchedulePurge(ctx context.Context, sched gocron.Scheduler, every, retention time.Duration) (gocron.Job, error) {
	return sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			n, err := s.PurgeDeleted(ctx, s.now().Add(-retention))
			if err != nil {
				s.Logger.Error("[Scheduler] evidence purge failed", zap.Error(err))
				return
			}
			if n > 0 {
				s.Logger.Info("[Scheduler] purged deleted evidence", zap.Int64("rows", n))
			}
		}),
		gocron.WithName("evidence-purge"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
