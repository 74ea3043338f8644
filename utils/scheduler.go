package utils

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// NewScheduler returns a gocron scheduler driven by clock that logs through
// logger. Jobs are not started until the caller calls Start.
func NewScheduler(clock clockwork.Clock, logger *zap.Logger) (gocron.Scheduler, error) {
	return gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLogger(schedulerLogger{logger.Sugar()}),
		gocron.WithStopTimeout(5*time.Second),
	)
}

// schedulerLogger adapts zap to gocron's slog-shaped Logger.
type schedulerLogger struct {
	s *zap.SugaredLogger
}

func (l schedulerLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l schedulerLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
func (l schedulerLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l schedulerLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
