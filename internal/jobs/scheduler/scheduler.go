package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/trainhub-backend/internal/observability"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/services"
)

const (
	DefaultReminderSpec = "0 8 * * *"
	reminderJob         = "task_reminders"
)

// Scheduler runs periodic jobs on a UTC cron clock.
type Scheduler struct {
	log       *logger.Logger
	cron      *cron.Cron
	reminders services.ReminderService
	metrics   *observability.Metrics
	now       func() time.Time
	ctx       context.Context
}

func New(baseLog *logger.Logger, reminders services.ReminderService, metrics *observability.Metrics, reminderSpec string) (*Scheduler, error) {
	if reminderSpec == "" {
		reminderSpec = DefaultReminderSpec
	}
	log := baseLog.With("component", "Scheduler")
	cl := cronLogger{log: log}
	s := &Scheduler{
		log:       log,
		reminders: reminders,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
		ctx:       context.Background(),
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := s.cron.AddFunc(reminderSpec, func() { _ = s.RunReminders(s.ctx) }); err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", reminderSpec, err)
	}
	return s, nil
}

// Run starts the cron clock and blocks until ctx is done and running jobs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("scheduler started", "entries", len(s.cron.Entries()))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) RunReminders(ctx context.Context) error {
	start := time.Now()
	res, err := s.reminders.SendDueReminders(ctx, s.now())
	if err != nil {
		s.metrics.IncSchedulerRun(reminderJob, "error")
		s.log.Error("reminder run failed", "error", err, "duration", time.Since(start))
		return err
	}
	s.metrics.IncSchedulerRun(reminderJob, "ok")
	s.log.Info("reminder run done", "tasks", res.Tasks, "reminders", res.Reminders, "duration", time.Since(start))
	return nil
}

type cronLogger struct{ log *logger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
