package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/crmbot/core/logger"
)

// Schedule holds the cron spec of every job.
type Schedule struct {
	DailyReminder string `yaml:"daily_reminder" envconfig:"SCHEDULE_DAILY_REMINDER"`
	GroupDigest   string `yaml:"group_digest" envconfig:"SCHEDULE_GROUP_DIGEST"`
	WeeklyReport  string `yaml:"weekly_report" envconfig:"SCHEDULE_WEEKLY_REPORT"`
	LedgerPrune   string `yaml:"ledger_prune" envconfig:"SCHEDULE_LEDGER_PRUNE"`
}

// DefaultSchedule returns the stock job times.
func DefaultSchedule() Schedule {
	return Schedule{
		DailyReminder: "0 9 * * *",
		GroupDigest:   "5 9 * * *",
		WeeklyReport:  "0 9 * * 1",
		LedgerPrune:   "30 3 * * *",
	}
}

// Normalize fills empty specs with defaults and validates them.
func (s *Schedule) Normalize() error {
	def := DefaultSchedule()
	for _, it := range []struct {
		name string
		spec *string
		def  string
	}{
		{"daily_reminder", &s.DailyReminder, def.DailyReminder},
		{"group_digest", &s.GroupDigest, def.GroupDigest},
		{"weekly_report", &s.WeeklyReport, def.WeeklyReport},
		{"ledger_prune", &s.LedgerPrune, def.LedgerPrune},
	} {
		if *it.spec == "" {
			*it.spec = it.def
		}
		if _, err := cron.ParseStandard(*it.spec); err != nil {
			return fmt.Errorf("schedule.%s: %w", it.name, err)
		}
	}
	return nil
}

// Scheduler runs Jobs on their cron specs in the business time zone.
type Scheduler struct {
	cron *cron.Cron
	base context.Context
	stop context.CancelFunc
}

// NewScheduler registers every job of jobs.
func NewScheduler(loc *time.Location, sched Schedule, jobs *Jobs) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{})),
	)
	s := &Scheduler{cron: c}
	s.base, s.stop = context.WithCancel(context.Background())

	for _, job := range []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"daily_reminder", sched.DailyReminder, jobs.DailyReminders},
		{"group_digest", sched.GroupDigest, jobs.GroupDigest},
		{"weekly_report", sched.WeeklyReport, jobs.WeeklyReport},
		{"ledger_prune", sched.LedgerPrune, jobs.PruneLedger},
	} {
		if _, err := c.AddFunc(job.spec, s.wrap(job.name, job.run)); err != nil {
			return nil, fmt.Errorf("digest: schedule %s: %w", job.name, err)
		}
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		logger.Debug(s.base, logger.CompDigest, "job.next", slog.Time("at", e.Next))
	}
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.stop()
		return nil
	case <-ctx.Done():
		s.stop()
		return ctx.Err()
	}
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx := logger.WithJob(s.base, name)
		start := time.Now()
		err := run(ctx)
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		}
		if err != nil {
			logger.Error(ctx, logger.CompDigest, "job.fail", append(attrs, logger.Err(err))...)
			return
		}
		logger.Info(ctx, logger.CompDigest, "job.done", attrs...)
	}
}

// cronLogger routes cron's own messages to the digest component.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Component(logger.CompDigest).Debug(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Component(logger.CompDigest).Error(msg, append(keysAndValues, "err", err)...)
}
