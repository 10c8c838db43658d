// Package jobs runs the periodic analytics work on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Dikshant-04/webapp/analytics"
)

// Job names, also used as metric labels.
const (
	JobDaily     = "daily_aggregate"
	JobMonthly   = "monthly_aggregate"
	JobRetention = "retention_sweep"
	JobDigest    = "weekly_digest"
)

// Specs are the cron expressions, evaluated in the reference timezone.
type Specs struct {
	Daily     string
	Monthly   string
	Retention string
	Digest    string
}

// DefaultSpecs: daily at 00:05, monthly on the 1st at 00:30, sweep on Sunday
// at 01:00, digest on Monday at 09:00.
var DefaultSpecs = Specs{
	Daily:     "5 0 * * *",
	Monthly:   "30 0 1 * *",
	Retention: "0 1 * * 0",
	Digest:    "0 9 * * 1",
}

// Deps are the analytics components the scheduler drives. A nil Reporter
// disables the digest.
type Deps struct {
	Daily    *analytics.DailyAggregator
	Monthly  *analytics.MonthlyAggregator
	Sweeper  *analytics.Sweeper
	Reporter *analytics.Reporter
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	deps    Deps
	specs   Specs
	cron    *cron.Cron
	logger  *zap.Logger
	now     func() time.Time
	mu      sync.Mutex
	running map[string]bool
}

func NewScheduler(deps Deps, specs Specs, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if specs.Daily == "" {
		specs.Daily = DefaultSpecs.Daily
	}
	if specs.Monthly == "" {
		specs.Monthly = DefaultSpecs.Monthly
	}
	if specs.Retention == "" {
		specs.Retention = DefaultSpecs.Retention
	}
	if specs.Digest == "" {
		specs.Digest = DefaultSpecs.Digest
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))),
	)
	return &Scheduler{
		deps:    deps,
		specs:   specs,
		cron:    c,
		logger:  logger,
		now:     time.Now,
		running: map[string]bool{},
	}
}

type jobEntry struct {
	spec string
	name string
	fn   func(context.Context) error
}

// Start registers every job and starts the cron loop.
func (s *Scheduler) Start() error {
	entries := []jobEntry{
		{s.specs.Daily, JobDaily, s.runDaily},
		{s.specs.Monthly, JobMonthly, s.runMonthly},
		{s.specs.Retention, JobRetention, s.runRetention},
	}
	if s.deps.Reporter != nil {
		entries = append(entries, jobEntry{s.specs.Digest, JobDigest, s.runDigest})
	}
	for _, e := range entries {
		e := e
		if _, err := s.cron.AddFunc(e.spec, func() { s.runSafely(e.name, e.fn) }); err != nil {
			return err
		}
		s.logger.Info("scheduled job", zap.String("job", e.name), zap.String("spec", e.spec))
	}
	s.cron.Start()
	return nil
}

// Stop stops scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runSafely runs a job unless the same job is still executing, and recovers
// from panics so one bad run does not take the process down.
func (s *Scheduler) runSafely(name string, fn func(context.Context) error) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.logger.Warn("skipping job, previous run still active", zap.String("job", name))
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	started := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.logger.Error("panic recovered in background job", zap.String("job", name), zap.Any("panic", r))
		}
		analytics.ObserveJob(name, time.Since(started).Seconds(), err)
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	if err = fn(ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Info("job finished", zap.String("job", name), zap.Duration("took", time.Since(started)))
}

func (s *Scheduler) runDaily(ctx context.Context) error {
	_, err := s.deps.Daily.AggregateDay(ctx, s.deps.Daily.Yesterday())
	return err
}

func (s *Scheduler) runMonthly(ctx context.Context) error {
	y, m := s.deps.Monthly.PreviousMonth()
	_, err := s.deps.Monthly.AggregateMonth(ctx, y, m)
	return err
}

func (s *Scheduler) runRetention(ctx context.Context) error {
	_, err := s.deps.Sweeper.Sweep(ctx, 0)
	return err
}

func (s *Scheduler) runDigest(ctx context.Context) error {
	_, err := s.deps.Reporter.WeeklyDigest(ctx, s.now())
	return err
}
