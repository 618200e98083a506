// Package schedule fires the export on a cron expression. A file lock keeps
// two runs from overlapping on one host, whether they come from this
// scheduler or from a manual publish.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"imisexport/internal/apperr"
	"imisexport/internal/metrics"
)

// ErrBusy is returned by RunOnce when another run holds the lock.
var ErrBusy = errors.New("schedule: another export run holds the lock")

// Job is one export run.
type Job func(ctx context.Context) error

// Scheduler runs Job on Spec.
type Scheduler struct {
	spec   string
	sched  cron.Schedule
	lock   *flock.Flock
	job    Job
	Logger zerolog.Logger
}

// New validates spec (standard five-field cron or a descriptor such as
// "@daily") and prepares the lock at lockPath.
func New(spec, lockPath string, job Job) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, apperr.Config("schedule.New", "invalid cron expression %q: %v", spec, err)
	}
	if lockPath == "" {
		return nil, apperr.Config("schedule.New", "lock file path is required")
	}
	return &Scheduler{
		spec:   spec,
		sched:  sched,
		lock:   flock.New(lockPath),
		job:    job,
		Logger: log.With().Str("component", "schedule").Logger(),
	}, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time { return s.sched.Next(t) }

// RunOnce runs the job if the lock is free.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("schedule: lock %s: %w", s.lock.Path(), err)
	}
	if !ok {
		return ErrBusy
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.Logger.Warn().Err(err).Msg("unlock failed")
		}
	}()

	start := time.Now()
	err = s.job(ctx)
	metrics.RecordStep("schedule", "run", err, time.Since(start))
	return err
}

// Run fires the job on schedule until ctx is cancelled, then waits for a
// running job to return.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLogger(cronLogger{s.Logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.Logger})),
	)
	c.Schedule(s.sched, cron.FuncJob(func() {
		err := s.RunOnce(ctx)
		switch {
		case errors.Is(err, ErrBusy):
			s.Logger.Warn().Msg("previous run still active, skipping")
		case err != nil:
			s.Logger.Error().Err(err).Msg("scheduled run failed")
		default:
			s.Logger.Info().Time("next", s.Next(time.Now())).Msg("scheduled run finished")
		}
	}))

	s.Logger.Info().Str("spec", s.spec).Time("next", s.Next(time.Now())).Msg("scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.Logger.Info().Msg("scheduler stopped")
	return nil
}

// cronLogger adapts zerolog to cron's logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug().Fields(kv).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error().Err(err).Fields(kv).Msg(msg)
}
