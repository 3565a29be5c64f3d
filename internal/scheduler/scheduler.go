package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TickFunc is invoked on every aligned interval.
type TickFunc func(ctx context.Context, bucket time.Time) error

// Job is a named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      TickFunc
}

// Options tune scheduler behaviour.
type Options struct {
	AlignToStart bool
	StartupDelay time.Duration
	// RunOnStart fires every job once before the first aligned tick.
	RunOnStart bool
	// OnResult observes each job run; used for metrics.
	OnResult func(job string, err error)
}

// Scheduler drives aligned execution of housekeeping jobs.
type Scheduler struct {
	opts   Options
	jobs   []Job
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger, jobs ...Job) (*Scheduler, error) {
	for _, job := range jobs {
		if job.Name == "" || job.Run == nil {
			return nil, errors.New("scheduler job needs a name and a run func")
		}
		if job.Interval <= 0 {
			return nil, fmt.Errorf("scheduler job %s: interval must be positive", job.Name)
		}
	}
	return &Scheduler{
		opts:   opts,
		jobs:   jobs,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Run blocks, running every job on its own aligned cadence until ctx is
// cancelled. Job errors are logged, never returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			return s.loop(gctx, job)
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) error {
	log := s.logger.With().Str("job", job.Name).Logger()

	if s.opts.RunOnStart {
		s.execute(ctx, log, job, time.Now().UTC())
	}

	next := s.nextTick(time.Now().UTC(), job.Interval)
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now().UTC(), job.Interval)
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		log.Debug().Time("next_bucket", next).Msg("waiting for next bucket")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		s.execute(ctx, log, job, s.bucketStart(next, job.Interval))
		next = next.Add(job.Interval)
	}
}

func (s *Scheduler) execute(ctx context.Context, log zerolog.Logger, job Job, bucket time.Time) {
	log.Debug().Time("bucket", bucket).Msg("executing scheduled job")
	err := job.Run(ctx, bucket)
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Time("bucket", bucket).Msg("job execution failed")
	}
	if s.opts.OnResult != nil {
		s.opts.OnResult(job.Name, err)
	}
}

func (s *Scheduler) nextTick(now time.Time, interval time.Duration) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(interval)
	}
	bucket := now.Truncate(interval)
	if !bucket.After(now) {
		bucket = bucket.Add(interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time, interval time.Duration) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(interval)
}
