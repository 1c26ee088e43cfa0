// Package scheduler runs the background jobs: the conversion outbox
// worker, ad lifecycle transitions, and daily analytics rollups.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one named unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs registered jobs on their intervals until the context
// is cancelled. Job failures are logged and the schedule keeps going;
// a failed run is retried naturally on the next tick.
type Scheduler struct {
	lg   *zap.Logger
	jobs []scheduledJob
}

type scheduledJob struct {
	name     string
	interval time.Duration
	// at, when non-nil, aligns runs to the given time of day instead of
	// ticking from startup.
	at  *time.Duration
	job Job
}

// New creates an empty Scheduler.
func New(lg *zap.Logger) *Scheduler {
	return &Scheduler{lg: lg}
}

// Every registers a job that runs on a fixed interval, first run one
// interval after Start.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	s.jobs = append(s.jobs, scheduledJob{name: name, interval: interval, job: job})
}

// DailyAt registers a job that runs once a day at the given offset from
// midnight (local time).
func (s *Scheduler) DailyAt(name string, at time.Duration, job Job) {
	s.jobs = append(s.jobs, scheduledJob{name: name, interval: 24 * time.Hour, at: &at, job: job})
}

// Start launches one goroutine per job and blocks until the context is
// cancelled and every job loop has exited.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		g.Go(func() error {
			s.runLoop(ctx, j)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, j scheduledJob) {
	lg := s.lg.With(zap.String("job", j.name))
	lg.Info("job scheduled", zap.Duration("interval", j.interval))

	timer := time.NewTimer(s.firstDelay(j))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info("job stopped")
			return
		case <-timer.C:
		}

		start := time.Now()
		if err := j.job(ctx); err != nil {
			// Logged, not raised: the next tick retries whatever is
			// still eligible.
			lg.Error("job run failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		} else {
			lg.Debug("job run complete", zap.Duration("took", time.Since(start)))
		}

		timer.Reset(s.nextDelay(j))
	}
}

func (s *Scheduler) firstDelay(j scheduledJob) time.Duration {
	if j.at == nil {
		return j.interval
	}
	return untilNextDaily(time.Now(), *j.at)
}

func (s *Scheduler) nextDelay(j scheduledJob) time.Duration {
	if j.at == nil {
		return j.interval
	}
	return untilNextDaily(time.Now(), *j.at)
}

// untilNextDaily returns the duration from now until the next
// occurrence of the given offset from midnight.
func untilNextDaily(now time.Time, at time.Duration) time.Duration {
	year, month, day := now.Date()
	next := time.Date(year, month, day, 0, 0, 0, 0, now.Location()).Add(at)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
