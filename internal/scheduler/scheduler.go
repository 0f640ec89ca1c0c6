// Package scheduler runs jobs once a day at a fixed wall-clock time in a
// given location. Time comes from an injectable clock so tests can drive it.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour, Minute int
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Minus returns the time of day d earlier, wrapping past midnight.
func (t TimeOfDay) Minus(d time.Duration) TimeOfDay {
	const day = 24 * 60
	m := (t.Hour*60 + t.Minute - int(d/time.Minute)) % day
	if m < 0 {
		m += day
	}
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

// Next returns the first instant strictly after now at which the wall clock
// in loc shows at.
func Next(now time.Time, at TimeOfDay, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d, at.Hour, at.Minute, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(y, m, d+1, at.Hour, at.Minute, 0, 0, loc)
	}
	return next
}

// Job is a named daily task.
type Job struct {
	Name string
	At   TimeOfDay
	Run  func(ctx context.Context) error
}

// Scheduler fires jobs daily. Ready, when set, gates every run; it is
// expected to block until the chat connection is usable.
type Scheduler struct {
	Clock    clock.Clock
	Location *time.Location
	Ready    func(ctx context.Context) error
	Log      zerolog.Logger

	armed func(job string, next time.Time)
}

// New builds a scheduler on the real clock.
func New(loc *time.Location, ready func(ctx context.Context) error, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{Clock: clock.New(), Location: loc, Ready: ready, Log: log}
}

// Run blocks until ctx is cancelled, firing each job at its time of day.
// Job errors are logged and do not stop the schedule.
func (s *Scheduler) Run(ctx context.Context, jobs ...Job) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error { return s.loop(ctx, job) })
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) error {
	lg := s.Log.With().Str("job", job.Name).Str("at", job.At.String()).Logger()
	for {
		now := s.Clock.Now()
		next := Next(now, job.At, s.Location)
		timer := s.Clock.Timer(next.Sub(now))
		lg.Debug().Time("next", next).Msg("job scheduled")
		if s.armed != nil {
			s.armed(job.Name, next)
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if s.Ready != nil {
			if err := s.Ready(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				lg.Warn().Err(err).Msg("gateway not ready, skipping run")
				continue
			}
		}
		s.runJob(ctx, lg, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, lg zerolog.Logger, job Job) {
	start := s.Clock.Now()
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error().Interface("panic", rec).Msg("job panicked")
		}
	}()

	if err := job.Run(ctx); err != nil {
		lg.Error().Err(err).Dur("took", s.Clock.Now().Sub(start)).Msg("job failed")
		return
	}
	lg.Info().Dur("took", s.Clock.Now().Sub(start)).Msg("job finished")
}
