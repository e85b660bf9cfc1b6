package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every aligned interval inside the monitoring
// window.
type TickFunc func(ctx context.Context, bucket time.Time) error

// Options tune scheduler behaviour. WindowStartHour and WindowEndHour bound
// the local hours (inclusive) during which ticks fire; a zero window means
// always on.
type Options struct {
	Interval        time.Duration
	AlignToStart    bool
	StartupDelay    time.Duration
	WindowStartHour int
	WindowEndHour   int
	Location        *time.Location
}

// Scheduler drives aligned execution of check cycles restricted to a local
// monitoring window.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Run blocks, invoking the tick function at each aligned interval until ctx
// is cancelled. Ticks landing outside the monitoring window are skipped.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextTick(s.now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(s.now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_bucket", next).Msg("waiting for next bucket")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		bucket := s.bucketStart(next)
		if !s.InWindow(bucket) {
			s.logger.Info().Time("bucket", bucket).
				Int("window_start", s.opts.WindowStartHour).
				Int("window_end", s.opts.WindowEndHour).
				Msg("outside monitoring window, skipping tick")
			next = next.Add(s.opts.Interval)
			continue
		}

		s.logger.Info().Time("bucket", bucket).Msg("executing scheduled tick")
		if err := tick(ctx, bucket); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("tick execution failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

// InWindow reports whether t falls inside the local monitoring window.
func (s *Scheduler) InWindow(t time.Time) bool {
	if s.opts.WindowStartHour == 0 && s.opts.WindowEndHour == 0 {
		return true
	}
	hour := t.In(s.opts.Location).Hour()
	return hour >= s.opts.WindowStartHour && hour <= s.opts.WindowEndHour
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
