package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per cycle.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Name         string
	Interval     time.Duration
	StartupDelay time.Duration
	// Ready, when set, holds the first cycle back until it is closed.
	Ready <-chan struct{}
}

// Scheduler drives a job at a fixed pause between cycles.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	l := logger.With().Str("component", "scheduler")
	if opts.Name != "" {
		l = l.Str("loop", opts.Name)
	}
	return &Scheduler{opts: opts, logger: l.Logger()}
}

// Run blocks until ctx is cancelled. The tick runs right after the readiness gate and the
// startup delay, then again Interval after each completed cycle. Tick errors and panics are
// logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.Ready != nil {
		s.logger.Debug().Msg("waiting for readiness")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.opts.Ready:
		}
	}
	if err := s.sleep(ctx, s.opts.StartupDelay); err != nil {
		return err
	}

	s.logger.Info().Dur("interval", s.opts.Interval).Msg("loop started")
	for {
		started := time.Now()
		if err := s.runTick(ctx, tick); err != nil {
			s.logger.Error().Err(err).Msg("tick execution failed")
		} else {
			s.logger.Debug().Dur("took", time.Since(started)).Msg("tick completed")
		}

		if err := s.sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, tick TickFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return tick(ctx)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
