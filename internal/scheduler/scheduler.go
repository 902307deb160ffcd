// Package scheduler runs named background jobs on a fixed interval. The
// service uses two instances: the hourly follow-up batch and the outbound
// queue drain. Ticks are panic-isolated so one bad batch never kills the
// loop, and Stop blocks until the loop goroutine has exited.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler invokes a tick function on a fixed interval until stopped.
// The first tick fires immediately on Start.
type Scheduler struct {
	name     string
	interval time.Duration
	tickFn   func(context.Context)

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Scheduler. interval must be positive and tickFn non-nil.
func New(name string, interval time.Duration, tickFn func(context.Context)) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler: interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("scheduler: tick function must not be nil")
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		tickFn:   tickFn,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the loop goroutine. It reports false when already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		log.Info().
			Str("job", s.name).
			Dur("interval", s.interval).
			Msg("scheduler started")

		s.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info().Str("job", s.name).Msg("scheduler stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the loop and waits for it to exit. It reports false when the
// scheduler was not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	log.Info().Str("job", s.name).Msg("scheduler stopped")
	return true
}

// IsRunning reports whether the loop goroutine is active.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// safeTick runs one tick with panic isolation and duration logging.
func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("job", s.name).
				Interface("panic", r).
				Msg("scheduler tick panic recovered")
		}
	}()

	start := time.Now()
	s.tickFn(ctx)
	log.Debug().
		Str("job", s.name).
		Dur("duration", time.Since(start)).
		Msg("scheduler tick completed")
}
