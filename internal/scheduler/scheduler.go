// Package scheduler coalesces mutation-triggered save requests into flushes.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mesh-intelligence/othings/internal/logging"
	"github.com/mesh-intelligence/othings/internal/metrics"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// FlushFunc writes the current state to durable storage.
type FlushFunc func(ctx context.Context) error

// Scheduler decides when a save request turns into a flush. With the
// debounce strategy every request restarts an idle timer and only an
// uninterrupted timer flushes. Immediate flushes on every request; on_close
// flushes only on FlushNow and Shutdown. Flushes never overlap.
type Scheduler struct {
	mu       sync.Mutex
	flushMu  sync.Mutex
	strategy string
	delay    time.Duration
	clock    Clock
	flush    FlushFunc
	onError  func(error)
	logger   logging.Logger
	metrics  *metrics.Metrics

	// gen identifies the live timer; a callback from any older timer is
	// stale and does nothing.
	gen    uint64
	timer  Timer
	dirty  bool
	closed bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStrategy selects debounce, immediate or on_close.
func WithStrategy(strategy string) Option {
	return func(s *Scheduler) {
		if strategy != "" {
			s.strategy = strategy
		}
	}
}

// WithDelay sets the debounce window.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithClock replaces the runtime clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithErrorHandler receives errors from flushes nobody waits on.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New returns a scheduler that calls flush.
func New(flush FlushFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		strategy: types.SyncDebounce,
		delay:    types.DefaultSaveDelay,
		clock:    RealClock{},
		flush:    flush,
		onError:  func(error) {},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestSave records that state changed.
func (s *Scheduler) RequestSave() {
	s.metrics.SaveRequested()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.dirty = true
	switch s.strategy {
	case types.SyncImmediate:
		s.mu.Unlock()
		if err := s.run(context.Background()); err != nil {
			s.onError(err)
		}
		return
	case types.SyncOnClose:
		s.mu.Unlock()
		return
	}
	s.stopTimer()
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
	s.mu.Unlock()
}

// stopTimer cancels the live timer and invalidates callbacks already under
// way. The caller must hold s.mu.
func (s *Scheduler) stopTimer() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	if err := s.run(context.Background()); err != nil {
		s.logger.Warn("scheduled flush failed", "error", err)
		s.onError(err)
	}
}

// FlushNow cancels any pending timer and flushes at once.
func (s *Scheduler) FlushNow(ctx context.Context) error {
	s.mu.Lock()
	s.stopTimer()
	s.mu.Unlock()
	return s.run(ctx)
}

// Shutdown stops accepting requests and performs a final flush. Later calls
// return nil.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopTimer()
	s.mu.Unlock()
	return s.run(ctx)
}

// Pending reports whether a change has not been flushed yet.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Scheduler) run(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	if err := s.flush(ctx); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	return nil
}
