package studio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SchedulerConfig configures the frame scheduler.
type SchedulerConfig struct {
	FPS    int // Render rate (default: 60, a display refresh)
	Logger zerolog.Logger
}

// DefaultSchedulerConfig returns a 60 Hz scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{FPS: 60, Logger: zerolog.Nop()}
}

// FrameScheduler calls a render function once per tick while running.
type FrameScheduler struct {
	render   func()
	interval time.Duration
	log      zerolog.Logger

	running atomic.Bool
	ticks   atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewFrameScheduler creates a stopped scheduler.
func NewFrameScheduler(config SchedulerConfig, render func()) *FrameScheduler {
	if config.FPS <= 0 {
		config.FPS = 60
	}
	return &FrameScheduler{
		render:   render,
		interval: time.Second / time.Duration(config.FPS),
		log:      config.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the render loop. Starting a running scheduler is a no-op.
func (s *FrameScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.CompareAndSwap(false, true) {
		return
	}
	if s.cancel != nil {
		// A loop ended by its parent context may still be unwinding
		s.cancel()
		<-s.doneCh
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.doneCh = make(chan struct{})

	go s.loop(loopCtx, s.doneCh)
	s.log.Debug().Dur("interval", s.interval).Msg("scheduler started")
}

// Stop ends the render loop and waits for the in-flight tick to finish.
func (s *FrameScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	<-s.doneCh
	s.running.Store(false)
	s.log.Debug().Uint64("ticks", s.ticks.Load()).Msg("scheduler stopped")
}

// Running reports whether the render loop is active.
func (s *FrameScheduler) Running() bool {
	return s.running.Load()
}

// Ticks returns the number of completed renders.
func (s *FrameScheduler) Ticks() uint64 {
	return s.ticks.Load()
}

func (s *FrameScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	// The loop also ends when the parent context is cancelled
	defer s.running.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.render()
			s.ticks.Add(1)
		}
	}
}
