// Package scheduler runs a crawl function on a fixed interval, with
// runtime start/stop control and overlap protection.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pricewatch/pricewatch/internal/logger"
)

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running   bool          `json:"running"`
	Interval  time.Duration `json:"interval"`
	LastRun   time.Time     `json:"last_run,omitempty"`
	NextRun   time.Time     `json:"next_run,omitempty"`
	RunsTotal int           `json:"runs_total"`
}

// Scheduler fires fn every interval. Runs never overlap: a tick arriving
// while fn is still executing is dropped.
type Scheduler struct {
	fn       func(context.Context)
	interval time.Duration

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	running   bool
	inFlight  bool
	lastRun   time.Time
	nextRun   time.Time
	runsTotal int
}

// New creates a stopped scheduler.
func New(interval time.Duration, fn func(context.Context)) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{fn: fn, interval: interval}
}

// Start begins the tick loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.nextRun = time.Now().Add(s.interval)

	logger.Info("scheduler started", "interval", s.interval)
	go s.loop(runCtx, s.done)
}

// Stop halts the tick loop and waits for any in-flight run to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	logger.Info("scheduler stopped")
}

// SetInterval changes the tick interval. Takes effect on the next start;
// restarts the loop if currently running.
func (s *Scheduler) SetInterval(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.mu.Lock()
	wasRunning := s.running
	s.mu.Unlock()

	if wasRunning {
		s.Stop()
	}

	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()
	logger.Info("scheduler interval changed", "interval", interval)

	if wasRunning {
		s.Start(ctx)
	}
}

// Status reports the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:   s.running,
		Interval:  s.interval,
		LastRun:   s.lastRun,
		RunsTotal: s.runsTotal,
	}
	if s.running {
		st.NextRun = s.nextRun
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		logger.Warn("previous scheduled run still in progress, skipping tick")
		return
	}
	s.inFlight = true
	s.lastRun = time.Now()
	s.nextRun = s.lastRun.Add(s.interval)
	s.runsTotal++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	s.fn(ctx)
}
