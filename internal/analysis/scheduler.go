package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives the quality analyzers on a fixed interval while the
// workflow sits in the quality-check phase.
//
// Contract:
//   - the first pass runs immediately on Start, with no initial delay
//   - Stop() is idempotent and safe from any goroutine
//   - the loop self-cancels after a wall-clock ceiling even if nobody
//     calls Stop, so an orphaned timer cannot outlive its purpose
type Scheduler struct {
	interval time.Duration
	ceiling  time.Duration
	pass     func()

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	startedMu sync.Mutex
	started   bool
}

// NewScheduler creates a stopped scheduler. pass is one full analysis
// tick (analyzers + composite + notification); it must never panic
// (analyzers absorb their own failures).
func NewScheduler(interval, ceiling time.Duration, pass func()) *Scheduler {
	return &Scheduler{
		interval: interval,
		ceiling:  ceiling,
		pass:     pass,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the first pass synchronously, then begins the periodic
// loop. Only the first call starts the loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.startedMu.Lock()
	if s.started {
		s.startedMu.Unlock()
		return
	}
	s.started = true
	s.startedMu.Unlock()

	// Immediate first pass: the caller sees a verdict without waiting
	// a full interval.
	s.pass()

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	deadline := time.NewTimer(s.ceiling)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-deadline.C:
			slog.Info("analysis loop reached wall-clock ceiling, self-cancelling",
				"ceiling", s.ceiling)
			return
		case <-ticker.C:
			s.pass()
		}
	}
}

// Stop cancels the loop and waits for it to exit. Idempotent: stopping
// an already-stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}
