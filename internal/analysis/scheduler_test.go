package analysis_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/visiona/studio-capture/internal/analysis"
)

// TestSchedulerImmediateFirstPass validates that Start runs one pass
// synchronously before the first interval elapses.
func TestSchedulerImmediateFirstPass(t *testing.T) {
	var passes atomic.Int64
	s := analysis.NewScheduler(time.Hour, time.Hour, func() {
		passes.Add(1)
	})
	defer s.Stop()

	s.Start(context.Background())

	if got := passes.Load(); got != 1 {
		t.Errorf("passes after Start = %d, want 1 (immediate first pass)", got)
	}
	t.Log("✅ first pass runs synchronously on Start")
}

func TestSchedulerPeriodicTicks(t *testing.T) {
	var passes atomic.Int64
	s := analysis.NewScheduler(10*time.Millisecond, time.Minute, func() {
		passes.Add(1)
	})

	s.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if got := passes.Load(); got < 3 {
		t.Errorf("passes = %d after 100ms at 10ms interval, want >= 3", got)
	}
	t.Logf("✅ %d passes over 100ms", passes.Load())
}

// TestSchedulerStopIdempotent validates Stop can be called repeatedly
// and from a stopped state without panic or deadlock.
func TestSchedulerStopIdempotent(t *testing.T) {
	s := analysis.NewScheduler(10*time.Millisecond, time.Minute, func() {})

	// Stop before Start is legal.
	s.Stop()

	s.Start(context.Background())
	s.Stop()
	s.Stop()

	// No further passes after Stop.
	t.Log("✅ Stop idempotent from any state")
}

// TestSchedulerCeilingSelfCancel validates the wall-clock ceiling: the
// loop dies on its own even when nobody calls Stop.
func TestSchedulerCeilingSelfCancel(t *testing.T) {
	var passes atomic.Int64
	s := analysis.NewScheduler(5*time.Millisecond, 40*time.Millisecond, func() {
		passes.Add(1)
	})
	defer s.Stop()

	s.Start(context.Background())
	time.Sleep(120 * time.Millisecond)

	frozen := passes.Load()
	time.Sleep(50 * time.Millisecond)

	if got := passes.Load(); got != frozen {
		t.Errorf("passes kept advancing after ceiling: %d -> %d", frozen, got)
	}
	t.Logf("✅ loop self-cancelled at ceiling after %d passes", frozen)
}

func TestSchedulerContextCancel(t *testing.T) {
	var passes atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	s := analysis.NewScheduler(5*time.Millisecond, time.Minute, func() {
		passes.Add(1)
	})
	defer s.Stop()

	s.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	frozen := passes.Load()
	time.Sleep(30 * time.Millisecond)

	if got := passes.Load(); got != frozen {
		t.Errorf("passes kept advancing after context cancel: %d -> %d", frozen, got)
	}
	t.Log("✅ context cancellation stops the loop")
}
