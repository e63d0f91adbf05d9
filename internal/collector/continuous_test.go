package collector

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"replay-analyzer/internal/bga"
)

// fakeRunner records batches and can fail with the replay limit once
type fakeRunner struct {
	batches   atomic.Int32
	limitOnce atomic.Bool
}

func (r *fakeRunner) Run(ctx context.Context, tableIDs []string) error {
	r.batches.Add(1)
	if r.limitOnce.CompareAndSwap(true, false) {
		return bga.ErrReplayLimit
	}
	return nil
}

func fastConfig() ContinuousConfig {
	return ContinuousConfig{
		BatchInterval: time.Millisecond,
		LimitBackoff:  5 * time.Millisecond,
		ReduceEvery:   2,
	}
}

// TestSliceSource verifies batching and the drained error
func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]string{"1", "2", "3", "4", "5"}, 2)

	sizes := []int{}
	for {
		batch, err := src.NextBatch(context.Background())
		if errors.Is(err, ErrSourceDrained) {
			break
		}
		if err != nil {
			t.Fatalf("NextBatch failed: %v", err)
		}
		sizes = append(sizes, len(batch))
	}

	want := []int{2, 2, 1}
	if len(sizes) != len(want) {
		t.Fatalf("Got %d batches, want %d", len(sizes), len(want))
	}
	for i, n := range want {
		if sizes[i] != n {
			t.Errorf("Batch %d size = %d, want %d", i, sizes[i], n)
		}
	}
}

// TestContinuousCollector_DrainsSource verifies every batch runs and a
// final reduce fires when the source is exhausted.
func TestContinuousCollector_DrainsSource(t *testing.T) {
	runner := &fakeRunner{}
	var reduces atomic.Int32
	reduce := func(ctx context.Context) error {
		reduces.Add(1)
		return nil
	}

	cc := NewContinuousCollector(runner, NewSliceSource([]string{"1", "2", "3", "4"}, 2), reduce, fastConfig())
	if err := cc.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := runner.batches.Load(); got != 2 {
		t.Errorf("Runner got %d batches, want 2", got)
	}
	if cc.BatchesDone() != 2 {
		t.Errorf("BatchesDone = %d, want 2", cc.BatchesDone())
	}
	// One periodic reduce (after batch 2) plus the final one
	if got := reduces.Load(); got != 2 {
		t.Errorf("Reduce ran %d times, want 2", got)
	}
}

// TestContinuousCollector_LimitBackoff verifies a limited batch is not
// counted done and the loop resumes after the backoff.
func TestContinuousCollector_LimitBackoff(t *testing.T) {
	runner := &fakeRunner{}
	runner.limitOnce.Store(true)

	cc := NewContinuousCollector(runner, NewSliceSource([]string{"1", "2"}, 1), nil, fastConfig())

	start := time.Now()
	if err := cc.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// First batch hits the limit, then two clean batches
	if got := runner.batches.Load(); got != 3 {
		t.Errorf("Runner got %d batches, want 3", got)
	}
	if cc.BatchesDone() != 2 {
		t.Errorf("BatchesDone = %d, want 2", cc.BatchesDone())
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("Loop did not back off after the replay limit")
	}
}

// TestContinuousCollector_Shutdown verifies Shutdown stops the loop between
// batches and still runs the final reduce.
func TestContinuousCollector_Shutdown(t *testing.T) {
	runner := &fakeRunner{}
	var reduces atomic.Int32
	reduce := func(ctx context.Context) error {
		reduces.Add(1)
		return nil
	}

	config := fastConfig()
	config.BatchInterval = time.Hour

	src := NewSliceSource([]string{"1", "2", "3"}, 1)
	cc := NewContinuousCollector(runner, src, reduce, config)

	done := make(chan error, 1)
	go func() { done <- cc.Run(context.Background()) }()

	// Let the first batch land, then stop
	deadline := time.Now().Add(time.Second)
	for runner.batches.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cc.Shutdown()
	cc.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after Shutdown")
	}

	if got := runner.batches.Load(); got != 1 {
		t.Errorf("Runner got %d batches, want 1", got)
	}
	if reduces.Load() == 0 {
		t.Error("Final reduce did not run")
	}
}

// TestSetupSignalHandler verifies the context cancels on SIGINT and the
// shutdown function runs first.
func TestSetupSignalHandler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Signal tests not supported on Windows")
	}

	var shutdownCalled atomic.Bool
	ctx := SetupSignalHandler(func(ctx context.Context) {
		shutdownCalled.Store(true)
	})

	select {
	case <-ctx.Done():
		t.Error("Context should not be cancelled before any signal")
	default:
	}

	p, _ := os.FindProcess(os.Getpid())
	p.Signal(os.Interrupt)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Context should be cancelled after signal")
	}

	if !shutdownCalled.Load() {
		t.Error("Shutdown function should have been called")
	}
}
