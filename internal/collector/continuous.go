package collector

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"replay-analyzer/internal/bga"
)

// Runner runs one collection batch. It is separate from the Collector
// struct to allow for mocking in tests.
type Runner interface {
	// Run processes a batch of table IDs. It should respect the context
	// for cancellation and return bga.ErrReplayLimit when the site cuts
	// the account off.
	Run(ctx context.Context, tableIDs []string) error
}

// TableSource supplies batches of table IDs to collect.
type TableSource interface {
	// NextBatch returns the next batch, or ErrSourceDrained when there
	// is nothing left to collect.
	NextBatch(ctx context.Context) ([]string, error)
}

// ErrSourceDrained signals that a TableSource has no more tables.
var ErrSourceDrained = errors.New("table source drained")

// ReducerFunc is the function signature for the reduce operation
type ReducerFunc func(ctx context.Context) error

// ContinuousConfig holds configuration for the continuous collector
type ContinuousConfig struct {
	// BatchInterval is the pause between batches (default: 15 minutes)
	BatchInterval time.Duration
	// LimitBackoff is how long to wait after hitting the daily replay
	// limit before trying again (default: 24 hours)
	LimitBackoff time.Duration
	// ReduceEvery triggers the reduce function after this many completed
	// batches. Zero disables periodic reduces (default: 5)
	ReduceEvery int
}

// DefaultContinuousConfig returns a configuration with sensible defaults
func DefaultContinuousConfig() ContinuousConfig {
	return ContinuousConfig{
		BatchInterval: 15 * time.Minute,
		LimitBackoff:  24 * time.Hour,
		ReduceEvery:   5,
	}
}

// ContinuousCollector runs collection batches in a loop, backing off when
// the replay quota runs out and periodically reducing the accumulated data.
type ContinuousCollector struct {
	config     ContinuousConfig
	runner     Runner
	source     TableSource
	reduceFunc ReducerFunc

	batchesDone atomic.Int64
	limitWaits  atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewContinuousCollector creates a continuous collector with the given dependencies
func NewContinuousCollector(runner Runner, source TableSource, reduceFunc ReducerFunc, config ContinuousConfig) *ContinuousCollector {
	return &ContinuousCollector{
		config:     config,
		runner:     runner,
		source:     source,
		reduceFunc: reduceFunc,
		stopCh:     make(chan struct{}),
	}
}

// Run loops until the source drains, the context is cancelled, or Shutdown
// is called. A final reduce runs before returning so no collected data is
// left unaggregated.
func (cc *ContinuousCollector) Run(ctx context.Context) error {
	log.Println("[Continuous] Starting collection loop")

	for {
		batch, err := cc.source.NextBatch(ctx)
		if errors.Is(err, ErrSourceDrained) {
			log.Println("[Continuous] Source drained, finishing up")
			return cc.finalReduce(ctx)
		}
		if err != nil {
			log.Printf("[Continuous] Failed to get next batch: %v", err)
			if !cc.wait(ctx, cc.config.BatchInterval) {
				return cc.finalReduce(ctx)
			}
			continue
		}

		// A limited batch is retried after the backoff; its unprocessed
		// tables were never marked, so the rerun picks them up.
		for {
			err = cc.runner.Run(ctx, batch)
			if !errors.Is(err, bga.ErrReplayLimit) {
				break
			}
			cc.limitWaits.Add(1)
			log.Printf("[Continuous] Replay limit hit, backing off %s", cc.config.LimitBackoff)
			if !cc.wait(ctx, cc.config.LimitBackoff) {
				return cc.finalReduce(ctx)
			}
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Continuous] Batch failed: %v", err)
		}

		done := cc.batchesDone.Add(1)
		if cc.reduceFunc != nil && cc.config.ReduceEvery > 0 && done%int64(cc.config.ReduceEvery) == 0 {
			log.Printf("[Continuous] Running reduce after %d batches", done)
			if err := cc.reduceFunc(ctx); err != nil {
				log.Printf("[Continuous] Reduce failed: %v", err)
			}
		}

		if !cc.wait(ctx, cc.config.BatchInterval) {
			return cc.finalReduce(ctx)
		}
	}
}

// Shutdown asks the loop to stop after the current batch. Safe to call
// multiple times and from multiple goroutines.
func (cc *ContinuousCollector) Shutdown() {
	cc.stopOnce.Do(func() { close(cc.stopCh) })
}

// BatchesDone returns how many batches have completed
func (cc *ContinuousCollector) BatchesDone() int64 {
	return cc.batchesDone.Load()
}

// finalReduce runs one last reduce so warm files are not stranded
func (cc *ContinuousCollector) finalReduce(ctx context.Context) error {
	if cc.reduceFunc == nil {
		return nil
	}
	log.Println("[Continuous] Running final reduce")
	if err := cc.reduceFunc(context.WithoutCancel(ctx)); err != nil {
		log.Printf("[Continuous] Final reduce failed: %v", err)
		return err
	}
	return nil
}

// wait sleeps for d, returning false if the loop should stop instead
func (cc *ContinuousCollector) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-cc.stopCh:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-cc.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// SliceSource serves a fixed list of table IDs in batches.
type SliceSource struct {
	mu        sync.Mutex
	remaining []string
	batchSize int
}

// NewSliceSource creates a source over the given IDs. batchSize <= 0
// means everything in one batch.
func NewSliceSource(tableIDs []string, batchSize int) *SliceSource {
	if batchSize <= 0 {
		batchSize = len(tableIDs)
	}
	return &SliceSource{remaining: append([]string(nil), tableIDs...), batchSize: batchSize}
}

// NextBatch pops up to batchSize IDs
func (s *SliceSource) NextBatch(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.remaining) == 0 {
		return nil, ErrSourceDrained
	}
	n := s.batchSize
	if n > len(s.remaining) {
		n = len(s.remaining)
	}
	batch := s.remaining[:n]
	s.remaining = s.remaining[n:]
	return batch, nil
}
