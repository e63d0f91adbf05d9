package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"replay-analyzer/internal/bga"
	"replay-analyzer/internal/replay"
	"replay-analyzer/internal/storage"
)

const (
	// DefaultWorkerCount is the number of concurrent table workers.
	// Browser fetches are serialized by the session's pacing anyway, so
	// extra workers mostly overlap parsing with the next fetch.
	DefaultWorkerCount = 4

	// TableChannelBuffer is the buffer size for the job channel
	TableChannelBuffer = 100
)

// ReplayFetcher fetches table summary and replay pages.
// *bga.Session satisfies it; tests substitute a fake.
type ReplayFetcher interface {
	FetchTable(ctx context.Context, tableID string) (string, error)
	FetchReplay(ctx context.Context, version, tableID, playerID string) (string, error)
	SiteVersion(ctx context.Context, tableID string) (string, error)
}

// GameParser reconstructs a game from fetched documents.
// *replay.Parser satisfies it.
type GameParser interface {
	ParseReplayWithSummary(replayDoc, summaryDoc, replayID, perspective string) (*replay.GameData, error)
}

// Deduper reports and records which tables have already been processed.
// *registry.Registry satisfies it.
type Deduper interface {
	Seen(ctx context.Context, tableID string) (bool, error)
	Mark(tableID string)
}

// GameSink persists parsed games. *db.DB satisfies it; a nil sink
// means file-only collection.
type GameSink interface {
	InsertGame(ctx context.Context, game *replay.GameData) error
}

// tableJob is a single table to fetch and parse
type tableJob struct {
	TableID string
}

// tableResult is the outcome of processing one table
type tableResult struct {
	TableID string
	Record  *storage.Record
	Err     error
}

// Config holds collector configuration
type Config struct {
	// WorkerCount is the number of fetch/parse workers (default: DefaultWorkerCount)
	WorkerCount int
	// Perspective forces the replay viewpoint to a specific player ID.
	// Empty means "first player found on the table page".
	Perspective string
}

// Collector drives the table pipeline: dedupe, fetch, parse, write.
// Tables are independent, so workers share nothing but the channels.
type Collector struct {
	config  Config
	fetcher ReplayFetcher
	parser  GameParser
	dedup   Deduper
	rotator *storage.FileRotator
	sink    GameSink

	jobs    chan tableJob
	results chan tableResult

	// Stats
	tablesQueued  atomic.Int64
	tablesSkipped atomic.Int64
	tablesFailed  atomic.Int64
	gamesWritten  atomic.Int64
	limitHit      atomic.Bool

	cancel    context.CancelFunc
	startTime time.Time
}

// New creates a collector over the given components
func New(config Config, fetcher ReplayFetcher, parser GameParser, dedup Deduper, rotator *storage.FileRotator, sink GameSink) *Collector {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultWorkerCount
	}
	return &Collector{
		config:  config,
		fetcher: fetcher,
		parser:  parser,
		dedup:   dedup,
		rotator: rotator,
		sink:    sink,
	}
}

// Run processes the given table IDs and blocks until they are all handled
// or the context is cancelled. Returns bga.ErrReplayLimit if the site cut
// the account off mid-run; tables processed before the cutoff are kept.
func (c *Collector) Run(ctx context.Context, tableIDs []string) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	c.startTime = time.Now()
	c.limitHit.Store(false)
	c.jobs = make(chan tableJob, TableChannelBuffer)
	c.results = make(chan tableResult, TableChannelBuffer)

	log.Printf("[Collector] Starting with %d workers, %d tables", c.config.WorkerCount, len(tableIDs))

	var workerWg sync.WaitGroup
	for i := 0; i < c.config.WorkerCount; i++ {
		workerWg.Add(1)
		go c.worker(ctx, &workerWg)
	}

	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go c.processResults(ctx, &writerWg)

	c.produce(ctx, tableIDs)
	close(c.jobs)

	workerWg.Wait()
	close(c.results)
	writerWg.Wait()

	c.printSummary()

	if c.limitHit.Load() {
		return bga.ErrReplayLimit
	}
	return ctx.Err()
}

// Stop cancels an in-flight Run. Safe to call from another goroutine.
func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// produce dispatches deduped table IDs to the workers
func (c *Collector) produce(ctx context.Context, tableIDs []string) {
	for _, tableID := range tableIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		seen, err := c.dedup.Seen(ctx, tableID)
		if err != nil {
			log.Printf("[Collector] Dedup check failed for table %s: %v", tableID, err)
		}
		if seen {
			c.tablesSkipped.Add(1)
			continue
		}

		select {
		case c.jobs <- tableJob{TableID: tableID}:
			c.tablesQueued.Add(1)
		case <-ctx.Done():
			return
		}
	}
}

// worker fetches and parses tables until the job channel closes
func (c *Collector) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-c.jobs:
			if !ok {
				return
			}
			record, err := c.fetchGame(ctx, job.TableID)
			select {
			case c.results <- tableResult{TableID: job.TableID, Record: record, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// fetchGame pulls the table summary and replay pages and reconstructs the game
func (c *Collector) fetchGame(ctx context.Context, tableID string) (*storage.Record, error) {
	summaryDoc, err := c.fetcher.FetchTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("fetch table %s: %w", tableID, err)
	}

	perspective := c.config.Perspective
	if perspective == "" {
		players := bga.ExtractPlayerIDs(summaryDoc)
		if len(players) == 0 {
			return nil, fmt.Errorf("table %s: no player IDs on summary page", tableID)
		}
		perspective = players[0]
	}

	version, err := c.fetcher.SiteVersion(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableID, err)
	}

	replayDoc, err := c.fetcher.FetchReplay(ctx, version, tableID, perspective)
	if err != nil {
		return nil, fmt.Errorf("fetch replay %s: %w", tableID, err)
	}

	game, err := c.parser.ParseReplayWithSummary(replayDoc, summaryDoc, tableID, perspective)
	if err != nil {
		return nil, fmt.Errorf("parse replay %s: %w", tableID, err)
	}

	return &storage.Record{
		TableID:     tableID,
		Perspective: perspective,
		SiteVersion: version,
		FetchedAt:   time.Now().UTC().Format(time.RFC3339),
		Game:        game,
	}, nil
}

// processResults writes parsed games to the rotator and the database
func (c *Collector) processResults(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for result := range c.results {
		if result.Err != nil {
			if errors.Is(result.Err, bga.ErrReplayLimit) {
				log.Printf("[Collector] Replay limit reached at table %s, stopping run", result.TableID)
				c.limitHit.Store(true)
				c.Stop()
				continue
			}
			c.tablesFailed.Add(1)
			log.Printf("[Collector] Table %s failed: %v", result.TableID, result.Err)
			continue
		}

		if err := c.rotator.WriteGame(result.Record); err != nil {
			c.tablesFailed.Add(1)
			log.Printf("[Collector] Failed to write table %s: %v", result.TableID, err)
			continue
		}

		if c.sink != nil {
			if err := c.sink.InsertGame(ctx, result.Record.Game); err != nil {
				// The JSONL copy survives, so a DB hiccup is not fatal
				log.Printf("[Collector] DB insert failed for table %s: %v", result.TableID, err)
			}
		}

		c.dedup.Mark(result.TableID)
		written := c.gamesWritten.Add(1)

		elapsed := time.Since(c.startTime)
		fmt.Printf("[%s] Saved table %s: %s won, %d gens, %d moves (%d written)\n",
			formatDuration(elapsed), result.TableID, result.Record.Game.Winner,
			result.Record.Game.Generations, result.Record.Game.Metadata.TotalMoves, written)
	}
}

// printSummary prints final collection statistics
func (c *Collector) printSummary() {
	elapsed := time.Since(c.startTime)
	written := c.gamesWritten.Load()

	fmt.Printf("\n=== Collection Complete ===\n")
	fmt.Printf("Total time: %s\n", formatDuration(elapsed))
	fmt.Printf("Tables queued: %d\n", c.tablesQueued.Load())
	fmt.Printf("Already processed (skipped): %d\n", c.tablesSkipped.Load())
	fmt.Printf("Failed: %d\n", c.tablesFailed.Load())
	fmt.Printf("Games written: %d\n", written)
	if written > 0 {
		fmt.Printf("Avg time per game: %s\n", formatDuration(elapsed/time.Duration(written)))
	}
	if c.limitHit.Load() {
		fmt.Printf("Stopped early: daily replay limit\n")
	}
}

// Stats returns a snapshot of the run counters
func (c *Collector) Stats() (queued, skipped, failed, written int64) {
	return c.tablesQueued.Load(), c.tablesSkipped.Load(), c.tablesFailed.Load(), c.gamesWritten.Load()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", hours, mins, secs)
}
