package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"replay-analyzer/internal/bga"
	"replay-analyzer/internal/collector"
	"replay-analyzer/internal/db"
	"replay-analyzer/internal/registry"
	"replay-analyzer/internal/replay"
	"replay-analyzer/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			fmt.Printf("Loaded .env from: %s\n", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		log.Println("No .env file found, using environment variables")
	}

	// Parse flags
	tables := flag.String("tables", "", "Comma-separated table IDs to collect")
	tablesFile := flag.String("tables-file", "", "File with one table ID per line")
	reviewPage := flag.String("review-page", "", "Saved gamereview HTML to extract table IDs from")
	perspective := flag.String("perspective", "", "Player ID to view replays as (default: first player on each table)")
	workers := flag.Int("workers", collector.DefaultWorkerCount, "Number of fetch/parse workers")
	continuous := flag.Bool("continuous", false, "Run in batches with replay-limit backoff")
	batchSize := flag.Int("batch-size", 25, "Tables per batch in continuous mode")
	flag.Parse()

	tableIDs, err := resolveTableIDs(*tables, *tablesFile, *reviewPage)
	if err != nil {
		log.Fatalf("Failed to resolve table IDs: %v", err)
	}
	if len(tableIDs) == 0 {
		fmt.Println("Usage:")
		fmt.Println("  collector --tables=620761510,620761511")
		fmt.Println("  collector --tables-file=tables.txt")
		fmt.Println("  collector --review-page=gamereview.html")
		fmt.Println()
		fmt.Println("Requires BGA_EMAIL and BGA_PASSWORD in the environment.")
		fmt.Println("Storage path is set via BLOB_STORAGE_PATH in .env")
		fmt.Println()
		fmt.Println("Parsed games are written to rotating JSONL files in:")
		fmt.Println("  hot/   - Active writes")
		fmt.Println("  warm/  - Closed files awaiting processing")
		fmt.Println("  cold/  - Compressed archives")
		os.Exit(1)
	}

	dataDir := os.Getenv("BLOB_STORAGE_PATH")
	if dataDir == "" {
		log.Fatal("BLOB_STORAGE_PATH environment variable not set")
	}
	dataDir = strings.Trim(dataDir, "\"")
	fmt.Printf("Using storage path: %s\n", dataDir)

	ctx := collector.SetupSignalHandler(nil)

	rotator, err := storage.NewFileRotator(dataDir)
	if err != nil {
		log.Fatalf("Failed to create file rotator: %v", err)
	}
	defer func() {
		if err := rotator.Close(); err != nil {
			log.Printf("Error closing rotator: %v", err)
		}
	}()

	database, err := db.New(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	reg, err := registry.New(ctx, database)
	if err != nil {
		log.Fatalf("Failed to seed registry: %v", err)
	}

	session, err := bga.NewSession(ctx)
	if err != nil {
		log.Fatalf("Failed to start browser session: %v", err)
	}
	defer session.Close()
	if err := session.Login(ctx); err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	c := collector.New(collector.Config{
		WorkerCount: *workers,
		Perspective: *perspective,
	}, session, replay.NewParser(), reg, rotator, database)

	if *continuous {
		cc := collector.NewContinuousCollector(c, collector.NewSliceSource(tableIDs, *batchSize), nil, collector.DefaultContinuousConfig())
		if err := cc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("Continuous collection failed: %v", err)
		}
		return
	}

	err = c.Run(ctx, tableIDs)
	if errors.Is(err, bga.ErrReplayLimit) {
		fmt.Println("Daily replay limit reached; rerun tomorrow or use --continuous")
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Collection failed: %v", err)
	}
}

// resolveTableIDs merges the three table ID inputs, preserving order
func resolveTableIDs(tables, tablesFile, reviewPage string) ([]string, error) {
	var ids []string

	for _, id := range strings.Split(tables, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}

	if tablesFile != "" {
		data, err := os.ReadFile(tablesFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", tablesFile, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				ids = append(ids, line)
			}
		}
	}

	if reviewPage != "" {
		data, err := os.ReadFile(reviewPage)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", reviewPage, err)
		}
		ids = append(ids, bga.ExtractTableIDs(string(data))...)
	}

	// Drop duplicates from overlapping inputs
	seen := make(map[string]bool, len(ids))
	unique := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique, nil
}
