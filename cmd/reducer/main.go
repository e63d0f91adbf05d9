package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"replay-analyzer/internal/db"
	"replay-analyzer/internal/replay"
	"replay-analyzer/internal/storage"

	"github.com/joho/godotenv"
)

// CLI flags
var (
	outputDir = flag.String("output-dir", "./export", "Directory to output data.json")
	skipTurso = flag.Bool("skip-turso", false, "Skip pushing to Turso")
	skipJSON  = flag.Bool("skip-json", false, "Skip JSON export")
	keepWarm  = flag.Bool("keep-warm", false, "Do not archive warm files after processing")
)

// eloBucketSize groups players into 200-point arena brackets
const eloBucketSize = 200

// corpAccum accumulates per-corporation results
type corpAccum struct {
	Games int
	Wins  int
	VPSum int
}

// bucketAccum accumulates results per arena point bracket
type bucketAccum struct {
	Games int
	Wins  int
	VPSum int
}

// claimKey identifies a milestone or award by kind and name
type claimKey struct {
	Kind string
	Name string
}

// claimAccum accumulates milestone/award claim outcomes
type claimAccum struct {
	Claims      int
	ClaimerWins int
}

// paramAccum accumulates terraforming parameter values at generation end
type paramAccum struct {
	Games       int
	Temperature int
	Oxygen      int
	Oceans      int
}

// aggregates holds everything the reducer computes over the corpus
type aggregates struct {
	Games        int
	Corporations map[string]*corpAccum
	EloBuckets   map[int]*bucketAccum
	Claims       map[claimKey]*claimAccum
	Generations  map[int]*paramAccum
}

func newAggregates() *aggregates {
	return &aggregates{
		Corporations: make(map[string]*corpAccum),
		EloBuckets:   make(map[int]*bucketAccum),
		Claims:       make(map[claimKey]*claimAccum),
		Generations:  make(map[int]*paramAccum),
	}
}

func main() {
	flag.Parse()

	// Load .env - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			fmt.Printf("Loaded .env from: %s\n", path)
			break
		}
	}

	storagePath := os.Getenv("BLOB_STORAGE_PATH")
	if storagePath == "" {
		log.Fatal("BLOB_STORAGE_PATH environment variable not set")
	}
	storagePath = strings.Trim(storagePath, "\"")

	warmDir := filepath.Join(storagePath, "warm")
	coldDir := filepath.Join(storagePath, "cold")
	if err := os.MkdirAll(coldDir, 0755); err != nil {
		log.Fatalf("Failed to create cold directory: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(warmDir, "*.jsonl"))
	if err != nil {
		log.Fatalf("Failed to scan warm directory: %v", err)
	}
	if len(files) == 0 {
		fmt.Println("No files to process in warm directory")
		return
	}
	fmt.Printf("Found %d files to process\n", len(files))

	agg := newAggregates()
	if err := storage.ReadWarmFiles(warmDir, func(record *storage.Record) error {
		foldGame(agg, record.Game)
		return nil
	}); err != nil {
		log.Fatalf("Failed to read warm files: %v", err)
	}

	fmt.Printf("\n=== Total Aggregated ===\n")
	fmt.Printf("Games: %d\n", agg.Games)
	fmt.Printf("Corporations: %d\n", len(agg.Corporations))
	fmt.Printf("Elo buckets: %d\n", len(agg.EloBuckets))
	fmt.Printf("Milestone/award entries: %d\n", len(agg.Claims))

	if !*skipJSON {
		fmt.Printf("\n=== Exporting JSON ===\n")
		if err := exportToJSON(*outputDir, agg); err != nil {
			log.Fatalf("Failed to export JSON: %v", err)
		}
		fmt.Printf("Exported to: %s\n", *outputDir)
	}

	if !*skipTurso && os.Getenv("TURSO_DATABASE_URL") != "" {
		fmt.Printf("\n=== Pushing to Turso ===\n")
		if err := pushToTurso(agg); err != nil {
			log.Fatalf("Failed to push to Turso: %v", err)
		}
		fmt.Println("Successfully pushed to Turso")
	} else if !*skipTurso {
		fmt.Println("\n[Skipping Turso push - TURSO_DATABASE_URL not set]")
	}

	if !*keepWarm {
		for _, filePath := range files {
			if err := storage.CompressToCold(filePath, coldDir); err != nil {
				log.Printf("Warning: Failed to archive %s: %v", filepath.Base(filePath), err)
			}
		}
	}

	fmt.Println("\n=== Reducer Complete ===")
}

// foldGame adds one game's outcomes into the running aggregates
func foldGame(agg *aggregates, game *replay.GameData) {
	if game == nil || len(game.Players) == 0 {
		return
	}
	agg.Games++

	for _, player := range game.Players {
		won := player.PlayerName == game.Winner

		corp := player.Corporation
		if corp == "" {
			corp = "Unknown"
		}
		ca, ok := agg.Corporations[corp]
		if !ok {
			ca = &corpAccum{}
			agg.Corporations[corp] = ca
		}
		ca.Games++
		ca.VPSum += player.FinalVP
		if won {
			ca.Wins++
		}

		if player.EloData != nil && player.EloData.ArenaPoints != nil {
			bucket := (*player.EloData.ArenaPoints / eloBucketSize) * eloBucketSize
			ba, ok := agg.EloBuckets[bucket]
			if !ok {
				ba = &bucketAccum{}
				agg.EloBuckets[bucket] = ba
			}
			ba.Games++
			ba.VPSum += player.FinalVP
			if won {
				ba.Wins++
			}
		}
	}

	if game.FinalState != nil {
		foldClaims(agg, "milestone", game.FinalState.Milestones, game.Winner)
		foldClaims(agg, "award", game.FinalState.Awards, game.Winner)
	}

	// Last parameter point of each generation approximates its end state
	lastOfGen := make(map[int]replay.ParameterPoint)
	for _, point := range game.ParameterProgression {
		lastOfGen[point.Generation] = point
	}
	for gen, point := range lastOfGen {
		pa, ok := agg.Generations[gen]
		if !ok {
			pa = &paramAccum{}
			agg.Generations[gen] = pa
		}
		pa.Games++
		pa.Temperature += point.Temperature
		pa.Oxygen += point.Oxygen
		pa.Oceans += point.Oceans
	}
}

// foldClaims counts claims and whether the claimer went on to win
func foldClaims(agg *aggregates, kind string, claims map[string]replay.ClaimRecord, winner string) {
	for name, record := range claims {
		key := claimKey{Kind: kind, Name: name}
		ca, ok := agg.Claims[key]
		if !ok {
			ca = &claimAccum{}
			agg.Claims[key] = ca
		}
		ca.Claims++
		if record.ClaimedBy == winner {
			ca.ClaimerWins++
		}
	}
}

// corporationStats converts the accumulator map into sorted stat rows
func corporationStats(agg *aggregates) []db.CorporationStats {
	stats := make([]db.CorporationStats, 0, len(agg.Corporations))
	for corp, ca := range agg.Corporations {
		if corp == "Unknown" {
			continue
		}
		stats = append(stats, db.CorporationStats{
			Corporation: corp,
			Games:       ca.Games,
			Wins:        ca.Wins,
			WinRate:     ratio(ca.Wins, ca.Games),
			AvgVP:       avg(ca.VPSum, ca.Games),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Corporation < stats[j].Corporation })
	return stats
}

// eloBucketStats converts the bracket map into sorted stat rows
func eloBucketStats(agg *aggregates) []db.EloBucketStats {
	buckets := make([]int, 0, len(agg.EloBuckets))
	for b := range agg.EloBuckets {
		buckets = append(buckets, b)
	}
	sort.Ints(buckets)

	stats := make([]db.EloBucketStats, 0, len(buckets))
	for _, b := range buckets {
		ba := agg.EloBuckets[b]
		stats = append(stats, db.EloBucketStats{
			Bucket:  fmt.Sprintf("%d-%d", b, b+eloBucketSize-1),
			Games:   ba.Games,
			Wins:    ba.Wins,
			WinRate: ratio(ba.Wins, ba.Games),
			AvgVP:   avg(ba.VPSum, ba.Games),
		})
	}
	return stats
}

// claimStats converts the claim map into sorted stat rows
func claimStats(agg *aggregates) []db.ClaimStat {
	stats := make([]db.ClaimStat, 0, len(agg.Claims))
	for key, ca := range agg.Claims {
		stats = append(stats, db.ClaimStat{
			Kind:        key.Kind,
			Name:        key.Name,
			Claims:      ca.Claims,
			ClaimerWins: ca.ClaimerWins,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Kind != stats[j].Kind {
			return stats[i].Kind < stats[j].Kind
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}

// GenerationParamJSON is one generation's average end-of-generation parameters
type GenerationParamJSON struct {
	Generation  int     `json:"generation"`
	Games       int     `json:"games"`
	Temperature float64 `json:"avgTemperature"`
	Oxygen      float64 `json:"avgOxygen"`
	Oceans      float64 `json:"avgOceans"`
}

func generationParams(agg *aggregates) []GenerationParamJSON {
	gens := make([]int, 0, len(agg.Generations))
	for g := range agg.Generations {
		gens = append(gens, g)
	}
	sort.Ints(gens)

	params := make([]GenerationParamJSON, 0, len(gens))
	for _, g := range gens {
		pa := agg.Generations[g]
		params = append(params, GenerationParamJSON{
			Generation:  g,
			Games:       pa.Games,
			Temperature: avg(pa.Temperature, pa.Games),
			Oxygen:      avg(pa.Oxygen, pa.Games),
			Oceans:      avg(pa.Oceans, pa.Games),
		})
	}
	return params
}

// ClaimStatJSON mirrors db.ClaimStat for the JSON export
type ClaimStatJSON struct {
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Claims      int     `json:"claims"`
	ClaimerWins int     `json:"claimerWins"`
	WinRate     float64 `json:"winRate"`
}

// DataExport is the data.json document consumed by the stats frontend
type DataExport struct {
	GeneratedAt      string                `json:"generated_at"`
	Games            int                   `json:"games"`
	CorporationStats []db.CorporationStats `json:"corporation_stats"`
	EloBucketStats   []db.EloBucketStats   `json:"elo_bucket_stats"`
	ClaimStats       []ClaimStatJSON       `json:"claim_stats"`
	GenerationParams []GenerationParamJSON `json:"generation_params"`
}

// ManifestJSON represents the manifest.json structure
type ManifestJSON struct {
	Games     int    `json:"games"`
	DataURL   string `json:"data_url"`
	UpdatedAt string `json:"updated_at"`
}

// exportToJSON writes data.json and manifest.json for static hosting
func exportToJSON(outputDir string, agg *aggregates) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	claims := make([]ClaimStatJSON, 0, len(agg.Claims))
	for _, cs := range claimStats(agg) {
		claims = append(claims, ClaimStatJSON{
			Kind:        cs.Kind,
			Name:        cs.Name,
			Claims:      cs.Claims,
			ClaimerWins: cs.ClaimerWins,
			WinRate:     ratio(cs.ClaimerWins, cs.Claims),
		})
	}

	export := DataExport{
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
		Games:            agg.Games,
		CorporationStats: corporationStats(agg),
		EloBucketStats:   eloBucketStats(agg),
		ClaimStats:       claims,
		GenerationParams: generationParams(agg),
	}

	dataPath := filepath.Join(outputDir, "data.json")
	dataFile, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("failed to create data.json: %w", err)
	}
	defer dataFile.Close()

	// Write to file and compute SHA256 simultaneously
	hasher := sha256.New()
	multiWriter := io.MultiWriter(dataFile, hasher)

	encoder := json.NewEncoder(multiWriter)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to write data.json: %w", err)
	}

	fmt.Printf("  Wrote data.json: %d corporations, %d buckets, %d claims\n",
		len(export.CorporationStats), len(export.EloBucketStats), len(export.ClaimStats))
	fmt.Printf("  SHA256: %s\n", hex.EncodeToString(hasher.Sum(nil)))

	manifest := ManifestJSON{
		Games:     agg.Games,
		DataURL:   "", // To be filled in by user when uploading
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	manifestPath := filepath.Join(outputDir, "manifest.json")
	manifestFile, err := os.Create(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to create manifest.json: %w", err)
	}
	defer manifestFile.Close()

	manifestEncoder := json.NewEncoder(manifestFile)
	manifestEncoder.SetIndent("", "  ")
	if err := manifestEncoder.Encode(manifest); err != nil {
		return fmt.Errorf("failed to write manifest.json: %w", err)
	}

	return nil
}

// pushToTurso replaces the aggregate tables in the edge database
func pushToTurso(agg *aggregates) error {
	tursoURL := os.Getenv("TURSO_DATABASE_URL")
	tursoToken := os.Getenv("TURSO_AUTH_TOKEN")
	if tursoURL == "" {
		return fmt.Errorf("TURSO_DATABASE_URL environment variable not set")
	}

	fmt.Printf("Connecting to Turso: %s\n", tursoURL)
	client, err := db.NewTursoClient(tursoURL, tursoToken)
	if err != nil {
		return fmt.Errorf("failed to connect to Turso: %w", err)
	}
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Creating tables...")
	if err := client.CreateTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	fmt.Println("Clearing existing data...")
	if err := client.ClearData(ctx); err != nil {
		return fmt.Errorf("failed to clear data: %w", err)
	}

	corps := corporationStats(agg)
	fmt.Printf("Inserting %d corporation stats...\n", len(corps))
	if err := client.InsertCorporationStats(ctx, corps); err != nil {
		return fmt.Errorf("failed to insert corporation stats: %w", err)
	}

	buckets := eloBucketStats(agg)
	fmt.Printf("Inserting %d elo bucket stats...\n", len(buckets))
	if err := client.InsertEloBucketStats(ctx, buckets); err != nil {
		return fmt.Errorf("failed to insert elo bucket stats: %w", err)
	}

	claims := claimStats(agg)
	fmt.Printf("Inserting %d claim stats...\n", len(claims))
	if err := client.InsertClaimStats(ctx, claims); err != nil {
		return fmt.Errorf("failed to insert claim stats: %w", err)
	}

	if err := client.SetDataVersion(ctx, agg.Games); err != nil {
		return fmt.Errorf("failed to set data version: %w", err)
	}

	return nil
}

func ratio(wins, games int) float64 {
	if games == 0 {
		return 0
	}
	return float64(wins) / float64(games)
}

func avg(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
