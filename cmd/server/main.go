package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"replay-analyzer/internal/db"

	"github.com/joho/godotenv"
)

var database *db.DB

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

	ctx := context.Background()

	// Connect to database
	var err error
	database, err = db.New(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// API routes
	http.HandleFunc("/api/stats", handleStats)
	http.HandleFunc("/api/games", handleGames)
	http.HandleFunc("/api/game/", handleGameDetail)
	http.HandleFunc("/api/corporations", handleCorporations)
	http.HandleFunc("/api/elo-buckets", handleEloBuckets)

	// Static files - try multiple paths
	webDir := "web"
	webPaths := []string{"web", "../web", "../../web"}
	for _, p := range webPaths {
		if _, err := os.Stat(p); err == nil {
			webDir = p
			break
		}
	}
	fmt.Printf("Serving static files from: %s\n", webDir)
	http.Handle("/", http.FileServer(http.Dir(webDir)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	overview, err := database.GetStatsOverview(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overview)
}

func handleGames(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	games, err := database.GetRecentGames(ctx, 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(games)
}

// handleGameDetail serves one game: /api/game/{tableId} returns the player
// rows, /api/game/{tableId}/full the complete reconstructed timeline.
func handleGameDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := strings.TrimPrefix(r.URL.Path, "/api/game/")
	tableID, full := strings.CutSuffix(path, "/full")
	if tableID == "" {
		http.Error(w, "Table ID required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if full {
		game, err := database.GetGameData(ctx, tableID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(game)
		return
	}

	players, err := database.GetGamePlayers(ctx, tableID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(players) == 0 {
		http.Error(w, "Game not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(players)
}

func handleCorporations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := database.GetCorporationStats(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func handleEloBuckets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := database.GetEloBucketStats(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
