package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"replay-analyzer/internal/bga"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	godotenv.Load()

	tableID := flag.String("table", "", "Table ID to probe")
	flag.Parse()

	if *tableID == "" {
		fmt.Println("Usage: go run cmd/sessioncheck/main.go --table=620761510")
		os.Exit(1)
	}

	ctx := context.Background()

	// Step 1: Start a browser session and log in
	fmt.Println("\n1. Logging in...")
	session, err := bga.NewSession(ctx)
	if err != nil {
		log.Fatalf("Failed to start browser session: %v", err)
	}
	defer session.Close()

	if err := session.Login(ctx); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	fmt.Println("   Logged in")

	// Step 2: Fetch the table page and extract the roster
	fmt.Printf("\n2. Fetching table %s...\n", *tableID)
	summary, err := session.FetchTable(ctx, *tableID)
	if err != nil {
		log.Fatalf("Failed to fetch table: %v", err)
	}

	players := bga.ExtractPlayerIDs(summary)
	if len(players) == 0 {
		fmt.Println("   No player IDs found on the table page")
	} else {
		fmt.Printf("   Players: %v\n", players)
	}

	// Step 3: Resolve the archive site version
	fmt.Printf("\n3. Resolving site version...\n")
	version, err := session.SiteVersion(ctx, *tableID)
	if err != nil {
		log.Fatalf("Failed to resolve site version: %v", err)
	}
	fmt.Printf("   Site version: %s\n", version)

	// Step 4: Check replay access
	fmt.Printf("\n4. Checking replay access...\n")
	if len(players) == 0 {
		fmt.Println("   Result: SKIP (no player to view the replay as)")
	} else {
		doc, err := session.FetchReplay(ctx, version, *tableID, players[0])
		if errors.Is(err, bga.ErrReplayLimit) {
			fmt.Println("   Result: LIMITED (daily replay quota exhausted)")
		} else if err != nil {
			log.Fatalf("Failed to fetch replay: %v", err)
		} else {
			fmt.Printf("   Result: OK (%d bytes)\n", len(doc))
		}
	}

	fmt.Println("\nDone!")
}
