package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"replay-analyzer/internal/replay"
)

func main() {
	replayFile := flag.String("replay", "", "Saved replay HTML file")
	summaryFile := flag.String("summary", "", "Saved table summary HTML file (optional, adds Elo data)")
	tableID := flag.String("table", "", "Table ID (default: derived from the replay filename)")
	perspective := flag.String("perspective", "", "Player ID the replay was viewed as")
	outFile := flag.String("out", "", "Output file (default: stdout)")
	flag.Parse()

	if *replayFile == "" {
		fmt.Println("Usage: parse --replay=replay.html [--summary=table.html] [--table=620761510] [--out=game.json]")
		os.Exit(1)
	}

	replayHTML, err := os.ReadFile(*replayFile)
	if err != nil {
		log.Fatalf("Failed to read replay file: %v", err)
	}

	id := *tableID
	if id == "" {
		// "620761510.html" or "replay_620761510.html" both work
		base := strings.TrimSuffix(filepath.Base(*replayFile), filepath.Ext(*replayFile))
		id = strings.TrimPrefix(base, "replay_")
	}

	parser := replay.NewParser()

	var game *replay.GameData
	if *summaryFile != "" {
		summaryHTML, err := os.ReadFile(*summaryFile)
		if err != nil {
			log.Fatalf("Failed to read summary file: %v", err)
		}
		game, err = parser.ParseReplayWithSummary(string(replayHTML), string(summaryHTML), id, *perspective)
		if err != nil {
			log.Fatalf("Parse failed: %v", err)
		}
	} else {
		game, err = parser.ParseReplay(string(replayHTML), id, *perspective)
		if err != nil {
			log.Fatalf("Parse failed: %v", err)
		}
	}

	out := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(game); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	if *outFile != "" {
		fmt.Fprintf(os.Stderr, "Parsed %d moves, %d players -> %s\n",
			game.Metadata.TotalMoves, len(game.Players), *outFile)
	}
}
