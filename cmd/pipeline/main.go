package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	// Flags
	tables := flag.String("tables", "", "Comma-separated table IDs to collect")
	tablesFile := flag.String("tables-file", "", "File with one table ID per line")
	perspective := flag.String("perspective", "", "Player ID to view replays as")
	outputDir := flag.String("output-dir", "./export", "Directory for reducer output")
	skipCollector := flag.Bool("reduce-only", false, "Skip collector, only run reducer")
	flag.Parse()

	// Load .env
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			fmt.Printf("Loaded .env from: %s\n", path)
			break
		}
	}

	moduleDir := findModuleDir()
	if moduleDir == "" {
		log.Fatal("Could not find the replay-analyzer directory")
	}
	fmt.Printf("Working directory: %s\n", moduleDir)

	startTime := time.Now()

	// Step 1: Run collector (unless skip flag set)
	if !*skipCollector {
		if *tables == "" && *tablesFile == "" {
			log.Fatal("--tables or --tables-file is required (or use --reduce-only to skip collection)")
		}

		fmt.Println("\n========================================")
		fmt.Println("STEP 1: COLLECTING REPLAY DATA")
		fmt.Println("========================================")

		collectorArgs := []string{"run", "./cmd/collector"}
		if *tables != "" {
			collectorArgs = append(collectorArgs, "--tables="+*tables)
		}
		if *tablesFile != "" {
			collectorArgs = append(collectorArgs, "--tables-file="+*tablesFile)
		}
		if *perspective != "" {
			collectorArgs = append(collectorArgs, "--perspective="+*perspective)
		}

		if err := runCommand(moduleDir, "go", collectorArgs...); err != nil {
			log.Fatalf("Collector failed: %v", err)
		}

		fmt.Printf("\nCollection completed in %s\n", time.Since(startTime).Round(time.Second))
	}

	// Step 2: Run reducer
	fmt.Println("\n========================================")
	fmt.Println("STEP 2: REDUCING & EXPORTING DATA")
	fmt.Println("========================================")

	reducerArgs := []string{
		"run", "./cmd/reducer",
		"--output-dir=" + *outputDir,
	}

	if err := runCommand(moduleDir, "go", reducerArgs...); err != nil {
		log.Fatalf("Reducer failed: %v", err)
	}

	totalTime := time.Since(startTime).Round(time.Second)

	fmt.Println("\n========================================")
	fmt.Println("PIPELINE COMPLETE")
	fmt.Println("========================================")
	fmt.Printf("Total time: %s\n", totalTime)
	fmt.Printf("Output: %s/data.json\n", *outputDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Upload data.json to your CDN/GitHub")
	fmt.Println("  2. Update manifest.json with the data URL")
}

func runCommand(dir, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	fmt.Printf("Running: %s %s\n\n", name, strings.Join(args, " "))
	return cmd.Run()
}

func findModuleDir() string {
	// Try common locations
	candidates := []string{
		".",
		"replay-analyzer",
		"../replay-analyzer",
	}

	for _, candidate := range candidates {
		path := filepath.Join(candidate, "cmd", "collector", "main.go")
		if _, err := os.Stat(path); err == nil {
			abs, _ := filepath.Abs(candidate)
			return abs
		}
	}

	return ""
}
