package storage

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// Rotation triggers
	MaxGamesPerFile = 500
	MaxFileAge      = 1 * time.Hour
)

// FileRotator handles writing parsed games to rotating JSONL files
type FileRotator struct {
	mu sync.Mutex

	// Directories
	hotDir  string // Active writes
	warmDir string // Closed files awaiting processing
	coldDir string // Compressed archives (set later)

	// Current file state
	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	gameCount     int
	fileOpenedAt  time.Time
}

// NewFileRotator creates a new rotator with the given base directory
func NewFileRotator(baseDir string) (*FileRotator, error) {
	hotDir := filepath.Join(baseDir, "hot")
	warmDir := filepath.Join(baseDir, "warm")
	coldDir := filepath.Join(baseDir, "cold")

	// Create directories
	for _, dir := range []string{hotDir, warmDir, coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	r := &FileRotator{
		hotDir:  hotDir,
		warmDir: warmDir,
		coldDir: coldDir,
	}

	// Open initial file
	if err := r.rotate(); err != nil {
		return nil, err
	}

	return r, nil
}

// SetColdDir allows setting a different cold storage path (e.g., HDD)
func (r *FileRotator) SetColdDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create cold directory: %w", err)
	}
	r.mu.Lock()
	r.coldDir = path
	r.mu.Unlock()
	return nil
}

// WarmDir returns the directory holding closed files awaiting compaction
func (r *FileRotator) WarmDir() string {
	return r.warmDir
}

// ColdDir returns the compressed-archive directory
func (r *FileRotator) ColdDir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coldDir
}

// WriteGame appends one parsed game to the current JSONL file and
// rotates when the file is full or stale
func (r *FileRotator) WriteGame(record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := r.currentWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if _, err := r.currentWriter.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	r.gameCount++

	// Flush after each game so a crash loses at most the game in flight
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if r.shouldRotate() {
		if err := r.rotate(); err != nil {
			return err
		}
	}

	return nil
}

// shouldRotate checks if we need to rotate to a new file
func (r *FileRotator) shouldRotate() bool {
	if r.currentFile == nil {
		return true
	}
	if r.gameCount >= MaxGamesPerFile {
		return true
	}
	if time.Since(r.fileOpenedAt) >= MaxFileAge {
		return true
	}
	return false
}

// rotate closes current file and opens a new one
func (r *FileRotator) rotate() error {
	// Close current file if open
	if r.currentFile != nil {
		if err := r.currentWriter.Flush(); err != nil {
			return fmt.Errorf("failed to flush before rotation: %w", err)
		}
		if err := r.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}

		// Move to warm storage
		warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
		if err := os.Rename(r.currentPath, warmPath); err != nil {
			return fmt.Errorf("failed to move to warm storage: %w", err)
		}
		fmt.Printf("[Rotator] Moved %s to warm storage (%d games)\n", filepath.Base(r.currentPath), r.gameCount)
	}

	// Generate new filename
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("parsed_games_%s.jsonl", timestamp)
	r.currentPath = filepath.Join(r.hotDir, filename)

	// Open new file
	file, err := os.Create(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024) // 64KB buffer
	r.gameCount = 0
	r.fileOpenedAt = time.Now()

	fmt.Printf("[Rotator] Opened new file: %s\n", filename)
	return nil
}

// Close flushes and closes the current file
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return nil
	}

	if err := r.currentWriter.Flush(); err != nil {
		return err
	}

	if err := r.currentFile.Close(); err != nil {
		return err
	}

	// Move to warm if it has data
	if r.gameCount > 0 {
		warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
		if err := os.Rename(r.currentPath, warmPath); err != nil {
			return err
		}
		fmt.Printf("[Rotator] Closed and moved %s to warm (%d games)\n", filepath.Base(r.currentPath), r.gameCount)
	} else {
		// Remove empty file
		os.Remove(r.currentPath)
	}

	r.currentFile = nil
	return nil
}

// Stats returns current rotator statistics
func (r *FileRotator) Stats() (gamesInCurrentFile int, currentFileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameCount, filepath.Base(r.currentPath)
}

// ReadWarmFiles streams every record in the warm directory through fn,
// file by file in name order. Used to reprocess or re-reduce the corpus
// without a database.
func ReadWarmFiles(warmDir string, fn func(*Record) error) error {
	entries, err := os.ReadDir(warmDir)
	if err != nil {
		return fmt.Errorf("failed to read warm directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		if err := readRecords(filepath.Join(warmDir, entry.Name()), fn); err != nil {
			return err
		}
	}
	return nil
}

func readRecords(path string, fn func(*Record) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			// A torn final line from a crashed run is not fatal
			continue
		}
		if err := fn(&record); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// CompressToCold compresses a warm file and moves it to cold storage
func CompressToCold(warmPath, coldDir string) error {
	// Open source file
	src, err := os.Open(warmPath)
	if err != nil {
		return err
	}
	defer src.Close()

	// Create compressed file
	filename := filepath.Base(warmPath) + ".gz"
	coldPath := filepath.Join(coldDir, filename)
	dst, err := os.Create(coldPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	// Compress
	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}

	// Remove original
	if err := os.Remove(warmPath); err != nil {
		return err
	}

	fmt.Printf("[Rotator] Compressed %s to cold storage\n", filepath.Base(warmPath))
	return nil
}
