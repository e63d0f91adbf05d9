package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// TursoClient wraps a connection to Turso, used to publish reduced
// aggregates for the downstream consumer.
type TursoClient struct {
	db *sql.DB
}

// NewTursoClient creates a new Turso client
func NewTursoClient(url, authToken string) (*TursoClient, error) {
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Turso: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Turso: %w", err)
	}

	return &TursoClient{db: db}, nil
}

// Close closes the Turso connection
func (c *TursoClient) Close() error {
	return c.db.Close()
}

// CreateTables creates the required tables if they don't exist
func (c *TursoClient) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS data_version (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			games INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS corporation_stats (
			corporation TEXT PRIMARY KEY,
			games INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			avg_vp REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS elo_bucket_stats (
			bucket TEXT PRIMARY KEY,
			games INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			avg_vp REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS claim_stats (
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			claims INTEGER NOT NULL DEFAULT 0,
			claimer_wins INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (kind, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_corporation_stats_games ON corporation_stats(games)`,
	}

	for _, query := range queries {
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// ClearData deletes all existing data
func (c *TursoClient) ClearData(ctx context.Context) error {
	tables := []string{"data_version", "corporation_stats", "elo_bucket_stats", "claim_stats"}
	for _, table := range tables {
		if _, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// SetDataVersion records the corpus size and publish time
func (c *TursoClient) SetDataVersion(ctx context.Context, games int) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO data_version (id, games, updated_at) VALUES (1, ?, ?)`,
		games, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ClaimStat is one milestone or award aggregate row
type ClaimStat struct {
	Kind        string
	Name        string
	Claims      int
	ClaimerWins int
}

// InsertCorporationStats inserts corporation aggregates in batches
func (c *TursoClient) InsertCorporationStats(ctx context.Context, stats []CorporationStats) error {
	const batchSize = 100

	for i := 0; i < len(stats); i += batchSize {
		end := i + batchSize
		if end > len(stats) {
			end = len(stats)
		}
		batch := stats[i:end]

		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO corporation_stats (corporation, games, wins, avg_vp) VALUES (?, ?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			return err
		}

		for _, s := range batch {
			if _, err := stmt.ExecContext(ctx, s.Corporation, s.Games, s.Wins, s.AvgVP); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}

		stmt.Close()
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// InsertEloBucketStats inserts elo-band aggregates in batches
func (c *TursoClient) InsertEloBucketStats(ctx context.Context, stats []EloBucketStats) error {
	const batchSize = 100

	for i := 0; i < len(stats); i += batchSize {
		end := i + batchSize
		if end > len(stats) {
			end = len(stats)
		}
		batch := stats[i:end]

		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO elo_bucket_stats (bucket, games, wins, avg_vp) VALUES (?, ?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			return err
		}

		for _, s := range batch {
			if _, err := stmt.ExecContext(ctx, s.Bucket, s.Games, s.Wins, s.AvgVP); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}

		stmt.Close()
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// InsertClaimStats inserts milestone/award aggregates in batches
func (c *TursoClient) InsertClaimStats(ctx context.Context, stats []ClaimStat) error {
	const batchSize = 100

	for i := 0; i < len(stats); i += batchSize {
		end := i + batchSize
		if end > len(stats) {
			end = len(stats)
		}
		batch := stats[i:end]

		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO claim_stats (kind, name, claims, claimer_wins) VALUES (?, ?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			return err
		}

		for _, s := range batch {
			if _, err := stmt.ExecContext(ctx, s.Kind, s.Name, s.Claims, s.ClaimerWins); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}

		stmt.Close()
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
