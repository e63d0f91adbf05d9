package db

import (
	"context"
)

// CorporationStats is one corporation's aggregate record
type CorporationStats struct {
	Corporation string  `json:"corporation"`
	Games       int     `json:"games"`
	Wins        int     `json:"wins"`
	WinRate     float64 `json:"winRate"`
	AvgVP       float64 `json:"avgVp"`
}

// GetCorporationStats returns win rates and average scores per corporation
func (db *DB) GetCorporationStats(ctx context.Context) ([]CorporationStats, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT
			corporation,
			COUNT(*) as games,
			SUM(CASE WHEN won THEN 1 ELSE 0 END) as wins,
			AVG(final_vp) as avg_vp
		FROM game_players
		WHERE corporation IS NOT NULL AND corporation != 'Unknown'
		GROUP BY corporation
		ORDER BY games DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CorporationStats
	for rows.Next() {
		var s CorporationStats
		if err := rows.Scan(&s.Corporation, &s.Games, &s.Wins, &s.AvgVP); err != nil {
			return nil, err
		}
		if s.Games > 0 {
			s.WinRate = float64(s.Wins) / float64(s.Games) * 100
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// EloBucketStats aggregates results by arena-points band
type EloBucketStats struct {
	Bucket  string  `json:"bucket"`
	Games   int     `json:"games"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"winRate"`
	AvgVP   float64 `json:"avgVp"`
}

// GetEloBucketStats returns results bucketed by 200 arena points
func (db *DB) GetEloBucketStats(ctx context.Context) ([]EloBucketStats, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT
			((arena_points / 200) * 200)::text || '-' || ((arena_points / 200) * 200 + 199)::text as bucket,
			COUNT(*) as games,
			SUM(CASE WHEN won THEN 1 ELSE 0 END) as wins,
			AVG(final_vp) as avg_vp
		FROM game_players
		WHERE arena_points IS NOT NULL
		GROUP BY (arena_points / 200)
		ORDER BY (arena_points / 200)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []EloBucketStats
	for rows.Next() {
		var s EloBucketStats
		if err := rows.Scan(&s.Bucket, &s.Games, &s.Wins, &s.AvgVP); err != nil {
			return nil, err
		}
		if s.Games > 0 {
			s.WinRate = float64(s.Wins) / float64(s.Games) * 100
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// GetStatsOverview returns a summary of the stored corpus
func (db *DB) GetStatsOverview(ctx context.Context) (map[string]interface{}, error) {
	overview := make(map[string]interface{})

	var gameCount int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games`).Scan(&gameCount); err != nil {
		gameCount = 0
	}
	overview["games"] = gameCount

	var playerCount int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT player_id) FROM game_players`).Scan(&playerCount); err != nil {
		playerCount = 0
	}
	overview["uniquePlayers"] = playerCount

	var corpCount int
	if err := db.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT corporation) FROM game_players
		WHERE corporation IS NOT NULL AND corporation != 'Unknown'
	`).Scan(&corpCount); err != nil {
		corpCount = 0
	}
	overview["corporations"] = corpCount

	var eloGames int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games WHERE elo_included`).Scan(&eloGames); err != nil {
		eloGames = 0
	}
	overview["gamesWithElo"] = eloGames

	return overview, nil
}
