package db

import (
	"context"
	"encoding/json"

	"replay-analyzer/internal/replay"
)

// Game represents a stored game record
type Game struct {
	TableID      string `json:"tableId"`
	GameDate     string `json:"gameDate"`
	GameDuration string `json:"gameDuration"`
	Winner       string `json:"winner"`
	Generations  int    `json:"generations"`
	PlayerCount  int    `json:"playerCount"`
	EloIncluded  bool   `json:"eloIncluded"`
}

// GamePlayer represents one player's result in a stored game
type GamePlayer struct {
	TableID           string `json:"tableId"`
	PlayerID          string `json:"playerId"`
	PlayerName        string `json:"playerName"`
	Corporation       string `json:"corporation"`
	FinalVP           int    `json:"finalVp"`
	FinalTR           int    `json:"finalTr"`
	ArenaPoints       *int   `json:"arenaPoints,omitempty"`
	ArenaPointsChange *int   `json:"arenaPointsChange,omitempty"`
	Won               bool   `json:"won"`
}

// InsertGame stores a reconstructed game and its per-player rows. The raw
// GameData is kept as JSONB so later reducers can reprocess without
// refetching.
func (db *DB) InsertGame(ctx context.Context, game *replay.GameData) error {
	raw, err := json.Marshal(game)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO games (table_id, game_date, game_duration, winner, generations, player_count, elo_included, game_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (table_id) DO NOTHING
	`, game.ReplayID, game.GameDate, game.GameDuration, game.Winner,
		game.Generations, len(game.Players), game.Metadata.EloDataIncluded, raw)
	if err != nil {
		return err
	}

	for _, p := range game.Players {
		var arenaPoints, arenaChange *int
		if p.EloData != nil {
			arenaPoints = p.EloData.ArenaPoints
			arenaChange = p.EloData.ArenaPointsChange
		}
		_, err = db.pool.Exec(ctx, `
			INSERT INTO game_players (table_id, player_id, player_name, corporation, final_vp, final_tr, arena_points, arena_points_change, won)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (table_id, player_id) DO NOTHING
		`, game.ReplayID, p.PlayerID, p.PlayerName, p.Corporation,
			p.FinalVP, p.FinalTR, arenaPoints, arenaChange, p.PlayerName == game.Winner)
		if err != nil {
			return err
		}
	}
	return nil
}

// GameExists checks if a game is already stored
func (db *DB) GameExists(ctx context.Context, tableID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM games WHERE table_id = $1)
	`, tableID).Scan(&exists)
	return exists, err
}

// GameIDs returns every stored table ID, used to seed the dedup filter
func (db *DB) GameIDs(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT table_id FROM games`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetRecentGames returns the most recently parsed games
func (db *DB) GetRecentGames(ctx context.Context, limit int) ([]Game, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT table_id, game_date, game_duration, winner, generations, player_count, elo_included
		FROM games
		ORDER BY parsed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.TableID, &g.GameDate, &g.GameDuration, &g.Winner,
			&g.Generations, &g.PlayerCount, &g.EloIncluded); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// GetGamePlayers returns the per-player results for one game
func (db *DB) GetGamePlayers(ctx context.Context, tableID string) ([]GamePlayer, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT table_id, player_id, player_name, corporation, final_vp, final_tr, arena_points, arena_points_change, won
		FROM game_players
		WHERE table_id = $1
		ORDER BY final_vp DESC
	`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []GamePlayer
	for rows.Next() {
		var p GamePlayer
		if err := rows.Scan(&p.TableID, &p.PlayerID, &p.PlayerName, &p.Corporation,
			&p.FinalVP, &p.FinalTR, &p.ArenaPoints, &p.ArenaPointsChange, &p.Won); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// GetGameCount returns the total number of stored games
func (db *DB) GetGameCount(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games`).Scan(&count)
	return count, err
}

// GetGameData loads the raw GameData for one stored game
func (db *DB) GetGameData(ctx context.Context, tableID string) (*replay.GameData, error) {
	var raw []byte
	err := db.pool.QueryRow(ctx, `
		SELECT game_data FROM games WHERE table_id = $1
	`, tableID).Scan(&raw)
	if err != nil {
		return nil, err
	}

	var game replay.GameData
	if err := json.Unmarshal(raw, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// GetAllGameData streams every stored GameData through fn, in insertion
// order. Used by the reducer to fold aggregates without holding the whole
// corpus in memory.
func (db *DB) GetAllGameData(ctx context.Context, fn func(*replay.GameData) error) error {
	rows, err := db.pool.Query(ctx, `SELECT game_data FROM games ORDER BY parsed_at`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		var game replay.GameData
		if err := json.Unmarshal(raw, &game); err != nil {
			// One corrupt row should not sink the whole reduction
			continue
		}
		if err := fn(&game); err != nil {
			return err
		}
	}
	return rows.Err()
}
