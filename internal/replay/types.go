package replay

// ActionType classifies what a move did. Classification is by an ordered
// matcher table over the move's combined log text; see classifyAction.
type ActionType string

const (
	ActionPlayCard        ActionType = "play_card"
	ActionPlaceTile       ActionType = "place_tile"
	ActionStandardProject ActionType = "standard_project"
	ActionPass            ActionType = "pass"
	ActionConvertHeat     ActionType = "convert_heat"
	ActionClaimMilestone  ActionType = "claim_milestone"
	ActionFundAward       ActionType = "fund_award"
	ActionActivateCard    ActionType = "activate_card"
	ActionNewGeneration   ActionType = "new_generation"
	ActionDraftCard       ActionType = "draft_card"
	ActionBuyCard         ActionType = "buy_card"
	ActionOther           ActionType = "other"
)

// Move represents a single numbered move from the replay log.
type Move struct {
	MoveNumber int    `json:"move_number"`
	Timestamp  string `json:"timestamp"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`

	ActionType  ActionType `json:"action_type"`
	Description string     `json:"description"`

	CardPlayed   string `json:"card_played,omitempty"`
	CardCost     *int   `json:"card_cost,omitempty"`
	TilePlaced   string `json:"tile_placed,omitempty"`
	TileLocation string `json:"tile_location,omitempty"`

	// Game state after this move, filled in by the assembler
	GameState *GameState `json:"game_state,omitempty"`
}

// VPItem is one scored item inside a VP breakdown category. It always
// carries a "vp" key; any extra keys from the source are preserved verbatim.
type VPItem map[string]any

// VP returns the item's victory point value, tolerating the number types
// json.Unmarshal produces.
func (v VPItem) VP() int {
	switch n := v["vp"].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// PlayerVP is one player's victory point breakdown at a point in time.
// The details nesting (category -> item name -> object with "vp") is a
// stable contract consumed by downstream reporting.
type PlayerVP struct {
	Total        int                          `json:"total"`
	TotalDetails map[string]int               `json:"total_details"`
	Details      map[string]map[string]VPItem `json:"details,omitempty"`
}

// ClaimRecord notes who claimed a milestone or funded an award, and when.
type ClaimRecord struct {
	ClaimedBy  string `json:"claimed_by"`
	PlayerID   string `json:"player_id"`
	MoveNumber int    `json:"move_number"`
	Timestamp  string `json:"timestamp"`
}

// GameState is the complete derived snapshot immediately after a move.
// Every roster player has an entry in PlayerVP and PlayerCounters; there
// are no partial states.
type GameState struct {
	MoveNumber  int `json:"move_number"`
	Generation  int `json:"generation"`
	Temperature int `json:"temperature"`
	Oxygen      int `json:"oxygen"`
	Oceans      int `json:"oceans"`

	PlayerVP       map[string]PlayerVP       `json:"player_vp"`
	Milestones     map[string]ClaimRecord    `json:"milestones"`
	Awards         map[string]ClaimRecord    `json:"awards"`
	PlayerCounters map[string]map[string]int `json:"player_counters"`
}

// EloData holds post-match ranking deltas for a player. All fields are
// independently optional; a player with none of them played an unranked
// match.
type EloData struct {
	ArenaPoints       *int `json:"arena_points,omitempty"`
	ArenaPointsChange *int `json:"arena_points_change,omitempty"`
	GameRank          *int `json:"game_rank,omitempty"`
	GameRankChange    *int `json:"game_rank_change,omitempty"`
}

// Empty reports whether no field was resolved.
func (e *EloData) Empty() bool {
	return e == nil ||
		(e.ArenaPoints == nil && e.ArenaPointsChange == nil &&
			e.GameRank == nil && e.GameRankChange == nil)
}

// Player is one roster entry, accumulated while moves are folded in.
type Player struct {
	PlayerID    string `json:"player_id"`
	PlayerName  string `json:"player_name"`
	Corporation string `json:"corporation"`

	FinalVP     int            `json:"final_vp"`
	FinalTR     int            `json:"final_tr"`
	VPBreakdown map[string]int `json:"vp_breakdown"`

	CardsPlayed       []string `json:"cards_played"`
	MilestonesClaimed []string `json:"milestones_claimed"`
	AwardsFunded      []string `json:"awards_funded"`

	EloData *EloData `json:"elo_data,omitempty"`
}

// VPProgressionEntry is one periodic scoring snapshot aligned to the
// move timeline.
type VPProgressionEntry struct {
	MoveIndex     int                 `json:"move_index"`
	Time          string              `json:"time,omitempty"`
	CombinedTotal int                 `json:"combined_total"`
	VPData        map[string]PlayerVP `json:"vp_data"`
}

// ParameterPoint is one step of the terraforming parameter timeline.
type ParameterPoint struct {
	MoveIndex   int `json:"move_index"`
	Generation  int `json:"generation"`
	Temperature int `json:"temperature"`
	Oxygen      int `json:"oxygen"`
	Oceans      int `json:"oceans"`
}

// Metadata describes the parsing run itself.
type Metadata struct {
	ParsedAt        string `json:"parsed_at"`
	TotalMoves      int    `json:"total_moves"`
	HTMLLength      int    `json:"html_length"`
	EloDataIncluded bool   `json:"elo_data_included"`
	EloPlayersFound int    `json:"elo_players_found"`
}

// GameData is the complete reconstructed match. Downstream consumers index
// its fields by fixed path, so names and nesting are stable.
type GameData struct {
	ReplayID          string `json:"replay_id"`
	PlayerPerspective string `json:"player_perspective,omitempty"`
	GameDate          string `json:"game_date"`
	GameDuration      string `json:"game_duration"`
	Winner            string `json:"winner"`
	Generations       int    `json:"generations"`

	Players map[string]*Player `json:"players"`
	Moves   []*Move            `json:"moves"`

	FinalState *GameState `json:"final_state"`

	VPProgression        []VPProgressionEntry `json:"vp_progression"`
	ParameterProgression []ParameterPoint     `json:"parameter_progression"`

	Metadata Metadata `json:"metadata"`
}
