package replay

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Fatal conditions: these abort reconstruction for the match. Everything
// else degrades and continues with gap markers in the output.
var (
	// ErrNoEventLog means the embedded event log was unextractable and
	// the heuristic fallback found no scoring fragments either.
	ErrNoEventLog = errors.New("no embedded event log and no scoring fragments")

	// ErrNoPlayers means not a single player could be resolved from the
	// document.
	ErrNoPlayers = errors.New("no players resolvable from document")
)

// Parser reconstructs a complete move-indexed timeline from the raw
// capture of a finished match. It holds no state between matches: every
// parse is a pure function of its inputs, so independent matches can be
// reconstructed concurrently without coordination.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

// ParseReplay reconstructs a match from its replay document.
// perspective, when non-empty, is the player ID that "You" references in
// the rendered log resolve to.
func (p *Parser) ParseReplay(replayDoc, replayID, perspective string) (*GameData, error) {
	doc, err := html.Parse(strings.NewReader(replayDoc))
	if err != nil {
		return nil, fmt.Errorf("unparseable replay document: %w", err)
	}

	logs, extractErr := ExtractGamelogs(replayDoc)
	if extractErr != nil {
		log.Printf("[Parser] %s: structured log unavailable (%v), using heuristic fallback", replayID, extractErr)
	}

	dict := ResolveDictionaries(replayDoc)

	var tileToHex map[string]string
	var snaps []ScoringSnapshot
	if logs != nil {
		tileToHex = logs.TileToHexMapping()
		snaps = ExtractScoringSnapshots(logs, dict, tileToHex)
	}
	if len(snaps) == 0 {
		snaps = FallbackScoringSnapshots(replayDoc)
	}
	if logs == nil && len(snaps) == 0 {
		return nil, fmt.Errorf("%s: %w", replayID, ErrNoEventLog)
	}

	roster := extractRoster(doc, logs, snaps)
	if len(roster) == 0 {
		return nil, fmt.Errorf("%s: %w", replayID, ErrNoPlayers)
	}
	playerIDs := sortedPlayerIDs(roster)

	applyCorporations(doc, roster)

	mover := NewMoveLogParser(roster, logs, perspective)
	moves := mover.Parse(doc)

	scoring := CorrelateScoring(moves, snaps, playerIDs)
	counters := TrackCounters(logs, dict, playerIDs)
	moves = AssembleStates(moves, scoring, counters, logs, playerIDs)

	var finalState *GameState
	if len(moves) > 0 {
		finalState = moves[len(moves)-1].GameState
	} else {
		finalState = emptyState(playerIDs)
	}

	game := &GameData{
		ReplayID:             replayID,
		PlayerPerspective:    perspective,
		GameDate:             time.Now().Format("2006-01-02"),
		GameDuration:         gameDuration(moves),
		Winner:               determineWinner(roster),
		Generations:          maxGeneration(moves),
		Players:              roster,
		Moves:                moves,
		FinalState:           finalState,
		VPProgression:        vpProgression(snaps),
		ParameterProgression: parameterProgression(moves),
		Metadata: Metadata{
			ParsedAt:   time.Now().Format(time.RFC3339),
			TotalMoves: totalMoves(moves),
			HTMLLength: len(replayDoc),
		},
	}
	return game, nil
}

// ParseReplayWithSummary reconstructs a match and annotates the roster
// with ranking deltas from the separate match-summary document.
func (p *Parser) ParseReplayWithSummary(replayDoc, summaryDoc, replayID, perspective string) (*GameData, error) {
	game, err := p.ParseReplay(replayDoc, replayID, perspective)
	if err != nil {
		return nil, err
	}

	elo := ParseEloData(summaryDoc)
	found := MergeEloData(game.Players, elo)
	game.Metadata.EloDataIncluded = found > 0
	game.Metadata.EloPlayersFound = found
	if len(elo) > 0 && found < len(game.Players) {
		log.Printf("[Parser] %s: ranking data covered %d of %d players", replayID, found, len(game.Players))
	}
	return game, nil
}

// extractRoster resolves the player list. Order of preference: explicit
// (player_id, player_name) argument pairs in the event log, playername
// spans in the rendered document, then names scraped from move text.
// Final VP and breakdown come from the last scoring snapshot.
func extractRoster(doc *html.Node, logs *Gamelogs, snaps []ScoringSnapshot) map[string]*Player {
	var finalVP map[string]PlayerVP
	if len(snaps) > 0 {
		finalVP = snaps[len(snaps)-1].PlayerVP
	}

	idToName := make(map[string]string)
	if logs != nil {
		for _, entry := range logs.Data.Data {
			for _, item := range entry.Data {
				id := item.Args.PlayerID.String()
				name := item.Args.PlayerName
				if id == "" || name == "" {
					continue
				}
				if finalVP != nil {
					if _, valid := finalVP[id]; !valid {
						continue
					}
				}
				idToName[id] = name
			}
		}
	}

	// Fallback: rendered playername spans, paired against snapshot IDs.
	if len(idToName) == 0 && doc != nil {
		var names []string
		seen := make(map[string]bool)
		for _, span := range elementsByClass(doc, "playername") {
			name := strings.TrimSpace(textContent(span))
			if name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		idToName = pairNamesToIDs(names, finalVP)
	}

	if len(idToName) == 0 && doc != nil {
		idToName = pairNamesToIDs(playerNamesFromMoves(doc), finalVP)
	}

	players := make(map[string]*Player, len(idToName))
	for id, name := range idToName {
		player := &Player{
			PlayerID:          id,
			PlayerName:        name,
			Corporation:       "Unknown",
			FinalTR:           20,
			VPBreakdown:       map[string]int{},
			CardsPlayed:       []string{},
			MilestonesClaimed: []string{},
			AwardsFunded:      []string{},
		}
		if vp, ok := finalVP[id]; ok {
			player.FinalVP = vp.Total
			if vp.TotalDetails != nil {
				player.VPBreakdown = vp.TotalDetails
				if tr, ok := vp.TotalDetails["tr"]; ok {
					player.FinalTR = tr
				}
			}
		}
		players[id] = player
	}
	return players
}

// pairNamesToIDs assigns snapshot player IDs to display names when the
// event log gave no explicit pairing. With matching cardinality the
// names are zipped against the IDs in stable sorted order; otherwise
// synthetic IDs keep the roster complete rather than dropping players.
func pairNamesToIDs(names []string, finalVP map[string]PlayerVP) map[string]string {
	idToName := make(map[string]string, len(names))

	var ids []string
	for id := range finalVP {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if len(ids) == len(names) && len(names) > 0 {
		for i, id := range ids {
			idToName[id] = names[i]
		}
		return idToName
	}

	for i, name := range names {
		idToName[fmt.Sprintf("unknown_%d", i)] = name
	}
	return idToName
}

// playerNamesFromMoves scrapes candidate player names from move text as a
// last resort.
var moveNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\w+(?:\s+\w+)*) plays card`),
	regexp.MustCompile(`(\w+(?:\s+\w+)*) chooses corporation`),
	regexp.MustCompile(`(\w+(?:\s+\w+)*) claims milestone`),
	regexp.MustCompile(`(\w+(?:\s+\w+)*) places`),
	regexp.MustCompile(`(\w+(?:\s+\w+)*) passes`),
}

func playerNamesFromMoves(doc *html.Node) []string {
	seen := make(map[string]bool)
	var names []string
	for _, entry := range elementsByClass(doc, "gamelogreview") {
		text := textContent(entry)
		for _, pattern := range moveNamePatterns {
			for _, m := range pattern.FindAllStringSubmatch(text, -1) {
				name := strings.TrimSpace(m[1])
				if name == "" || len(name) < 2 || name == "You" || seen[name] {
					continue
				}
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

var corporationPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9\s_]+?) chooses corporation ([A-Za-z][A-Za-z0-9\s]+?)(?:\s*\||$)`)

// applyCorporations reads "chooses corporation" lines and records the
// choice on the matching roster player.
func applyCorporations(doc *html.Node, roster map[string]*Player) {
	byName := make(map[string]*Player, len(roster))
	for _, p := range roster {
		byName[p.PlayerName] = p
	}

	for _, entry := range elementsByClass(doc, "gamelogreview") {
		text := textContent(entry)
		if !strings.Contains(text, "chooses corporation") {
			continue
		}
		if m := corporationPattern.FindStringSubmatch(text); m != nil {
			if player, ok := byName[strings.TrimSpace(m[1])]; ok {
				player.Corporation = strings.TrimSpace(m[2])
			}
		}
	}
}

// determineWinner picks the roster player with the highest final VP.
// Ties go to the first player in stable ID order.
func determineWinner(roster map[string]*Player) string {
	winner := unknownPlayerName
	best := -1
	for _, id := range sortedPlayerIDs(roster) {
		if p := roster[id]; p.FinalVP > best {
			best = p.FinalVP
			winner = p.PlayerName
		}
	}
	return winner
}

// gameDuration derives "HH:MM" from the first and last move timestamps,
// tolerating a midnight rollover.
func gameDuration(moves []*Move) string {
	if len(moves) < 2 {
		return "Unknown"
	}
	start, ok1 := clockSeconds(moves[0].Timestamp)
	end, ok2 := clockSeconds(moves[len(moves)-1].Timestamp)
	if !ok1 || !ok2 {
		return "Unknown"
	}

	duration := end - start
	if duration < 0 {
		duration += 24 * 3600
	}
	return fmt.Sprintf("%02d:%02d", duration/3600, (duration%3600)/60)
}

func clockSeconds(ts string) (int, bool) {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return h*3600 + m*60 + s, true
}

func maxGeneration(moves []*Move) int {
	max := initialGeneration
	for _, move := range moves {
		if move.GameState != nil && move.GameState.Generation > max {
			max = move.GameState.Generation
		}
	}
	return max
}

func totalMoves(moves []*Move) int {
	max := 0
	for _, move := range moves {
		if move.MoveNumber > max {
			max = move.MoveNumber
		}
	}
	return max
}

func vpProgression(snaps []ScoringSnapshot) []VPProgressionEntry {
	entries := make([]VPProgressionEntry, 0, len(snaps))
	for _, snap := range snaps {
		moveNumber, ok := snap.MoveNumber()
		if !ok {
			continue
		}
		combined := 0
		for _, vp := range snap.PlayerVP {
			combined += vp.Total
		}
		entries = append(entries, VPProgressionEntry{
			MoveIndex:     moveNumber - 1,
			Time:          snap.Time,
			CombinedTotal: combined,
			VPData:        snap.PlayerVP,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].MoveIndex < entries[j].MoveIndex
	})
	return entries
}

func parameterProgression(moves []*Move) []ParameterPoint {
	points := make([]ParameterPoint, 0, len(moves))
	for _, move := range moves {
		if move.GameState == nil {
			continue
		}
		points = append(points, ParameterPoint{
			MoveIndex:   move.MoveNumber - 1,
			Generation:  move.GameState.Generation,
			Temperature: move.GameState.Temperature,
			Oxygen:      move.GameState.Oxygen,
			Oceans:      move.GameState.Oceans,
		})
	}
	return points
}

func emptyState(playerIDs []string) *GameState {
	state := &GameState{
		MoveNumber:     0,
		Generation:     initialGeneration,
		Temperature:    initialTemperature,
		Oxygen:         initialOxygen,
		Oceans:         initialOceans,
		PlayerVP:       make(map[string]PlayerVP, len(playerIDs)),
		Milestones:     map[string]ClaimRecord{},
		Awards:         map[string]ClaimRecord{},
		PlayerCounters: make(map[string]map[string]int, len(playerIDs)),
	}
	for _, id := range playerIDs {
		state.PlayerVP[id] = baselineVP()
		state.PlayerCounters[id] = map[string]int{}
	}
	return state
}

func sortedPlayerIDs(roster map[string]*Player) []string {
	ids := make([]string, 0, len(roster))
	for id := range roster {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
