package replay

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	unknownPlayerID   = "unknown"
	unknownPlayerName = "Unknown"
)

var (
	moveNumberPattern = regexp.MustCompile(`Move (\d+)`)
	timestampPattern  = regexp.MustCompile(`(\d{1,2}:\d{2}:\d{2})`)

	cardPlayedPattern = regexp.MustCompile(`plays card (.+)`)
	cardCostPattern   = regexp.MustCompile(`pays (\d+)`)

	milestoneClaimPattern = regexp.MustCompile(`claims milestone (\w+)`)
	awardFundPattern      = regexp.MustCompile(`funds (\w+) award`)
)

// actionMatchers is the ordered classification table for move text. The
// first entry whose substrings all occur in the combined description wins;
// nothing matching falls through to ActionOther.
var actionMatchers = []struct {
	substrings []string
	action     ActionType
}{
	{[]string{"plays card"}, ActionPlayCard},
	{[]string{"places City"}, ActionPlaceTile},
	{[]string{"places Forest"}, ActionPlaceTile},
	{[]string{"places Ocean"}, ActionPlaceTile},
	{[]string{"standard project"}, ActionStandardProject},
	{[]string{"passes"}, ActionPass},
	{[]string{"Convert heat into temperature"}, ActionConvertHeat},
	{[]string{"claims milestone"}, ActionClaimMilestone},
	{[]string{"funds", "award"}, ActionFundAward},
	{[]string{"activates"}, ActionActivateCard},
	{[]string{"New generation"}, ActionNewGeneration},
	{[]string{"draft"}, ActionDraftCard},
	{[]string{"Buy Card"}, ActionBuyCard},
}

func classifyAction(description string) ActionType {
	for _, m := range actionMatchers {
		matched := true
		for _, sub := range m.substrings {
			if !strings.Contains(description, sub) {
				matched = false
				break
			}
		}
		if matched {
			return m.action
		}
	}
	return ActionOther
}

// actionVerbs are the verbs whose co-occurrence with a player name marks
// that player as the actor when the event log gives no answer.
var actionVerbs = []string{
	"plays", "pays", "gains", "increases", "reduces", "places", "chooses",
	"passes", "claims", "funds", "activates", "buys",
}

// MoveLogParser turns rendered move blocks into typed Move records and
// folds their outcomes into the owning players' accumulator lists.
type MoveLogParser struct {
	roster      map[string]*Player
	logs        *Gamelogs
	perspective string // player ID "You" resolves to, may be empty

	nameToID map[string]string
}

// NewMoveLogParser builds a parser over the given roster. logs may be nil
// when the structured event log was unavailable; player attribution then
// relies on the rendered text alone.
func NewMoveLogParser(roster map[string]*Player, logs *Gamelogs, perspective string) *MoveLogParser {
	nameToID := make(map[string]string, len(roster))
	for id, p := range roster {
		nameToID[p.PlayerName] = id
	}
	return &MoveLogParser{
		roster:      roster,
		logs:        logs,
		perspective: perspective,
		nameToID:    nameToID,
	}
}

// Parse walks every rendered move block in the document. Blocks without a
// move number are skipped, not errored; an unresolvable acting player is
// recorded as Unknown and the move kept.
func (p *MoveLogParser) Parse(doc *html.Node) []*Move {
	var moves []*Move
	for _, block := range elementsByClass(doc, "replaylogs_move") {
		move := p.parseBlock(block)
		if move == nil {
			continue
		}
		moves = append(moves, move)
		p.foldIntoPlayer(move)
	}
	return moves
}

func (p *MoveLogParser) parseBlock(block *html.Node) *Move {
	info := firstByClass(block, "smalltext")
	if info == nil {
		return nil
	}
	infoText := textContent(info)

	numMatch := moveNumberPattern.FindStringSubmatch(infoText)
	if numMatch == nil {
		return nil
	}
	moveNumber, _ := strconv.Atoi(numMatch[1])

	timestamp := ""
	if tsMatch := timestampPattern.FindStringSubmatch(infoText); tsMatch != nil {
		timestamp = tsMatch[1]
	}

	entries := elementsByClass(block, "gamelogreview")
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, textContent(e))
	}
	description := strings.Join(texts, " | ")

	playerName, playerID := p.determinePlayerFromLogs(moveNumber)
	if playerID == unknownPlayerID {
		playerName, playerID = p.determinePlayerFromText(texts)
	}

	move := &Move{
		MoveNumber:  moveNumber,
		Timestamp:   timestamp,
		PlayerID:    playerID,
		PlayerName:  playerName,
		ActionType:  classifyAction(description),
		Description: description,
	}
	move.CardPlayed = extractCardPlayed(entries, texts)
	move.CardCost = extractCardCost(texts)
	move.TilePlaced, move.TileLocation = extractTilePlacement(texts)
	return move
}

// determinePlayerFromLogs reads the acting player from the structured
// event log, the most reliable source when present.
func (p *MoveLogParser) determinePlayerFromLogs(moveNumber int) (string, string) {
	if p.logs == nil {
		return unknownPlayerName, unknownPlayerID
	}
	entry := p.logs.EntryForMove(moveNumber)
	if entry == nil || len(entry.Data) == 0 {
		return unknownPlayerName, unknownPlayerID
	}

	args := entry.Data[0].Args
	playerID := args.ActivePlayer.String()
	if playerID == "" {
		playerID = args.PlayerID.String()
	}
	if playerID == "" {
		return unknownPlayerName, unknownPlayerID
	}

	if player, ok := p.roster[playerID]; ok {
		return player.PlayerName, playerID
	}
	// ID with no roster mapping: keep the ID visible rather than dropping it.
	return fmt.Sprintf("Player_%s", playerID), playerID
}

// determinePlayerFromText attributes the move by an explicit player name
// co-occurring with an action verb, then by the "You" self-reference
// resolved through the caller's perspective.
func (p *MoveLogParser) determinePlayerFromText(texts []string) (string, string) {
	for _, text := range texts {
		for name, id := range p.nameToID {
			if !strings.Contains(text, name) {
				continue
			}
			for _, verb := range actionVerbs {
				if strings.Contains(text, verb) {
					return name, id
				}
			}
		}
		if strings.HasPrefix(text, "You ") {
			if p.perspective != "" {
				if player, ok := p.roster[p.perspective]; ok {
					return player.PlayerName, p.perspective
				}
			}
			return "You", "you"
		}
	}
	return unknownPlayerName, unknownPlayerID
}

func extractCardPlayed(entries []*html.Node, texts []string) string {
	for i, text := range texts {
		if !strings.Contains(text, "plays card") {
			continue
		}
		if link := firstByClass(entries[i], "card_hl_tt"); link != nil {
			return strings.TrimSpace(textContent(link))
		}
		if m := cardPlayedPattern.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func extractCardCost(texts []string) *int {
	for _, text := range texts {
		if !strings.Contains(text, "pays") || !strings.Contains(text, "M€") {
			continue
		}
		if m := cardCostPattern.FindStringSubmatch(text); m != nil {
			cost, err := strconv.Atoi(m[1])
			if err == nil {
				return &cost
			}
		}
	}
	return nil
}

var tileTypes = []string{"City", "Forest", "Ocean"}

func extractTilePlacement(texts []string) (string, string) {
	for _, text := range texts {
		for _, tile := range tileTypes {
			marker := "places " + tile + " on "
			if idx := strings.Index(text, marker); idx >= 0 {
				location := strings.TrimSpace(text[idx+len(marker):])
				// The combined description joins entries with " | ".
				if cut := strings.Index(location, " | "); cut >= 0 {
					location = location[:cut]
				}
				if location == "" {
					location = "Unknown"
				}
				return tile, location
			}
		}
	}
	return "", ""
}

// foldIntoPlayer appends the move's outcome to the acting player's
// accumulator lists.
func (p *MoveLogParser) foldIntoPlayer(move *Move) {
	player, ok := p.roster[move.PlayerID]
	if !ok {
		if move.PlayerID != unknownPlayerID {
			log.Printf("[MoveLog] Move %d attributed to unrostered player %s", move.MoveNumber, move.PlayerID)
		}
		return
	}

	if move.CardPlayed != "" {
		player.CardsPlayed = append(player.CardsPlayed, move.CardPlayed)
	}
	if move.ActionType == ActionClaimMilestone {
		if m := milestoneClaimPattern.FindStringSubmatch(move.Description); m != nil {
			player.MilestonesClaimed = append(player.MilestonesClaimed, m[1])
		}
	}
	if move.ActionType == ActionFundAward {
		if m := awardFundPattern.FindStringSubmatch(move.Description); m != nil {
			player.AwardsFunded = append(player.AwardsFunded, m[1])
		}
	}
}
