package replay

import (
	"regexp"
	"strconv"
)

// Starting terraforming parameters.
const (
	initialTemperature = -30
	initialOxygen      = 0
	initialOceans      = 0
	initialGeneration  = 1
)

// Global parameter trackers in the event log.
const (
	temperatureToken = "tracker_t"
	oxygenToken      = "tracker_o"
	oceansToken      = "tracker_w"
)

// parameterChange holds the parameters a single move touched. Each field
// is independently optional; nil means the prior value carries forward.
type parameterChange struct {
	Temperature *int
	Oxygen      *int
	Oceans      *int
}

func (c *parameterChange) empty() bool {
	return c.Temperature == nil && c.Oxygen == nil && c.Oceans == nil
}

// extractParameterChanges reads temperature/oxygen/ocean values from the
// global-tracker counter events, keyed by move number.
func extractParameterChanges(logs *Gamelogs) map[int]parameterChange {
	changes := make(map[int]parameterChange)
	if logs == nil {
		return changes
	}

	for _, entry := range logs.Data.Data {
		moveNumber, ok := entry.MoveNumber()
		if !ok {
			continue
		}
		change := changes[moveNumber]
		for _, item := range entry.Data {
			if item.Type != "counter" {
				continue
			}
			value, ok := item.Args.CounterValue.Int()
			if !ok {
				continue
			}
			v := value
			switch item.Args.TokenName {
			case temperatureToken:
				change.Temperature = &v
			case oxygenToken:
				change.Oxygen = &v
			case oceansToken:
				change.Oceans = &v
			}
		}
		if !change.empty() {
			changes[moveNumber] = change
		}
	}
	return changes
}

// Text fallbacks for parameter changes, used when the event log is
// unavailable. Several phrasings occur across site versions.
var (
	temperatureTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Temperature.*?increases.*?by \d+ step.*?to a value of (-?\d+)`),
		regexp.MustCompile(`(?i)increases.*?Temperature.*?by \d+ step.*?to a value of (-?\d+)`),
		regexp.MustCompile(`(?i)Temperature.*?to a value of (-?\d+)`),
	}
	oxygenTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Oxygen Level.*?increases.*?by \d+ step.*?to a value of (\d+)`),
		regexp.MustCompile(`(?i)increases.*?Oxygen Level.*?by \d+ step.*?to a value of (\d+)`),
		regexp.MustCompile(`(?i)Oxygen Level.*?to a value of (\d+)`),
	}
	oceansTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Oceans.*?increases.*?by \d+ step.*?to a value of (\d+)`),
		regexp.MustCompile(`(?i)increases.*?Oceans.*?by \d+ step.*?to a value of (\d+)`),
		regexp.MustCompile(`(?i)Oceans.*?to a value of (\d+)`),
	}
)

func parameterChangeFromText(description string) parameterChange {
	var change parameterChange
	if v, ok := firstIntMatch(temperatureTextPatterns, description); ok {
		change.Temperature = &v
	}
	if v, ok := firstIntMatch(oxygenTextPatterns, description); ok {
		change.Oxygen = &v
	}
	if v, ok := firstIntMatch(oceansTextPatterns, description); ok {
		change.Oceans = &v
	}
	return change
}

func firstIntMatch(patterns []*regexp.Regexp, text string) (int, bool) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

var newGenerationPattern = regexp.MustCompile(`New generation (\d+)`)

// AssembleStates zips the parsed moves with the correlated scoring states
// and counter snapshots into one GameState per move, folding in parameter
// changes, generation markers, and milestone/award claims.
//
// It is a total function over its inputs: no I/O, no error paths. Input
// moves are processed in ascending move-number order regardless of slice
// order, and every produced state carries an entry for every roster player
// in both player_vp and player_counters.
func AssembleStates(moves []*Move, scoring []map[string]PlayerVP, counters CounterSnapshots, logs *Gamelogs, playerIDs []string) []*Move {
	sorted := sortedByMoveNumber(moves)
	paramChanges := extractParameterChanges(logs)

	temperature := initialTemperature
	oxygen := initialOxygen
	oceans := initialOceans
	generation := initialGeneration

	milestones := make(map[string]ClaimRecord)
	awards := make(map[string]ClaimRecord)

	for i, move := range sorted {
		if move.ActionType == ActionNewGeneration {
			if m := newGenerationPattern.FindStringSubmatch(move.Description); m != nil {
				if g, err := strconv.Atoi(m[1]); err == nil {
					generation = g
				}
			}
		}

		change, ok := paramChanges[move.MoveNumber]
		if !ok {
			change = parameterChangeFromText(move.Description)
		}
		if change.Temperature != nil {
			temperature = *change.Temperature
		}
		if change.Oxygen != nil {
			oxygen = *change.Oxygen
		}
		if change.Oceans != nil {
			oceans = *change.Oceans
		}

		// One slot per milestone/award name: the first claim wins and
		// later claims for the same name are ignored.
		if move.ActionType == ActionClaimMilestone {
			if m := milestoneClaimPattern.FindStringSubmatch(move.Description); m != nil {
				if _, claimed := milestones[m[1]]; !claimed {
					milestones[m[1]] = ClaimRecord{
						ClaimedBy:  move.PlayerName,
						PlayerID:   move.PlayerID,
						MoveNumber: move.MoveNumber,
						Timestamp:  move.Timestamp,
					}
				}
			}
		}
		if move.ActionType == ActionFundAward {
			if m := awardFundPattern.FindStringSubmatch(move.Description); m != nil {
				if _, funded := awards[m[1]]; !funded {
					awards[m[1]] = ClaimRecord{
						ClaimedBy:  move.PlayerName,
						PlayerID:   move.PlayerID,
						MoveNumber: move.MoveNumber,
						Timestamp:  move.Timestamp,
					}
				}
			}
		}

		state := &GameState{
			MoveNumber:     move.MoveNumber,
			Generation:     generation,
			Temperature:    temperature,
			Oxygen:         oxygen,
			Oceans:         oceans,
			PlayerVP:       scoring[i],
			Milestones:     copyClaims(milestones),
			Awards:         copyClaims(awards),
			PlayerCounters: countersForMove(counters, move.MoveNumber, playerIDs),
		}
		move.GameState = state
	}
	return sorted
}

func copyClaims(claims map[string]ClaimRecord) map[string]ClaimRecord {
	copied := make(map[string]ClaimRecord, len(claims))
	for name, record := range claims {
		copied[name] = record
	}
	return copied
}

// countersForMove returns the counter snapshot for the move, guaranteeing
// an entry per roster player even when no counter data exists at all.
func countersForMove(counters CounterSnapshots, moveNumber int, playerIDs []string) map[string]map[string]int {
	snap := counters.For(moveNumber)
	out := make(map[string]map[string]int, len(playerIDs))
	for _, id := range playerIDs {
		if snap != nil && snap[id] != nil {
			out[id] = snap[id]
		} else {
			out[id] = map[string]int{}
		}
	}
	return out
}
