package replay

import (
	"encoding/json"
	"log"
	"sort"
	"strconv"
)

// ScoringSnapshot is one periodic VP-breakdown record from the embedded
// event log. MoveID stays a string until correlation: scoring entries are
// tagged with the log's own identifiers, not the rendered move ordinals.
type ScoringSnapshot struct {
	MoveID   string              `json:"move_id"`
	Time     string              `json:"time,omitempty"`
	PlayerVP map[string]PlayerVP `json:"vp_data"`
}

// MoveNumber returns the snapshot's move ordinal when MoveID is numeric.
func (s *ScoringSnapshot) MoveNumber() (int, bool) {
	n, err := strconv.Atoi(s.MoveID)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractScoringSnapshots pulls every scoringTable event out of the log,
// replacing identifier keys in the breakdown details with display names.
func ExtractScoringSnapshots(logs *Gamelogs, dict *Dictionary, tileToHex map[string]string) []ScoringSnapshot {
	var snaps []ScoringSnapshot

	for _, entry := range logs.Entries() {
		for _, item := range entry.Data {
			if item.Type != "scoringTable" || len(item.Args.Data) == 0 {
				continue
			}

			var scoring map[string]PlayerVP
			if err := json.Unmarshal(item.Args.Data, &scoring); err != nil {
				log.Printf("[Scoring] Move %s: undecodable scoring table: %v", entry.MoveID, err)
				continue
			}

			for id, vp := range scoring {
				vp.Details = renameVPDetails(vp.Details, dict, tileToHex)
				scoring[id] = vp
			}

			snaps = append(snaps, ScoringSnapshot{
				MoveID:   entry.MoveID.String(),
				Time:     entry.Time.String(),
				PlayerVP: scoring,
			})
		}
	}
	return snaps
}

// renameVPDetails maps item identifiers inside a VP breakdown to display
// names. Unresolved identifiers keep their "Unknown (<id>)" form so the
// gap is visible downstream. The tr category is dropped: its value is
// already carried in total_details.
func renameVPDetails(details map[string]map[string]VPItem, dict *Dictionary, tileToHex map[string]string) map[string]map[string]VPItem {
	if details == nil {
		return nil
	}

	renamed := make(map[string]map[string]VPItem, len(details))
	for category, items := range details {
		if category == "tr" {
			continue
		}

		renamedItems := make(map[string]VPItem, len(items))
		for id, item := range items {
			name := id
			switch category {
			case "cards":
				name = dict.Card(id).Name
			case "milestones":
				name = dict.Milestone(id).Name
			case "awards":
				name = dict.Award(id).Name
			case "cities", "greeneries":
				if hexID, ok := tileToHex[id]; ok {
					if res := dict.Hex(hexID); res.Source == SourceResolved {
						name = res.Name
					}
				}
			}
			renamedItems[name] = item
		}
		renamed[category] = renamedItems
	}
	return renamed
}

// baselineVP is the state every player starts from: terraform rating 20,
// nothing else scored yet.
func baselineVP() PlayerVP {
	return PlayerVP{
		Total: 20,
		TotalDetails: map[string]int{
			"tr":         20,
			"awards":     0,
			"milestones": 0,
			"cities":     0,
			"greeneries": 0,
			"cards":      0,
		},
	}
}

// CorrelateScoring aligns scoring snapshots to the move timeline. The
// result is parallel to moves sorted by ascending move number: position i
// holds the complete per-player VP state after sortedMoves[i].
//
// Snapshots are emitted periodically, not per move, so a move without one
// reuses the last known state (the baseline before any snapshot exists).
// A player absent from a snapshot is filled with the baseline without ever
// touching players for whom the snapshot has real data. Every returned map
// has one entry per roster player.
func CorrelateScoring(moves []*Move, snaps []ScoringSnapshot, playerIDs []string) []map[string]PlayerVP {
	byMoveID := make(map[string]map[string]PlayerVP, len(snaps))
	for _, s := range snaps {
		byMoveID[s.MoveID] = s.PlayerVP
	}

	sorted := sortedByMoveNumber(moves)

	last := make(map[string]PlayerVP, len(playerIDs))
	for _, id := range playerIDs {
		last[id] = baselineVP()
	}

	aligned := make([]map[string]PlayerVP, len(sorted))
	for i, move := range sorted {
		if snap, ok := byMoveID[strconv.Itoa(move.MoveNumber)]; ok {
			last = snap
		}

		state := make(map[string]PlayerVP, len(playerIDs))
		for _, id := range playerIDs {
			if vp, ok := last[id]; ok {
				state[id] = vp
			} else {
				state[id] = baselineVP()
			}
		}
		aligned[i] = state
	}
	return aligned
}

// sortedByMoveNumber returns the moves in ascending move-number order
// without reordering the caller's slice. Carry-forward logic is only
// correct over ascending input, so document order is never trusted.
func sortedByMoveNumber(moves []*Move) []*Move {
	sorted := make([]*Move, len(moves))
	copy(sorted, moves)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MoveNumber < sorted[j].MoveNumber
	})
	return sorted
}
