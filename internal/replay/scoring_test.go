package replay

import (
	"encoding/json"
	"testing"
)

func moveFixture(numbers ...int) []*Move {
	moves := make([]*Move, len(numbers))
	for i, n := range numbers {
		moves[i] = &Move{MoveNumber: n}
	}
	return moves
}

// TestExtractScoringSnapshots verifies scoringTable events are decoded
// and their detail keys renamed through the dictionaries
func TestExtractScoringSnapshots(t *testing.T) {
	scoringData := map[string]PlayerVP{
		"86296239": {
			Total:        25,
			TotalDetails: map[string]int{"tr": 22, "cards": 2, "cities": 1, "greeneries": 0, "milestones": 0, "awards": 0},
			Details: map[string]map[string]VPItem{
				"tr":     {"tr": {"vp": float64(22)}},
				"cards":  {"card_main_3": {"vp": float64(2)}},
				"cities": {"tile_7": {"vp": float64(1)}},
			},
		},
	}
	raw, err := json.Marshal(scoringData)
	if err != nil {
		t.Fatalf("Failed to marshal fixture: %v", err)
	}

	logs := &Gamelogs{Data: GamelogsData{Data: []MoveEntry{
		{MoveID: "14", Time: "17:20:01", Data: []EventItem{
			{Type: "scoringTable", Args: EventArgs{Data: raw}},
		}},
		{MoveID: "15", Data: []EventItem{{Type: "gameStateChange"}}},
	}}}

	dict := ResolveDictionaries(`<div id="card_main_3" data-name="Space Elevator"></div><div id="hex_4_6" data-name="Ascraeus Mons"></div>`)
	tileToHex := map[string]string{"tile_7": "hex_4_6"}

	snaps := ExtractScoringSnapshots(logs, dict, tileToHex)
	if len(snaps) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snaps))
	}

	snap := snaps[0]
	if snap.MoveID != "14" || snap.Time != "17:20:01" {
		t.Errorf("Snapshot header wrong: move=%s time=%s", snap.MoveID, snap.Time)
	}

	vp := snap.PlayerVP["86296239"]
	if vp.Total != 25 {
		t.Errorf("Expected total 25, got %d", vp.Total)
	}
	if _, ok := vp.Details["tr"]; ok {
		t.Error("tr category should be dropped from details")
	}
	if item, ok := vp.Details["cards"]["Space Elevator"]; !ok {
		t.Errorf("Card key should be renamed, details: %v", vp.Details["cards"])
	} else if item.VP() != 2 {
		t.Errorf("Expected vp 2, got %d", item.VP())
	}
	if _, ok := vp.Details["cities"]["Ascraeus Mons"]; !ok {
		t.Errorf("City tile should be renamed via hex mapping, details: %v", vp.Details["cities"])
	}
}

// TestExtractScoringSnapshots_UnresolvedTile verifies that a tile whose
// map cell has no resolved name keeps its token identifier
func TestExtractScoringSnapshots_UnresolvedTile(t *testing.T) {
	raw, _ := json.Marshal(map[string]PlayerVP{
		"86296239": {
			Total: 21,
			Details: map[string]map[string]VPItem{
				"greeneries": {"tile_9": {"vp": float64(1)}},
			},
		},
	})

	logs := &Gamelogs{Data: GamelogsData{Data: []MoveEntry{
		{MoveID: "8", Data: []EventItem{{Type: "scoringTable", Args: EventArgs{Data: raw}}}},
	}}}

	snaps := ExtractScoringSnapshots(logs, ResolveDictionaries(""), map[string]string{"tile_9": "hex_2_2"})
	if len(snaps) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snaps))
	}
	if _, ok := snaps[0].PlayerVP["86296239"].Details["greeneries"]["tile_9"]; !ok {
		t.Errorf("Unresolved tile should keep its token ID, details: %v",
			snaps[0].PlayerVP["86296239"].Details["greeneries"])
	}
}

// TestCorrelateScoring_CarryForward verifies that moves between snapshots
// reuse the last known state and moves before any snapshot get the baseline
func TestCorrelateScoring_CarryForward(t *testing.T) {
	playerIDs := []string{"86296239", "93336235"}
	snaps := []ScoringSnapshot{
		{MoveID: "3", PlayerVP: map[string]PlayerVP{
			"86296239": {Total: 23, TotalDetails: map[string]int{"tr": 23}},
			"93336235": {Total: 21, TotalDetails: map[string]int{"tr": 21}},
		}},
	}

	aligned := CorrelateScoring(moveFixture(1, 2, 3, 4, 5), snaps, playerIDs)
	if len(aligned) != 5 {
		t.Fatalf("Expected 5 aligned states, got %d", len(aligned))
	}

	// Moves 1 and 2 predate the snapshot: baseline of 20
	for i := 0; i < 2; i++ {
		for _, id := range playerIDs {
			if aligned[i][id].Total != 20 {
				t.Errorf("Move %d player %s: expected baseline 20, got %d", i+1, id, aligned[i][id].Total)
			}
		}
	}
	// Moves 3, 4 and 5 carry the snapshot forward
	for i := 2; i < 5; i++ {
		if aligned[i]["86296239"].Total != 23 {
			t.Errorf("Move %d: expected carried total 23, got %d", i+1, aligned[i]["86296239"].Total)
		}
		if aligned[i]["93336235"].Total != 21 {
			t.Errorf("Move %d: expected carried total 21, got %d", i+1, aligned[i]["93336235"].Total)
		}
	}
}

// TestCorrelateScoring_DefaultFill verifies a player missing from a
// snapshot is filled with the baseline without touching real data
func TestCorrelateScoring_DefaultFill(t *testing.T) {
	playerIDs := []string{"86296239", "93336235"}
	snaps := []ScoringSnapshot{
		{MoveID: "2", PlayerVP: map[string]PlayerVP{
			"86296239": {Total: 30, TotalDetails: map[string]int{"tr": 24}},
		}},
	}

	aligned := CorrelateScoring(moveFixture(1, 2), snaps, playerIDs)

	state := aligned[1]
	if state["86296239"].Total != 30 {
		t.Errorf("Real data must never be overwritten: got %d", state["86296239"].Total)
	}
	if state["93336235"].Total != 20 {
		t.Errorf("Missing player should get baseline, got %d", state["93336235"].Total)
	}
	if state["93336235"].TotalDetails["tr"] != 20 {
		t.Errorf("Baseline should carry tr 20, got %d", state["93336235"].TotalDetails["tr"])
	}
}

// TestCorrelateScoring_OutOfOrderMoves verifies alignment follows move
// numbers, not input slice order
func TestCorrelateScoring_OutOfOrderMoves(t *testing.T) {
	playerIDs := []string{"86296239"}
	snaps := []ScoringSnapshot{
		{MoveID: "2", PlayerVP: map[string]PlayerVP{"86296239": {Total: 26}}},
	}

	aligned := CorrelateScoring(moveFixture(3, 1, 2), snaps, playerIDs)

	if aligned[0]["86296239"].Total != 20 {
		t.Errorf("Move 1 should be baseline, got %d", aligned[0]["86296239"].Total)
	}
	if aligned[1]["86296239"].Total != 26 {
		t.Errorf("Move 2 should adopt snapshot, got %d", aligned[1]["86296239"].Total)
	}
	if aligned[2]["86296239"].Total != 26 {
		t.Errorf("Move 3 should carry snapshot forward, got %d", aligned[2]["86296239"].Total)
	}
}

// TestScoringSnapshot_MoveNumber verifies numeric and non-numeric move IDs
func TestScoringSnapshot_MoveNumber(t *testing.T) {
	s := &ScoringSnapshot{MoveID: "14"}
	if n, ok := s.MoveNumber(); !ok || n != 14 {
		t.Errorf("Expected 14, got %d (ok=%v)", n, ok)
	}
	s = &ScoringSnapshot{MoveID: "summary"}
	if _, ok := s.MoveNumber(); ok {
		t.Error("Non-numeric move ID should not parse")
	}
}
