package replay

import (
	"errors"
	"testing"
)

// replayFixture is a small but complete replay document: embedded event
// log with a scoring table and counter events, name dictionaries, and the
// rendered move blocks the engine walks.
const replayFixture = `<html><head>
<script type="text/javascript">
g_gamelogs = {"data":{"data":[
 {"move_id":"1","time":"17:00:05","data":[{"type":"gameStateChange","args":{"active_player":"86296239","player_id":"86296239","player_name":"Alice"}}]},
 {"move_id":"2","time":"17:00:40","data":[{"type":"gameStateChange","args":{"active_player":"93336235","player_id":"93336235","player_name":"Bob"}}]},
 {"move_id":"3","time":"17:01:10","data":[
   {"type":"counter","args":{"player_id":"86296239","counter_name":"tracker_s_ff0000","counter_value":5}},
   {"type":"counter","args":{"token_name":"tracker_t","counter_value":-28}},
   {"type":"scoringTable","args":{"data":{"86296239":{"total":23,"total_details":{"tr":21,"awards":0,"milestones":1,"cities":0,"greeneries":0,"cards":2},"details":{"cards":{"card_main_3":{"vp":2}}}},"93336235":{"total":20,"total_details":{"tr":20,"awards":0,"milestones":0,"cities":0,"greeneries":0,"cards":0}}}}}
 ]},
 {"move_id":"4","time":"18:30:00","data":[{"type":"gameStateChange","args":{"active_player":"93336235"}}]}
]}};
</script>
</head><body>
<div id="card_main_3" class="card" data-name="Space Elevator"></div>
<div class="replaylogs_move">
  <div class="smalltext">Move 1 : 17:00:05</div>
  <div class="gamelogreview">Alice chooses corporation Tharsis Republic</div>
</div>
<div class="replaylogs_move">
  <div class="smalltext">Move 2 : 17:00:40</div>
  <div class="gamelogreview">Bob plays card <span class="card_hl_tt">Space Elevator</span></div>
  <div class="gamelogreview">Bob pays 21 M€</div>
</div>
<div class="replaylogs_move">
  <div class="smalltext">Move 3 : 17:01:10</div>
  <div class="gamelogreview">Alice claims milestone Gardener</div>
</div>
<div class="replaylogs_move">
  <div class="smalltext">Move 4 : 18:30:00</div>
  <div class="gamelogreview">Bob passes</div>
</div>
</body></html>`

const summaryFixture = `<html><body>
<div class="score-entry">
  <div class="playername">Alice</div>
  <div class="winpoints">+24</div>
  <div class="newrank">1754 pts</div>
</div>
<div class="score-entry">
  <div class="playername">Bob</div>
  <div class="winpoints">-24</div>
  <div class="newrank">1612 pts</div>
</div>
</body></html>`

// TestParseReplay_EndToEnd verifies the full reconstruction of the
// fixture match
func TestParseReplay_EndToEnd(t *testing.T) {
	game, err := NewParser().ParseReplay(replayFixture, "620761510", "")
	if err != nil {
		t.Fatalf("ParseReplay failed: %v", err)
	}

	if game.ReplayID != "620761510" {
		t.Errorf("Replay ID wrong: %s", game.ReplayID)
	}

	t.Run("Roster", func(t *testing.T) {
		if len(game.Players) != 2 {
			t.Fatalf("Expected 2 players, got %d", len(game.Players))
		}
		alice := game.Players["86296239"]
		if alice == nil || alice.PlayerName != "Alice" {
			t.Fatalf("Alice missing from roster: %+v", game.Players)
		}
		if alice.Corporation != "Tharsis Republic" {
			t.Errorf("Expected corporation from move text, got %q", alice.Corporation)
		}
		if alice.FinalVP != 23 || alice.FinalTR != 21 {
			t.Errorf("Alice final score wrong: vp=%d tr=%d", alice.FinalVP, alice.FinalTR)
		}
		bob := game.Players["93336235"]
		if bob == nil || bob.FinalVP != 20 {
			t.Fatalf("Bob final score wrong: %+v", bob)
		}
		if len(bob.CardsPlayed) != 1 || bob.CardsPlayed[0] != "Space Elevator" {
			t.Errorf("Bob's played cards wrong: %v", bob.CardsPlayed)
		}
	})

	t.Run("Moves", func(t *testing.T) {
		if len(game.Moves) != 4 {
			t.Fatalf("Expected 4 moves, got %d", len(game.Moves))
		}
		if game.Moves[1].ActionType != ActionPlayCard || game.Moves[1].PlayerName != "Bob" {
			t.Errorf("Move 2 wrong: %s by %s", game.Moves[1].ActionType, game.Moves[1].PlayerName)
		}
		if game.Moves[1].CardCost == nil || *game.Moves[1].CardCost != 21 {
			t.Errorf("Move 2 card cost wrong: %v", game.Moves[1].CardCost)
		}
		if game.Moves[2].ActionType != ActionClaimMilestone {
			t.Errorf("Move 3 should be claim_milestone, got %s", game.Moves[2].ActionType)
		}
	})

	t.Run("FinalState", func(t *testing.T) {
		final := game.FinalState
		if final == nil {
			t.Fatal("No final state")
		}
		if final.Temperature != -28 {
			t.Errorf("Expected temperature -28 carried to the end, got %d", final.Temperature)
		}
		if final.PlayerVP["86296239"].Total != 23 {
			t.Errorf("Final VP should carry the snapshot, got %d", final.PlayerVP["86296239"].Total)
		}
		// Card identifiers in the breakdown are renamed via the dictionary
		if _, ok := final.PlayerVP["86296239"].Details["cards"]["Space Elevator"]; !ok {
			t.Errorf("Card detail key should be renamed: %v", final.PlayerVP["86296239"].Details)
		}
		if claim, ok := final.Milestones["Gardener"]; !ok || claim.ClaimedBy != "Alice" {
			t.Errorf("Gardener claim wrong: %+v", final.Milestones)
		}
		if got := final.PlayerCounters["86296239"]["Steel"]; got != 5 {
			t.Errorf("Expected Steel 5 in final counters, got %d", got)
		}
		if _, ok := final.PlayerCounters["93336235"]; !ok {
			t.Error("Every roster player must appear in player_counters")
		}
	})

	t.Run("Summary", func(t *testing.T) {
		if game.Winner != "Alice" {
			t.Errorf("Expected winner Alice, got %s", game.Winner)
		}
		if game.Generations != 1 {
			t.Errorf("Expected 1 generation, got %d", game.Generations)
		}
		if game.GameDuration != "01:29" {
			t.Errorf("Expected duration 01:29, got %s", game.GameDuration)
		}
		if game.Metadata.TotalMoves != 4 {
			t.Errorf("Expected 4 total moves, got %d", game.Metadata.TotalMoves)
		}
		if game.Metadata.EloDataIncluded {
			t.Error("No summary document given, elo flag should be false")
		}
	})

	t.Run("Progressions", func(t *testing.T) {
		if len(game.VPProgression) != 1 {
			t.Fatalf("Expected 1 VP progression entry, got %d", len(game.VPProgression))
		}
		entry := game.VPProgression[0]
		if entry.MoveIndex != 2 {
			t.Errorf("Snapshot at move 3 should have move index 2, got %d", entry.MoveIndex)
		}
		if entry.CombinedTotal != 43 {
			t.Errorf("Expected combined total 43, got %d", entry.CombinedTotal)
		}
		if len(game.ParameterProgression) != 4 {
			t.Fatalf("Expected 4 parameter points, got %d", len(game.ParameterProgression))
		}
		if game.ParameterProgression[2].Temperature != -28 {
			t.Errorf("Parameter point 3 temperature wrong: %+v", game.ParameterProgression[2])
		}
	})
}

// TestParseReplayWithSummary verifies ranking annotation from the
// separate summary document
func TestParseReplayWithSummary(t *testing.T) {
	game, err := NewParser().ParseReplayWithSummary(replayFixture, summaryFixture, "620761510", "")
	if err != nil {
		t.Fatalf("ParseReplayWithSummary failed: %v", err)
	}

	if !game.Metadata.EloDataIncluded || game.Metadata.EloPlayersFound != 2 {
		t.Errorf("Elo metadata wrong: %+v", game.Metadata)
	}
	alice := game.Players["86296239"].EloData
	if alice == nil || alice.ArenaPointsChange == nil || *alice.ArenaPointsChange != 24 {
		t.Errorf("Alice elo wrong: %+v", alice)
	}
	if alice.ArenaPoints == nil || *alice.ArenaPoints != 1754 {
		t.Errorf("Alice arena points wrong: %+v", alice)
	}
}

// TestParseReplay_Fatal verifies the two conditions that abort a parse
func TestParseReplay_Fatal(t *testing.T) {
	t.Run("NoEventLog", func(t *testing.T) {
		_, err := NewParser().ParseReplay("<html><body>empty page</body></html>", "1", "")
		if !errors.Is(err, ErrNoEventLog) {
			t.Errorf("Expected ErrNoEventLog, got %v", err)
		}
	})

	t.Run("NoPlayers", func(t *testing.T) {
		doc := `<script>g_gamelogs = {"data":{"data":[{"move_id":"1","data":[]}]}};</script>`
		_, err := NewParser().ParseReplay(doc, "1", "")
		if !errors.Is(err, ErrNoPlayers) {
			t.Errorf("Expected ErrNoPlayers, got %v", err)
		}
	})
}

// TestParseReplay_FallbackScoring verifies the degraded path when the
// event log is unextractable but scoring fragments survive in the page
func TestParseReplay_FallbackScoring(t *testing.T) {
	doc := `<html><body>
<span class="playername">Alice</span>
<span class="playername">Bob</span>
<div>"data":{"86296239":{"total":25},"93336235":{"total":22}}</div>
<div class="replaylogs_move">
  <div class="smalltext">Move 1 : 17:00:00</div>
  <div class="gamelogreview">Alice passes</div>
</div>
</body></html>`

	game, err := NewParser().ParseReplay(doc, "99", "")
	if err != nil {
		t.Fatalf("ParseReplay failed on fallback path: %v", err)
	}
	if len(game.Players) != 2 {
		t.Fatalf("Expected 2 players from span fallback, got %d", len(game.Players))
	}
	// Names are zipped against scoring IDs in stable order
	if game.Players["86296239"] == nil || game.Players["93336235"] == nil {
		t.Fatalf("Expected snapshot IDs in roster, got %v", game.Players)
	}
	if game.Winner == "Unknown" {
		t.Error("Winner should still resolve from fallback totals")
	}
}
