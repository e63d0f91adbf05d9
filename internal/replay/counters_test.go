package replay

import "testing"

func counterEvent(playerID, counterID, value string) EventItem {
	return EventItem{Type: "counter", Args: EventArgs{
		PlayerID:     StringOrNumber(playerID),
		CounterName:  counterID,
		CounterValue: StringOrNumber(value),
	}}
}

// TestTrackCounters_Persistence verifies a counter set once keeps its
// value in every later snapshot until set again
func TestTrackCounters_Persistence(t *testing.T) {
	logs := &Gamelogs{Data: GamelogsData{Data: []MoveEntry{
		{MoveID: "2", Data: []EventItem{counterEvent("86296239", "tracker_s_ff0000", "5")}},
		{MoveID: "10", Data: []EventItem{counterEvent("86296239", "tracker_s_ff0000", "8")}},
	}}}
	playerIDs := []string{"86296239", "93336235"}

	snaps := TrackCounters(logs, ResolveDictionaries(""), playerIDs)

	if got := snaps.For(1)["86296239"]["Steel"]; got != 0 {
		t.Errorf("Move 1 predates the event, expected 0, got %d", got)
	}
	for move := 2; move <= 9; move++ {
		if got := snaps.For(move)["86296239"]["Steel"]; got != 5 {
			t.Errorf("Move %d: expected persisted value 5, got %d", move, got)
		}
	}
	if got := snaps.For(10)["86296239"]["Steel"]; got != 8 {
		t.Errorf("Move 10: expected updated value 8, got %d", got)
	}

	// The other player never touched Steel but still carries the column at 0
	if got, ok := snaps.For(5)["93336235"]["Steel"]; !ok || got != 0 {
		t.Errorf("Untouched player should carry touched counter at 0, got %d (ok=%v)", got, ok)
	}
}

// TestTrackCounters_AbsoluteValues verifies values are stored verbatim,
// including implausible ones
func TestTrackCounters_AbsoluteValues(t *testing.T) {
	logs := &Gamelogs{Data: GamelogsData{Data: []MoveEntry{
		{MoveID: "1", Data: []EventItem{counterEvent("86296239", "tracker_m_ff0000", "999")}},
		{MoveID: "2", Data: []EventItem{counterEvent("86296239", "tracker_m_ff0000", "-3")}},
	}}}

	snaps := TrackCounters(logs, ResolveDictionaries(""), []string{"86296239"})

	if got := snaps.For(1)["86296239"]["MC"]; got != 999 {
		t.Errorf("Expected verbatim 999, got %d", got)
	}
	if got := snaps.For(2)["86296239"]["MC"]; got != -3 {
		t.Errorf("Expected verbatim -3 with no clamping, got %d", got)
	}
}

// TestTrackCounters_Exclusions verifies board-global counters, unrostered
// players and malformed events never reach the tables
func TestTrackCounters_Exclusions(t *testing.T) {
	dict := &Dictionary{Trackers: map[string]string{
		"tracker_x_ff0000": "Temperature",
		"tracker_s_ff0000": "Steel",
	}}
	logs := &Gamelogs{Data: GamelogsData{Data: []MoveEntry{
		{MoveID: "1", Data: []EventItem{
			// No color suffix: board-global identifier
			counterEvent("86296239", "tracker_t", "-24"),
			// Suffixed but resolves to a global display name
			counterEvent("86296239", "tracker_x_ff0000", "-24"),
			// Player not on the roster
			counterEvent("55555555", "tracker_s_ff0000", "3"),
			// Missing value
			{Type: "counter", Args: EventArgs{PlayerID: "86296239", CounterName: "tracker_s_ff0000"}},
			// The one valid event
			counterEvent("86296239", "tracker_s_ff0000", "2"),
		}},
	}}}

	snaps := TrackCounters(logs, dict, []string{"86296239"})

	table := snaps.For(1)["86296239"]
	if len(table) != 1 {
		t.Fatalf("Expected exactly one counter column, got %v", table)
	}
	if table["Steel"] != 2 {
		t.Errorf("Expected Steel 2, got %d", table["Steel"])
	}
}

// TestTrackCounters_NonNumericValue verifies a non-numeric value is
// skipped without losing the previous one
func TestTrackCounters_NonNumericValue(t *testing.T) {
	logs := &Gamelogs{Data: GamelogsData{Data: []MoveEntry{
		{MoveID: "1", Data: []EventItem{counterEvent("86296239", "tracker_p_ff0000", "4")}},
		{MoveID: "2", Data: []EventItem{counterEvent("86296239", "tracker_p_ff0000", "lots")}},
	}}}

	snaps := TrackCounters(logs, ResolveDictionaries(""), []string{"86296239"})

	if got := snaps.For(2)["86296239"]["Plant"]; got != 4 {
		t.Errorf("Non-numeric update should keep the prior value, got %d", got)
	}
}

// TestTrackCounters_OrderIndependence verifies out-of-order entries replay
// by move number, not document order
func TestTrackCounters_OrderIndependence(t *testing.T) {
	logs := &Gamelogs{Data: GamelogsData{Data: []MoveEntry{
		{MoveID: "5", Data: []EventItem{counterEvent("86296239", "tracker_h_ff0000", "9")}},
		{MoveID: "2", Data: []EventItem{counterEvent("86296239", "tracker_h_ff0000", "3")}},
	}}}

	snaps := TrackCounters(logs, ResolveDictionaries(""), []string{"86296239"})

	if got := snaps.For(3)["86296239"]["Heat"]; got != 3 {
		t.Errorf("Move 3 should see the move-2 value, got %d", got)
	}
	if got := snaps.For(5)["86296239"]["Heat"]; got != 9 {
		t.Errorf("Move 5 should see the move-5 value, got %d", got)
	}
}

// TestTrackCounters_NilLogs verifies the degraded path returns an empty
// structure rather than panicking
func TestTrackCounters_NilLogs(t *testing.T) {
	snaps := TrackCounters(nil, ResolveDictionaries(""), []string{"86296239"})
	if len(snaps) != 0 {
		t.Errorf("Expected empty snapshots, got %d", len(snaps))
	}
	if snaps.For(1) != nil {
		t.Error("For on an empty structure should return nil")
	}
}
