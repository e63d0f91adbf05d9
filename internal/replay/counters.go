package replay

import "log"

// CounterSnapshots holds one absolute-value counter table per move number.
// Indexing: move number -> player ID -> counter display name -> value.
type CounterSnapshots map[int]map[string]map[string]int

// For returns the snapshot recorded after the given move, or nil when the
// move predates all counter data.
func (c CounterSnapshots) For(moveNumber int) map[string]map[string]int {
	return c[moveNumber]
}

// TrackCounters replays counter-update sub-events into per-move snapshots
// of absolute values, one table per (player, counter).
//
// Counter events carry absolute values, not deltas: a counter untouched in
// move N keeps the value from the latest move that set it. Board-global
// counters (no color suffix on the identifier, or a global display name)
// are skipped. Only counters that are set at least once anywhere in the
// match appear in the tables; nothing is fabricated for the rest.
//
// Counter values are stored verbatim, including ones outside plausible
// physical ranges. Range validation belongs to the analysis layer; this
// is a lossless transcription.
func TrackCounters(logs *Gamelogs, dict *Dictionary, playerIDs []string) CounterSnapshots {
	if logs == nil || len(playerIDs) == 0 {
		return CounterSnapshots{}
	}

	playerSet := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		playerSet[id] = true
	}

	// First pass: which player-scoped counters does this match ever touch?
	// Tables are initialized over exactly that set, so untouched counters
	// never appear and touched ones are present from move one.
	touched := make(map[string]bool)
	for _, entry := range logs.Data.Data {
		for _, item := range entry.Data {
			name, ok := playerCounterName(item, dict, playerSet)
			if ok {
				touched[name] = true
			}
		}
	}

	tables := make(map[string]map[string]int, len(playerIDs))
	for _, id := range playerIDs {
		table := make(map[string]int, len(touched))
		for name := range touched {
			table[name] = 0
		}
		tables[id] = table
	}

	maxMove := logs.MaxMoveNumber()
	snapshots := make(CounterSnapshots, maxMove)

	// Entries() is sorted ascending; replay order is load-bearing because
	// each snapshot carries the previous one forward.
	entries := logs.Entries()
	entryIdx := 0

	for moveNumber := 1; moveNumber <= maxMove; moveNumber++ {
		for entryIdx < len(entries) {
			n, ok := entries[entryIdx].MoveNumber()
			if !ok {
				entryIdx++
				continue
			}
			if n > moveNumber {
				break
			}
			if n == moveNumber {
				applyCounterEvents(&entries[entryIdx], dict, playerSet, tables)
			}
			entryIdx++
		}
		snapshots[moveNumber] = copyTables(tables)
	}
	return snapshots
}

func applyCounterEvents(entry *MoveEntry, dict *Dictionary, playerSet map[string]bool, tables map[string]map[string]int) {
	for _, item := range entry.Data {
		name, ok := playerCounterName(item, dict, playerSet)
		if !ok {
			continue
		}
		value, ok := item.Args.CounterValue.Int()
		if !ok {
			log.Printf("[Counters] Move %s: non-numeric value %q for %s", entry.MoveID, item.Args.CounterValue, name)
			continue
		}
		playerID := item.Args.PlayerID.String()
		if table, ok := tables[playerID]; ok {
			table[name] = value
		}
	}
}

// playerCounterName resolves a counter-update sub-event to a per-player
// counter display name, rejecting events that are not counter updates,
// belong to no rostered player, or reference board-global trackers.
func playerCounterName(item EventItem, dict *Dictionary, playerSet map[string]bool) (string, bool) {
	args := item.Args
	if args.CounterName == "" || args.CounterValue == "" || args.PlayerID == "" {
		return "", false
	}
	if !playerSet[args.PlayerID.String()] {
		return "", false
	}
	if !PlayerScoped(args.CounterName) {
		return "", false
	}
	res := dict.Tracker(args.CounterName)
	if GlobalTrackerName(res.Name) {
		return "", false
	}
	return res.Name, true
}

func copyTables(tables map[string]map[string]int) map[string]map[string]int {
	snap := make(map[string]map[string]int, len(tables))
	for id, table := range tables {
		copied := make(map[string]int, len(table))
		for name, value := range table {
			copied[name] = value
		}
		snap[id] = copied
	}
	return snap
}
