package replay

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// StringOrNumber absorbs fields the source log emits inconsistently as
// either a JSON string or a bare number.
type StringOrNumber string

func (s *StringOrNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = StringOrNumber(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = StringOrNumber(num.String())
	return nil
}

func (s StringOrNumber) String() string { return string(s) }

// Int parses the value as an integer, reporting whether it parsed.
func (s StringOrNumber) Int() (int, bool) {
	n, err := strconv.Atoi(string(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Gamelogs is the decoded embedded event log.
type Gamelogs struct {
	Data GamelogsData `json:"data"`
}

type GamelogsData struct {
	Data []MoveEntry `json:"data"`
}

// MoveEntry groups the sub-events emitted during one numbered move.
type MoveEntry struct {
	MoveID StringOrNumber `json:"move_id"`
	Time   StringOrNumber `json:"time"`
	Data   []EventItem    `json:"data"`
}

// MoveNumber parses the entry's move identifier, reporting whether it is
// numeric. Entries with non-numeric identifiers carry no replayable state.
func (m *MoveEntry) MoveNumber() (int, bool) {
	return m.MoveID.Int()
}

// EventItem is one sub-event inside a move.
type EventItem struct {
	Type string    `json:"type"`
	Log  string    `json:"log"`
	UID  string    `json:"uid"`
	Args EventArgs `json:"args"`
}

// EventArgs holds the argument fields the engine cares about. The source
// reuses one loosely-shaped args object across event types, so everything
// is optional and Data stays raw until the event type is known.
type EventArgs struct {
	ActivePlayer StringOrNumber `json:"active_player"`
	PlayerID     StringOrNumber `json:"player_id"`
	PlayerName   string         `json:"player_name"`

	CounterName  string         `json:"counter_name"`
	CounterValue StringOrNumber `json:"counter_value"`
	TokenName    string         `json:"token_name"`

	TokenID string `json:"token_id"`
	PlaceID string `json:"place_id"`

	Data json.RawMessage `json:"data"`
}

// DecodeGamelogs parses the raw event log payload.
func DecodeGamelogs(raw []byte) (*Gamelogs, error) {
	var logs Gamelogs
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, err
	}
	return &logs, nil
}

// Entries returns the move entries sorted by ascending numeric move
// identifier. Counter replay and scoring correlation both depend on
// ascending order, so document order is never trusted.
func (g *Gamelogs) Entries() []MoveEntry {
	entries := make([]MoveEntry, len(g.Data.Data))
	copy(entries, g.Data.Data)
	sort.SliceStable(entries, func(i, j int) bool {
		a, aok := entries[i].MoveNumber()
		b, bok := entries[j].MoveNumber()
		if aok != bok {
			return bok // non-numeric entries sort first, they carry no state
		}
		return a < b
	})
	return entries
}

// MaxMoveNumber returns the highest numeric move identifier in the log.
func (g *Gamelogs) MaxMoveNumber() int {
	max := 0
	for _, e := range g.Data.Data {
		if n, ok := e.MoveNumber(); ok && n > max {
			max = n
		}
	}
	return max
}

// EntryForMove finds the entry with the given numeric move identifier.
func (g *Gamelogs) EntryForMove(n int) *MoveEntry {
	for i := range g.Data.Data {
		if m, ok := g.Data.Data[i].MoveNumber(); ok && m == n {
			return &g.Data.Data[i]
		}
	}
	return nil
}

// TileToHexMapping extracts tile-token to map-cell placements from the
// event log. Scoring snapshots reference city and greenery tiles by token
// ID; the mapping lets those be rendered as map cell names.
func (g *Gamelogs) TileToHexMapping() map[string]string {
	tileToHex := make(map[string]string)
	for _, entry := range g.Data.Data {
		for _, item := range entry.Data {
			tokenID := item.Args.TokenID
			placeID := item.Args.PlaceID
			if tokenID == "" || placeID == "" {
				continue
			}
			if len(tokenID) > 5 && tokenID[:5] == "tile_" && len(placeID) > 4 && placeID[:4] == "hex_" {
				tileToHex[tokenID] = placeID
			}
		}
	}
	return tileToHex
}
