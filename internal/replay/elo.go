package replay

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	signedDeltaPattern = regexp.MustCompile(`([+-]\d+)`)
	pointsPattern      = regexp.MustCompile(`(\d+)\s*pts`)
	bareNumberPattern  = regexp.MustCompile(`(\d+)`)
)

// ParseEloData reads per-player ranking widgets from the match-summary
// document. Each player section carries up to two ordered (delta,
// new-value) widget pairs: the first is the seasonal arena score, the
// second the match-rank score. Fields resolve independently; a section
// with none of them yields no entry; casual matches legitimately carry
// no ranking data.
func ParseEloData(tableDoc string) map[string]*EloData {
	root, err := html.Parse(strings.NewReader(tableDoc))
	if err != nil {
		log.Printf("[Elo] Unparseable summary document: %v", err)
		return map[string]*EloData{}
	}

	elo := make(map[string]*EloData)
	for _, section := range elementsByClass(root, "score-entry") {
		name, data := parseScoreEntry(section)
		if name == "" || data.Empty() {
			continue
		}
		elo[name] = data
	}
	return elo
}

func parseScoreEntry(section *html.Node) (string, *EloData) {
	nameNode := firstByClass(section, "playername")
	if nameNode == nil {
		return "", nil
	}
	name := strings.TrimSpace(textContent(nameNode))
	if name == "" || name == "Visitor" {
		return "", nil
	}

	deltas := elementsByClass(section, "winpoints")
	values := elementsByClass(section, "newrank")

	data := &EloData{}
	if len(deltas) >= 1 {
		if v, ok := parseSignedDelta(textContent(deltas[0])); ok {
			data.ArenaPointsChange = &v
		}
	}
	if len(values) >= 1 {
		if v, ok := parseRankValue(textContent(values[0])); ok {
			data.ArenaPoints = &v
		}
	}
	if len(deltas) >= 2 {
		if v, ok := parseSignedDelta(textContent(deltas[1])); ok {
			data.GameRankChange = &v
		}
	}
	if len(values) >= 2 {
		if v, ok := parseRankValue(textContent(values[1])); ok {
			data.GameRank = &v
		}
	}
	return name, data
}

func parseSignedDelta(text string) (int, bool) {
	m := signedDeltaPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseRankValue prefers the explicit "N pts" form and falls back to the
// first bare number in the widget.
func parseRankValue(text string) (int, bool) {
	if m := pointsPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v, true
		}
	}
	if m := bareNumberPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v, true
		}
	}
	return 0, false
}

// MergeEloData attaches ranking records to roster players by display
// name. A name with no roster match is a coverage gap, logged and
// skipped; it never fails the parse. Returns how many players matched.
func MergeEloData(players map[string]*Player, elo map[string]*EloData) int {
	byName := make(map[string]*Player, len(players))
	for _, p := range players {
		byName[p.PlayerName] = p
	}

	found := 0
	for name, data := range elo {
		player, ok := byName[name]
		if !ok {
			log.Printf("[Elo] No roster player named %q, skipping ranking record", name)
			continue
		}
		player.EloData = data
		found++
	}
	return found
}
