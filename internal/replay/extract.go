package replay

import (
	"fmt"
	"regexp"
	"strconv"
)

// The replay page embeds one structured event log as a JavaScript
// assignment. Everything else the engine derives is rooted in it.
var gamelogsMarker = regexp.MustCompile(`g_gamelogs\s*=\s*`)

// ExtractionError reports why the embedded event log could not be pulled
// out of the document.
type ExtractionError struct {
	Reason string
	Offset int
}

func (e *ExtractionError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("gamelogs extraction failed at offset %d: %s", e.Offset, e.Reason)
	}
	return "gamelogs extraction failed: " + e.Reason
}

// ExtractRawGamelogs locates the gamelogs assignment marker and returns the
// balanced {...} payload that follows it. It scans once, tracking
// quoted-string state (honoring backslash escapes) and brace depth, and
// fails if the payload is truncated or an unquoted ';' appears before the
// object closes.
func ExtractRawGamelogs(doc string) (string, error) {
	loc := gamelogsMarker.FindStringIndex(doc)
	if loc == nil {
		return "", &ExtractionError{Reason: "marker not found"}
	}

	start := loc[1]
	if start >= len(doc) || doc[start] != '{' {
		return "", &ExtractionError{Reason: "no object literal after marker", Offset: start}
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(doc); i++ {
		c := doc[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return doc[start : i+1], nil
			}
		case ';':
			if depth == 0 {
				// Statement ended before the object closed: truncated payload.
				return "", &ExtractionError{Reason: "unbalanced payload", Offset: i}
			}
		}
	}

	return "", &ExtractionError{Reason: "unterminated payload", Offset: len(doc)}
}

// ExtractGamelogs extracts and decodes the embedded event log.
func ExtractGamelogs(doc string) (*Gamelogs, error) {
	raw, err := ExtractRawGamelogs(doc)
	if err != nil {
		return nil, err
	}
	logs, err := DecodeGamelogs([]byte(raw))
	if err != nil {
		return nil, &ExtractionError{Reason: "payload is not valid JSON: " + err.Error()}
	}
	return logs, nil
}

// fallbackScoringPattern matches the repeated per-player "total" fragments
// that scoring snapshots leave in the raw document. It is the low-fidelity
// path used when the structured event log cannot be extracted: it yields
// totals without reliable move correlation, but it never crashes.
var fallbackScoringPattern = regexp.MustCompile(`"(\d+)":\{[^{}]*"total":(\d+)[^{}]*\}`)

var fallbackGroupPattern = regexp.MustCompile(`"data":\{((?:"\d+":\{[^{}]*"total":\d+[^{}]*\}[,\s]*)+)\}`)

// FallbackScoringSnapshots scans the whole document for scoring fragments
// when the structured log is unavailable. Snapshots are numbered by order
// of appearance since no move identifiers survive this path.
func FallbackScoringSnapshots(doc string) []ScoringSnapshot {
	groups := fallbackGroupPattern.FindAllStringSubmatch(doc, -1)

	var snaps []ScoringSnapshot
	for i, group := range groups {
		players := fallbackScoringPattern.FindAllStringSubmatch(group[1], -1)
		if len(players) == 0 {
			continue
		}

		vp := make(map[string]PlayerVP, len(players))
		for _, m := range players {
			total, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			vp[m[1]] = PlayerVP{
				Total:        total,
				TotalDetails: map[string]int{"tr": total},
			}
		}
		if len(vp) == 0 {
			continue
		}

		snaps = append(snaps, ScoringSnapshot{
			MoveID:   strconv.Itoa(i + 1),
			PlayerVP: vp,
		})
	}
	return snaps
}
