package replay

import (
	"fmt"
	"regexp"
	"strings"
)

// Source tags how confident a dictionary lookup is. Identifiers are
// session-specific, so mappings are inferred from the document at parse
// time and callers may want to distinguish a real attribute hit from a
// pattern guess.
type Source int

const (
	SourceResolved Source = iota // explicit display-name attribute
	SourceInferred               // context window or static pattern table
	SourceUnknown                // nothing matched; name is "Unknown (<id>)"
)

// Resolution is the outcome of one dictionary lookup.
type Resolution struct {
	Name   string
	Source Source
}

// Dictionary holds the ID-to-display-name mappings resolved from one
// document instance. Built once, read-only afterwards.
type Dictionary struct {
	Cards      map[string]string
	Milestones map[string]string
	Awards     map[string]string
	Hexes      map[string]string
	Trackers   map[string]string

	// tracker IDs whose names came from inference rather than an
	// explicit attribute
	inferred map[string]bool
}

var (
	cardNamePattern      = regexp.MustCompile(`<div[^>]+id="(card_[^"]+)"[^>]+data-name="([^"]+)"`)
	milestoneNamePattern = regexp.MustCompile(`<div[^>]+id="(milestone_\d+)"[^>]+data-name="([^"]+)"`)
	awardNamePattern     = regexp.MustCompile(`<div[^>]+id="(award_\d+)"[^>]+data-name="([^"]+)"`)
	hexNamePattern       = regexp.MustCompile(`<div[^>]+id="(hex_\d+_\d+)"[^>]+data-name="([^"]+)"`)

	trackerDataNamePattern = regexp.MustCompile(`(?i)<[^>]*id="((?:tracker_|counter_)[^"]+)"[^>]*data-name="([^"]+)"`)
	trackerTitlePattern    = regexp.MustCompile(`(?i)<[^>]*id="((?:tracker_|counter_)[^"]+)"[^>]*title="([^"]+)"`)
	trackerIDPattern       = regexp.MustCompile(`(?i)id="((?:tracker_|counter_)[^"]+)"`)

	playerSuffixPattern = regexp.MustCompile(`(?i)_[a-f0-9]{6}$`)
)

// trackerCoverageFloor is the point below which the explicit-attribute pass
// is considered to have missed most of the board and the bounded-window
// inference pass kicks in.
const trackerCoverageFloor = 10

// staticTrackerNames maps base tracker identifiers to canonical display
// names. Final fallback when neither an attribute nor context inference
// produced a name.
var staticTrackerNames = map[string]string{
	"counter_hand":        "Hand Counter",
	"tracker_m":           "MC",
	"tracker_pm":          "MC Production",
	"tracker_s":           "Steel",
	"tracker_ps":          "Steel Production",
	"tracker_u":           "Titanium",
	"tracker_pu":          "Titanium Production",
	"tracker_p":           "Plant",
	"tracker_pp":          "Plant Production",
	"tracker_e":           "Energy",
	"tracker_pe":          "Energy Production",
	"tracker_h":           "Heat",
	"tracker_ph":          "Heat Production",
	"tracker_tagBuilding": "Count of Building tags",
	"tracker_tagSpace":    "Count of Space tags",
	"tracker_tagScience":  "Count of Science tags",
	"tracker_tagEnergy":   "Count of Power tags",
	"tracker_tagEarth":    "Count of Earth tags",
	"tracker_tagJovian":   "Count of Jovian tags",
	"tracker_tagCity":     "Count of City tags",
	"tracker_tagPlant":    "Count of Plant tags",
	"tracker_tagMicrobe":  "Count of Microbe tags",
	"tracker_tagAnimal":   "Count of Animal tags",
	"tracker_tagWild":     "Count of Wild tags",
	"tracker_tagEvent":    "Count of played Events cards",
}

// globalTrackerNames lists display-name fragments that identify
// board-global trackers. These are excluded from per-player counter
// timelines even when their identifier carries a color suffix.
var globalTrackerNames = []string{
	"Temperature", "Oxygen Level", "Oceans", "TR", "Global Parameters Delta",
	"Number of Greenery on Mars", "Number of owned land", "Number of Cities",
	"Number of Cities on Mars", "Pass", "Steel Exchange Rate", "Titanium Exchange Rate",
}

// ResolveDictionaries builds all ID-to-name mappings from the raw document.
func ResolveDictionaries(doc string) *Dictionary {
	d := &Dictionary{
		Cards:      make(map[string]string),
		Milestones: make(map[string]string),
		Awards:     make(map[string]string),
		Hexes:      make(map[string]string),
		Trackers:   make(map[string]string),
		inferred:   make(map[string]bool),
	}

	for _, m := range cardNamePattern.FindAllStringSubmatch(doc, -1) {
		id := strings.TrimSuffix(m[1], "_help")
		d.Cards[id] = m[2]
	}
	for _, m := range milestoneNamePattern.FindAllStringSubmatch(doc, -1) {
		d.Milestones[m[1]] = m[2]
	}
	for _, m := range awardNamePattern.FindAllStringSubmatch(doc, -1) {
		d.Awards[m[1]] = m[2]
	}
	for _, m := range hexNamePattern.FindAllStringSubmatch(doc, -1) {
		d.Hexes[m[1]] = m[2]
	}

	d.resolveTrackers(doc)
	return d
}

// resolveTrackers runs the three tracker passes: explicit attributes,
// bounded context window around unresolved IDs, then the static table.
func (d *Dictionary) resolveTrackers(doc string) {
	for _, pattern := range []*regexp.Regexp{trackerDataNamePattern, trackerTitlePattern} {
		for _, m := range pattern.FindAllStringSubmatch(doc, -1) {
			if _, seen := d.Trackers[m[1]]; !seen {
				d.Trackers[m[1]] = strings.TrimSpace(m[2])
			}
		}
	}

	if len(d.Trackers) >= trackerCoverageFloor {
		return
	}

	// Low coverage: enumerate every tracker/counter ID and infer the rest.
	for _, m := range trackerIDPattern.FindAllStringSubmatch(doc, -1) {
		id := m[1]
		if _, seen := d.Trackers[id]; seen {
			continue
		}
		name := inferNameFromContext(id, doc)
		if name == "" {
			name = inferNameFromID(id)
		}
		d.Trackers[id] = name
		d.inferred[id] = true
	}
}

// contextWindow bounds how far around an identifier occurrence the
// inference pass searches for a display-name-bearing attribute.
const contextWindow = 1000

func inferNameFromContext(trackerID, doc string) string {
	idx := strings.Index(doc, `id="`+trackerID+`"`)
	if idx < 0 {
		return ""
	}

	start := idx - contextWindow
	if start < 0 {
		start = 0
	}
	end := idx + len(trackerID) + contextWindow
	if end > len(doc) {
		end = len(doc)
	}
	context := doc[start:end]

	quoted := regexp.QuoteMeta(trackerID)
	patterns := []string{
		`id="` + quoted + `"[^>]*data-name="([^"]+)"`,
		`id="` + quoted + `"[^>]*title="([^"]+)"`,
		`data-name="([^"]+)"[^>]*id="` + quoted + `"`,
		`title="([^"]+)"[^>]*id="` + quoted + `"`,
	}
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(context); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// inferNameFromID maps the identifier's base form (color suffix stripped)
// through the static table. Unmatched identifiers are retained as
// "Unknown (<base-id>)" so gaps stay auditable instead of vanishing.
func inferNameFromID(trackerID string) string {
	base := playerSuffixPattern.ReplaceAllString(trackerID, "")
	if name, ok := staticTrackerNames[base]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%s)", base)
}

// Card resolves a card identifier.
func (d *Dictionary) Card(id string) Resolution { return lookup(d.Cards, id) }

// Milestone resolves a milestone identifier.
func (d *Dictionary) Milestone(id string) Resolution { return lookup(d.Milestones, id) }

// Award resolves an award identifier.
func (d *Dictionary) Award(id string) Resolution { return lookup(d.Awards, id) }

// Hex resolves a map cell identifier.
func (d *Dictionary) Hex(id string) Resolution { return lookup(d.Hexes, id) }

// Tracker resolves a counter identifier, tagging whether the name came
// from an explicit attribute or was inferred.
func (d *Dictionary) Tracker(id string) Resolution {
	if name, ok := d.Trackers[id]; ok {
		src := SourceResolved
		if d.inferred[id] {
			src = SourceInferred
		}
		if strings.HasPrefix(name, "Unknown (") {
			src = SourceUnknown
		}
		return Resolution{Name: name, Source: src}
	}
	return Resolution{Name: inferNameFromID(id), Source: SourceUnknown}
}

func lookup(m map[string]string, id string) Resolution {
	if name, ok := m[id]; ok {
		return Resolution{Name: name, Source: SourceResolved}
	}
	return Resolution{Name: fmt.Sprintf("Unknown (%s)", id), Source: SourceUnknown}
}

// PlayerScoped reports whether a counter identifier belongs to one player.
// Player-owned widgets carry a trailing 6-hex-digit color suffix; anything
// without one is board-global state and must not pollute per-player
// timelines.
func PlayerScoped(trackerID string) bool {
	return playerSuffixPattern.MatchString(trackerID)
}

// GlobalTrackerName reports whether a resolved display name denotes a
// board-global tracker.
func GlobalTrackerName(name string) bool {
	for _, g := range globalTrackerNames {
		if strings.Contains(name, g) {
			return true
		}
	}
	return false
}
