package storage

import "replay-analyzer/internal/replay"

// Record is one line of the parsed-games JSONL: the full reconstructed
// GameData plus fetch provenance, so the corpus can be reprocessed or
// re-reduced without refetching anything.
type Record struct {
	TableID     string `json:"tableId"`
	Perspective string `json:"perspective,omitempty"`
	SiteVersion string `json:"siteVersion,omitempty"`
	FetchedAt   string `json:"fetchedAt"`

	Game *replay.GameData `json:"game"`
}
