package bga

import "testing"

// TestExtractVersion verifies version extraction from replay archive links
func TestExtractVersion(t *testing.T) {
	doc := `<a href="https://boardgamearena.com/archive/replay/250219-1000/?table=620761510&player=86296239&comments=86296239">watch</a>`

	version, err := ExtractVersion(doc)
	if err != nil {
		t.Fatalf("ExtractVersion failed: %v", err)
	}
	if version != "250219-1000" {
		t.Errorf("Expected 250219-1000, got %s", version)
	}

	if _, err := ExtractVersion("<html>no links</html>"); err == nil {
		t.Error("Expected error for document without replay links")
	}
}

// TestExtractPlayerIDs verifies deduplicated, order-preserving ID extraction
func TestExtractPlayerIDs(t *testing.T) {
	doc := `
<a href="/player?id=86296239">Alice</a>
<a href="/player?id=93336235">Bob</a>
<a href="/player?id=86296239">Alice again</a>`

	ids := ExtractPlayerIDs(doc)
	if len(ids) != 2 {
		t.Fatalf("Expected 2 IDs, got %d", len(ids))
	}
	if ids[0] != "86296239" || ids[1] != "93336235" {
		t.Errorf("IDs wrong or out of order: %v", ids)
	}
}

// TestExtractTableIDs verifies table link extraction from listing pages
func TestExtractTableIDs(t *testing.T) {
	doc := `
<a href="/gamereview?table=620761510">review</a>
<a href="/gamereview?table=620761510">again</a>
<a href="/gamereview?table=620800001">review</a>`

	ids := ExtractTableIDs(doc)
	if len(ids) != 2 || ids[0] != "620761510" || ids[1] != "620800001" {
		t.Errorf("Table IDs wrong: %v", ids)
	}
}
