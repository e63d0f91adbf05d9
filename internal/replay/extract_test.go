package replay

import (
	"errors"
	"strings"
	"testing"
)

// TestExtractRawGamelogs_Simple verifies the basic marker-to-payload path
func TestExtractRawGamelogs_Simple(t *testing.T) {
	doc := `<script>var x = 1; g_gamelogs = {"data":{"data":[]}};</script>`

	raw, err := ExtractRawGamelogs(doc)
	if err != nil {
		t.Fatalf("ExtractRawGamelogs failed: %v", err)
	}
	if raw != `{"data":{"data":[]}}` {
		t.Errorf("Unexpected payload: %s", raw)
	}
}

// TestExtractRawGamelogs_NestedBraces verifies depth tracking through
// deeply nested objects
func TestExtractRawGamelogs_NestedBraces(t *testing.T) {
	payload := `{"a":{"b":{"c":{"d":1}}},"e":[{"f":2}]}`
	doc := "g_gamelogs = " + payload + ";\nmore script"

	raw, err := ExtractRawGamelogs(doc)
	if err != nil {
		t.Fatalf("ExtractRawGamelogs failed: %v", err)
	}
	if raw != payload {
		t.Errorf("Payload mismatch:\n got: %s\nwant: %s", raw, payload)
	}
}

// TestExtractRawGamelogs_BracesInStrings verifies that braces, semicolons
// and escaped quotes inside string values do not confuse the scanner
func TestExtractRawGamelogs_BracesInStrings(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"BracesInString", `{"log":"a } b { c"}`},
		{"SemicolonInString", `{"log":"wait; done"}`},
		{"EscapedQuote", `{"log":"she said \"hi\" {ok}"}`},
		{"EscapedBackslash", `{"path":"C:\\temp\\"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := "g_gamelogs = " + tc.payload + ";"
			raw, err := ExtractRawGamelogs(doc)
			if err != nil {
				t.Fatalf("ExtractRawGamelogs failed: %v", err)
			}
			if raw != tc.payload {
				t.Errorf("Payload mismatch:\n got: %s\nwant: %s", raw, tc.payload)
			}
		})
	}
}

// TestExtractRawGamelogs_Failures verifies the error paths: missing
// marker, truncated payload, statement end before the object closes
func TestExtractRawGamelogs_Failures(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"NoMarker", `<html><body>nothing here</body></html>`},
		{"NoObjectAfterMarker", `g_gamelogs = [1,2,3];`},
		{"Truncated", `g_gamelogs = {"data":{"data"`},
		{"MarkerAtEOF", `g_gamelogs = `},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractRawGamelogs(tc.doc)
			if err == nil {
				t.Fatal("Expected extraction error, got nil")
			}
			var extractErr *ExtractionError
			if !errors.As(err, &extractErr) {
				t.Errorf("Expected *ExtractionError, got %T", err)
			}
		})
	}
}

// TestExtractGamelogs_RoundTrip verifies extraction plus decoding of a
// realistic assignment, including whitespace around the equals sign
func TestExtractGamelogs_RoundTrip(t *testing.T) {
	doc := `<script type="text/javascript">
g_gamelogs =
{"data":{"data":[
  {"move_id":"1","time":"17:03:12","data":[{"type":"gameStateChange","args":{"player_id":"86296239","player_name":"Alice"}}]},
  {"move_id":"2","time":"17:03:40","data":[]}
]}};
</script>`

	logs, err := ExtractGamelogs(doc)
	if err != nil {
		t.Fatalf("ExtractGamelogs failed: %v", err)
	}
	if len(logs.Data.Data) != 2 {
		t.Fatalf("Expected 2 move entries, got %d", len(logs.Data.Data))
	}
	if logs.MaxMoveNumber() != 2 {
		t.Errorf("Expected max move 2, got %d", logs.MaxMoveNumber())
	}

	entry := logs.EntryForMove(1)
	if entry == nil {
		t.Fatal("EntryForMove(1) returned nil")
	}
	if entry.Data[0].Args.PlayerName != "Alice" {
		t.Errorf("Expected player Alice, got %q", entry.Data[0].Args.PlayerName)
	}
}

// TestExtractGamelogs_NumericMoveIDs verifies that bare-number move
// identifiers decode the same as quoted ones
func TestExtractGamelogs_NumericMoveIDs(t *testing.T) {
	doc := `g_gamelogs = {"data":{"data":[{"move_id":7,"time":1699999999,"data":[]}]}};`

	logs, err := ExtractGamelogs(doc)
	if err != nil {
		t.Fatalf("ExtractGamelogs failed: %v", err)
	}
	n, ok := logs.Data.Data[0].MoveNumber()
	if !ok || n != 7 {
		t.Errorf("Expected move number 7, got %d (ok=%v)", n, ok)
	}
}

// TestFallbackScoringSnapshots verifies the heuristic path used when the
// structured log cannot be extracted
func TestFallbackScoringSnapshots(t *testing.T) {
	doc := strings.Join([]string{
		`junk "data":{"86296239":{"total":23},"93336235":{"total":20}} junk`,
		`more "data":{"86296239":{"total":31},"93336235":{"total":27}} end`,
	}, "\n")

	snaps := FallbackScoringSnapshots(doc)
	if len(snaps) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].MoveID != "1" || snaps[1].MoveID != "2" {
		t.Errorf("Snapshots should be numbered by appearance, got %s and %s", snaps[0].MoveID, snaps[1].MoveID)
	}
	if vp := snaps[0].PlayerVP["86296239"]; vp.Total != 23 {
		t.Errorf("Expected total 23 for first player, got %d", vp.Total)
	}
	if vp := snaps[1].PlayerVP["93336235"]; vp.Total != 27 {
		t.Errorf("Expected total 27 for second player, got %d", vp.Total)
	}
}

// TestFallbackScoringSnapshots_Empty verifies a document with no scoring
// fragments yields no snapshots rather than an error
func TestFallbackScoringSnapshots_Empty(t *testing.T) {
	if snaps := FallbackScoringSnapshots("<html>no scoring here</html>"); len(snaps) != 0 {
		t.Errorf("Expected no snapshots, got %d", len(snaps))
	}
}
