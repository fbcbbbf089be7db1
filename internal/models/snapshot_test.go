package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/treasury-tracker/internal/types"
)

func TestNewSnapshot(t *testing.T) {
	rows := []types.Row{{"name": "Alpha"}}

	snap := NewSnapshot(rows, types.CoinTag("bitcoin"))

	if snap.ID == "" {
		t.Error("Expected a generated ID")
	}
	if snap.Coin != types.CoinTag("bitcoin") {
		t.Errorf("Expected coin bitcoin, got %s", snap.Coin)
	}
	if snap.CapturedAt().IsZero() {
		t.Error("Expected a parseable timestamp")
	}
	if time.Since(snap.CapturedAt()) > time.Minute {
		t.Error("Timestamp should be recent")
	}
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	snap := NewSnapshot([]types.Row{{"name": "Alpha", "coins": 1.5, "note": nil}}, types.CoinTag("ethereum"))

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.ID != snap.ID || decoded.Coin != snap.Coin {
		t.Error("Identity fields did not survive the round trip")
	}
	// Undefined values persist as explicit JSON nulls
	if value, ok := decoded.Data[0]["note"]; !ok || value != nil {
		t.Errorf("Expected note to round-trip as null, got %v (present=%v)", value, ok)
	}
}

func TestCapturedAt_Malformed(t *testing.T) {
	snap := &Snapshot{Timestamp: "last tuesday"}
	if !snap.CapturedAt().IsZero() {
		t.Error("Expected zero time for a malformed timestamp")
	}
}
