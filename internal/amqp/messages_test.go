package amqp

import (
	"testing"
	"time"
)

func TestBalanceRecalcMessageRoundTrip(t *testing.T) {
	msg := NewBalanceRecalcMessage("u1", "import")
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}

	got, err := BalanceRecalcMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error: %v", err)
	}
	if got.PlayerID != "u1" || got.Reason != "import" {
		t.Errorf("round trip = %+v, want player u1 reason import", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp should survive the round trip")
	}
}

func TestBalanceRecalcMessageAllPlayers(t *testing.T) {
	msg := NewBalanceRecalcMessage("", "periodic")
	if msg.PlayerID != "" {
		t.Errorf("full recalc message should have empty player id, got %q", msg.PlayerID)
	}
	if msg.Timestamp.After(time.Now()) {
		t.Error("timestamp in the future")
	}
}

func TestBalanceRecalcMessageFromJSONInvalid(t *testing.T) {
	if _, err := BalanceRecalcMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
