package amqp

import "testing"

func TestLedgerSyncMessageRoundTrip(t *testing.T) {
	msg := NewLedgerSyncMessage(42, 3)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	decoded, err := LedgerSyncMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if decoded.ID != 42 || decoded.Version != 3 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
	if decoded.Timestamp.IsZero() {
		t.Error("expected timestamp to survive round trip")
	}
}

func TestLedgerSyncMessageFromInvalidJSON(t *testing.T) {
	if _, err := LedgerSyncMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
