package amqp

import (
	"testing"
	"time"
)

func TestNewBudgetEventMessage(t *testing.T) {
	msg := NewBudgetEventMessage(EventTransactionRecorded, "user-1", "2025-06")

	if msg.Kind != EventTransactionRecorded {
		t.Errorf("Kind = %v, want %v", msg.Kind, EventTransactionRecorded)
	}
	if msg.UserID != "user-1" {
		t.Errorf("UserID = %v, want user-1", msg.UserID)
	}
	if msg.MonthKey != "2025-06" {
		t.Errorf("MonthKey = %v, want 2025-06", msg.MonthKey)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestBudgetEventMessage_JSON(t *testing.T) {
	msg := &BudgetEventMessage{
		Kind:      EventPlanChanged,
		UserID:    "user-7",
		MonthKey:  "2025-09",
		Timestamp: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := BudgetEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("BudgetEventMessageFromJSON() error = %v", err)
	}

	if parsed.Kind != msg.Kind || parsed.UserID != msg.UserID || parsed.MonthKey != msg.MonthKey {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestBudgetEventMessage_InvalidJSON(t *testing.T) {
	_, err := BudgetEventMessageFromJSON([]byte(`{"kind": 42`))
	if err == nil {
		t.Error("BudgetEventMessageFromJSON() should fail with invalid JSON")
	}
}
