package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried by BudgetEventMessage.
const (
	EventBudgetConfigured    = "budget.configured"
	EventTransactionRecorded = "transaction.recorded"
	EventPlanChanged         = "plan.changed"
)

// BudgetEventMessage is a lightweight notification that a user's budget state
// changed from the given month onward. Consumers fetch the current state from
// the store, so the message carries no amounts.
type BudgetEventMessage struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	MonthKey  string    `json:"month_key"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetEventMessage(kind, userID, monthKey string) *BudgetEventMessage {
	return &BudgetEventMessage{
		Kind:      kind,
		UserID:    userID,
		MonthKey:  monthKey,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *BudgetEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetEventMessageFromJSON creates a message from JSON bytes
func BudgetEventMessageFromJSON(data []byte) (*BudgetEventMessage, error) {
	var msg BudgetEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
