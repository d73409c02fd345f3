package events

import (
	"encoding/json"
	"time"
)

const (
	ExpenseCreated   = "expense.created"
	ExpenseUpdated   = "expense.updated"
	ExpenseDeleted   = "expense.deleted"
	ExpenseConfirmed = "expense.confirmed"
)

// ExpenseEvent is a lightweight notification for downstream consumers.
// It carries only identifiers; consumers fetch the full record themselves.
type ExpenseEvent struct {
	Type      string    `json:"type"`
	UserEmail string    `json:"user_email"`
	ExpenseID string    `json:"expense_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(eventType, userEmail, expenseID string) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      eventType,
		UserEmail: userEmail,
		ExpenseID: expenseID,
		Timestamp: time.Now().UTC(),
	}
}

func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var e ExpenseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
