package events

import (
	"context"
	"testing"
)

func TestExpenseEventRoundTrip(t *testing.T) {
	ev := NewExpenseEvent(ExpenseCreated, "user@example.com", "exp-123")
	if ev.Timestamp.IsZero() {
		t.Fatal("timestamp not stamped")
	}

	data, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := ExpenseEventFromJSON(data)
	if err != nil {
		t.Fatalf("ExpenseEventFromJSON() error = %v", err)
	}
	if got.Type != ExpenseCreated || got.UserEmail != "user@example.com" || got.ExpenseID != "exp-123" {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestPublisherNilReceiverIsNoOp(t *testing.T) {
	var p *Publisher
	if err := p.Publish(context.Background(), NewExpenseEvent(ExpenseDeleted, "user@example.com", "exp-1")); err != nil {
		t.Errorf("nil publisher Publish() = %v, want nil", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil publisher Close() = %v, want nil", err)
	}
}
