package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypePaymentCreated       Type = "payment.created"
	TypePaymentStatusChanged Type = "payment.status_changed"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
}

// New stamps an event with a fresh id and the current UTC time.
func New(t Type, payload any, actorID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

// PaymentCreated is the payload of TypePaymentCreated. It leaves out the
// callback token.
type PaymentCreated struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
	Status    string `json:"status"`
}

// StatusChange is the payload of TypePaymentStatusChanged.
type StatusChange struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	Source    string `json:"source"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
