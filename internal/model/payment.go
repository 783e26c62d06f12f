package model

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "created"
	PaymentReserved  PaymentStatus = "reserved"
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentFailed    PaymentStatus = "failed"
	PaymentUnknown   PaymentStatus = "unknown"
)

// ParsePaymentStatus accepts the local vocabulary only.
func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case PaymentCreated, PaymentReserved, PaymentPending,
		PaymentCompleted, PaymentCancelled, PaymentFailed, PaymentUnknown:
		return status, true
	}
	return "", false
}

func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentCancelled || s == PaymentFailed
}

func (s PaymentStatus) rank() int {
	switch s {
	case PaymentCreated:
		return 0
	case PaymentReserved:
		return 1
	case PaymentPending:
		return 2
	case PaymentCompleted, PaymentCancelled, PaymentFailed:
		return 3
	}
	return -1
}

// CanTransition reports whether a payment may move from s to next.
// Transitions only move forward and terminal states are final. Re-applying
// the current status is handled by callers as a no-op.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	if s.Terminal() || next == PaymentCreated {
		return false
	}
	if next == PaymentUnknown {
		return s != PaymentUnknown
	}
	if s == PaymentUnknown {
		return next.rank() > 0
	}
	return next.rank() > s.rank()
}

type Payment struct {
	ID            string        `json:"payment_id"`
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id,omitempty"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	Method        string        `json:"method"`
	Status        PaymentStatus `json:"status"`
	RedirectURL   string        `json:"redirect_url"`
	CallbackToken string        `json:"token"`
	CancelReason  string        `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type PaymentStatusView struct {
	PaymentID string        `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
}

type CreatedPayment struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
	User        string `json:"user"`
}
