package repository

import (
	"context"
	"time"

	"mobile-payment-backend/internal/model"
)

// UserStore is the credential store. Lookups by username and email are
// case-insensitive and both keys are unique across all users.
type UserStore interface {
	Create(ctx context.Context, user model.User) error
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Update(ctx context.Context, id string, mutate func(*model.User) error) (model.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter model.UserFilter) ([]model.User, error)
	Count(ctx context.Context) (int, error)
}

// PaymentStore is the payment ledger keyed by payment id.
type PaymentStore interface {
	Create(ctx context.Context, payment model.Payment) error
	Get(ctx context.Context, id string) (model.Payment, error)
	Update(ctx context.Context, id string, mutate func(*model.Payment) error) (model.Payment, error)
	List(ctx context.Context) ([]model.Payment, error)
}

// TokenRegistry tracks refresh token ids so they can be revoked before they
// expire.
type TokenRegistry interface {
	Register(ctx context.Context, record model.RefreshRecord) error
	Lookup(ctx context.Context, tokenID string) (model.RefreshRecord, error)
	Revoke(ctx context.Context, tokenID string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
