package repository

import (
	"context"
	"fmt"
	"time"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/store"
)

// FileTokenRegistry keeps refresh token ids in a JSON file so logouts
// survive restarts.
type FileTokenRegistry struct {
	tokens *store.Collection[model.RefreshRecord]
}

func NewFileTokenRegistry(path string) (*FileTokenRegistry, error) {
	tokens, err := store.Open[model.RefreshRecord](path)
	if err != nil {
		return nil, fmt.Errorf("open token registry: %w", err)
	}
	return &FileTokenRegistry{tokens: tokens}, nil
}

func (r *FileTokenRegistry) Register(_ context.Context, record model.RefreshRecord) error {
	if err := r.tokens.Insert(record.TokenID, record, nil); err != nil {
		return fmt.Errorf("register refresh token: %w", err)
	}
	return nil
}

func (r *FileTokenRegistry) Lookup(_ context.Context, tokenID string) (model.RefreshRecord, error) {
	record, ok := r.tokens.Get(tokenID)
	if !ok {
		return model.RefreshRecord{}, model.ErrTokenNotFound
	}
	return record, nil
}

func (r *FileTokenRegistry) Revoke(_ context.Context, tokenID string) (bool, error) {
	removed, err := r.tokens.Delete(tokenID)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return removed, nil
}

func (r *FileTokenRegistry) RevokeAllForUser(_ context.Context, userID string) (int, error) {
	removed, err := r.tokens.DeleteWhere(func(rec model.RefreshRecord) bool {
		return rec.UserID == userID
	})
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return removed, nil
}

func (r *FileTokenRegistry) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	removed, err := r.tokens.DeleteWhere(func(rec model.RefreshRecord) bool {
		return !rec.ExpiresAt.After(now)
	})
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return removed, nil
}

var _ TokenRegistry = (*FileTokenRegistry)(nil)
