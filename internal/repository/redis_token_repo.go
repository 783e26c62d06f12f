package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mobile-payment-backend/internal/model"
)

const (
	refreshKeyPrefix     = "refresh:token:"
	refreshUserKeyPrefix = "refresh:user:"
)

// RedisTokenRegistry stores refresh token ids as expiring keys. Redis drops
// expired entries itself; PurgeExpired only tidies the per-user indexes.
type RedisTokenRegistry struct {
	client redis.Cmdable
}

func NewRedisTokenRegistry(client redis.Cmdable) *RedisTokenRegistry {
	return &RedisTokenRegistry{client: client}
}

// Register keys the record for its own lifetime (ExpiresAt - CreatedAt), so
// the TTL follows whatever clock stamped the record.
func (r *RedisTokenRegistry) Register(ctx context.Context, record model.RefreshRecord) error {
	ttl := record.ExpiresAt.Sub(record.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("register refresh token: already expired")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode refresh token: %w", err)
	}

	userKey := refreshUserKeyPrefix + record.UserID
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, refreshKeyPrefix+record.TokenID, data, ttl)
		pipe.SAdd(ctx, userKey, record.TokenID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("register refresh token: %w", err)
	}
	return nil
}

func (r *RedisTokenRegistry) Lookup(ctx context.Context, tokenID string) (model.RefreshRecord, error) {
	data, err := r.client.Get(ctx, refreshKeyPrefix+tokenID).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.RefreshRecord{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshRecord{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	var record model.RefreshRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.RefreshRecord{}, fmt.Errorf("decode refresh token: %w", err)
	}
	return record, nil
}

func (r *RedisTokenRegistry) Revoke(ctx context.Context, tokenID string) (bool, error) {
	record, err := r.Lookup(ctx, tokenID)
	if errors.Is(err, model.ErrTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	removed, err := r.client.Del(ctx, refreshKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	if err := r.client.SRem(ctx, refreshUserKeyPrefix+record.UserID, tokenID).Err(); err != nil {
		return removed > 0, fmt.Errorf("unindex refresh token: %w", err)
	}
	return removed > 0, nil
}

func (r *RedisTokenRegistry) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := refreshUserKeyPrefix + userID
	tokenIDs, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list user refresh tokens: %w", err)
	}
	if len(tokenIDs) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		keys = append(keys, refreshKeyPrefix+id)
	}

	removed, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	if err := r.client.Del(ctx, userKey).Err(); err != nil {
		return int(removed), fmt.Errorf("drop user token index: %w", err)
	}
	return int(removed), nil
}

// PurgeExpired removes index entries whose token keys have already expired
// and reports how many were dropped.
func (r *RedisTokenRegistry) PurgeExpired(ctx context.Context, _ time.Time) (int, error) {
	purged := 0
	var cursor uint64
	for {
		userKeys, next, err := r.client.Scan(ctx, cursor, refreshUserKeyPrefix+"*", 100).Result()
		if err != nil {
			return purged, fmt.Errorf("scan refresh token indexes: %w", err)
		}

		for _, userKey := range userKeys {
			tokenIDs, err := r.client.SMembers(ctx, userKey).Result()
			if err != nil {
				return purged, fmt.Errorf("list user refresh tokens: %w", err)
			}
			for _, id := range tokenIDs {
				exists, err := r.client.Exists(ctx, refreshKeyPrefix+id).Result()
				if err != nil {
					return purged, fmt.Errorf("check refresh token: %w", err)
				}
				if exists > 0 {
					continue
				}
				if err := r.client.SRem(ctx, userKey, id).Err(); err != nil {
					return purged, fmt.Errorf("unindex refresh token: %w", err)
				}
				purged++
			}
		}

		cursor = next
		if cursor == 0 {
			return purged, nil
		}
	}
}

var _ TokenRegistry = (*RedisTokenRegistry)(nil)
