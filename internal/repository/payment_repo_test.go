package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobile-payment-backend/internal/model"
)

func TestPaymentRepository(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "payments.json")
	repo, err := NewPaymentRepository(path)
	require.NoError(t, err)

	now := time.Now().UTC()
	first := model.Payment{ID: "mock-1", OrderID: "ORDER-1", Amount: 1000, Currency: "KRW", Status: model.PaymentCreated, CreatedAt: now, UpdatedAt: now}
	second := model.Payment{ID: "mock-2", OrderID: "ORDER-2", Amount: 2000, Currency: "KRW", Status: model.PaymentCreated, CreatedAt: now.Add(time.Second), UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))

	t.Run("duplicate id", func(t *testing.T) {
		assert.ErrorIs(t, repo.Create(ctx, first), model.ErrPaymentExists)
	})

	t.Run("list is ordered by creation", func(t *testing.T) {
		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "mock-1", all[0].ID)
	})

	t.Run("mutate error leaves record untouched", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := repo.Update(ctx, "mock-1", func(p *model.Payment) error {
			p.Status = model.PaymentFailed
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repo.Get(ctx, "mock-1")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentCreated, got.Status)
	})

	t.Run("missing payment", func(t *testing.T) {
		_, err := repo.Get(ctx, "nope")
		assert.ErrorIs(t, err, model.ErrPaymentNotFound)
		_, err = repo.Update(ctx, "nope", func(*model.Payment) error { return nil })
		assert.ErrorIs(t, err, model.ErrPaymentNotFound)
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Update(ctx, "mock-2", func(p *model.Payment) error {
					p.Amount++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		reopened, err := NewPaymentRepository(path)
		require.NoError(t, err)
		got, err := reopened.Get(ctx, "mock-2")
		require.NoError(t, err)
		assert.Equal(t, int64(2040), got.Amount)
	})
}
