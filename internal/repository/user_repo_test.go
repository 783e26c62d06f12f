package repository

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobile-payment-backend/internal/model"
)

func newTestUser(username, email string) model.User {
	now := time.Now().UTC()
	return model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: "salt$digest",
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo, err := NewUserRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	alice := newTestUser("Alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))

	t.Run("username lookup ignores case", func(t *testing.T) {
		got, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
	})

	t.Run("email lookup ignores case", func(t *testing.T) {
		got, err := repo.FindByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		err := repo.Create(ctx, newTestUser("ALICE", "other@example.com"))
		assert.ErrorIs(t, err, model.ErrDuplicateUsername)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		err := repo.Create(ctx, newTestUser("bob", "Alice@Example.com"))
		assert.ErrorIs(t, err, model.ErrDuplicateEmail)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrUserNotFound)
	})
}

func TestUserRepository_ConcurrentSignupSameUsername(t *testing.T) {
	ctx := context.Background()
	repo, err := NewUserRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := newTestUser("racer", uuid.NewString()+"@example.com")
			if err := repo.Create(ctx, u); err == nil {
				created.Add(1)
			} else {
				assert.ErrorIs(t, err, model.ErrDuplicateUsername)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUserRepository_UpdateKeepsUniqueness(t *testing.T) {
	ctx := context.Background()
	repo, err := NewUserRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	alice := newTestUser("alice", "alice@example.com")
	bob := newTestUser("bob", "bob@example.com")
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.Create(ctx, bob))

	_, err = repo.Update(ctx, bob.ID, func(u *model.User) error {
		u.Email = "alice@example.com"
		return nil
	})
	assert.ErrorIs(t, err, model.ErrDuplicateEmail)

	updated, err := repo.Update(ctx, bob.ID, func(u *model.User) error {
		u.Email = "robert@example.com"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "robert@example.com", updated.Email)
	assert.Equal(t, bob.ID, updated.ID)

	_, err = repo.Update(ctx, "missing", func(u *model.User) error { return nil })
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestUserRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")

	repo, err := NewUserRepository(path)
	require.NoError(t, err)
	alice := newTestUser("alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.TouchLastLogin(ctx, alice.ID, at))

	reopened, err := NewUserRepository(path)
	require.NoError(t, err)
	got, err := reopened.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(at))
}

func TestUserRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo, err := NewUserRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	admin := newTestUser("zed", "zed@example.com")
	admin.Role = model.RoleAdmin
	inactive := newTestUser("amy", "amy@example.com")
	inactive.IsActive = false
	require.NoError(t, repo.Create(ctx, admin))
	require.NoError(t, repo.Create(ctx, inactive))
	require.NoError(t, repo.Create(ctx, newTestUser("Mark", "mark@example.com")))

	all, err := repo.List(ctx, model.UserFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"amy", "Mark", "zed"}, []string{all[0].Username, all[1].Username, all[2].Username})

	admins, err := repo.List(ctx, model.UserFilter{Role: model.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, admin.ID, admins[0].ID)

	active := false
	disabled, err := repo.List(ctx, model.UserFilter{IsActive: &active})
	require.NoError(t, err)
	require.Len(t, disabled, 1)
	assert.Equal(t, inactive.ID, disabled[0].ID)

	require.NoError(t, repo.Delete(ctx, inactive.ID))
	assert.ErrorIs(t, repo.Delete(ctx, inactive.ID), model.ErrUserNotFound)
}
