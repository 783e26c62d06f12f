package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/store"
)

type UserRepository struct {
	users *store.Collection[model.User]
}

func NewUserRepository(path string) (*UserRepository, error) {
	users, err := store.Open[model.User](path)
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}
	return &UserRepository{users: users}, nil
}

func (r *UserRepository) Create(_ context.Context, u model.User) error {
	err := r.users.Insert(u.ID, u, func(existing model.User) error {
		return uniqueAgainst(u, existing)
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	u, ok := r.users.Get(id)
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	u, ok := r.users.Find(func(u model.User) bool {
		return strings.EqualFold(u.Username, username)
	})
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.TrimSpace(email)
	u, ok := r.users.Find(func(u model.User) bool {
		return strings.EqualFold(u.Email, email)
	})
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *UserRepository) Update(_ context.Context, id string, mutate func(*model.User) error) (model.User, error) {
	updated, err := r.users.Update(id, func(u model.User) (model.User, error) {
		if err := mutate(&u); err != nil {
			return model.User{}, err
		}
		u.ID = id
		u.UpdatedAt = time.Now().UTC()
		return u, nil
	}, uniqueAgainst)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func (r *UserRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	_, err := r.users.Update(id, func(u model.User) (model.User, error) {
		at := at.UTC()
		u.LastLogin = &at
		return u, nil
	}, nil)
	if errors.Is(err, store.ErrNotFound) {
		return model.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	deleted, err := r.users.Delete(id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !deleted {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(_ context.Context, filter model.UserFilter) ([]model.User, error) {
	users := r.users.Filter(filter.Match)
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})
	return users, nil
}

func (r *UserRepository) Count(_ context.Context) (int, error) {
	return r.users.Len(), nil
}

func uniqueAgainst(candidate model.User, existing model.User) error {
	if strings.EqualFold(existing.Username, candidate.Username) {
		return model.ErrDuplicateUsername
	}
	if strings.EqualFold(existing.Email, candidate.Email) {
		return model.ErrDuplicateEmail
	}
	return nil
}
