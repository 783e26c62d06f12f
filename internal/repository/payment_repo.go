package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/store"
)

type PaymentRepository struct {
	payments *store.Collection[model.Payment]
}

func NewPaymentRepository(path string) (*PaymentRepository, error) {
	payments, err := store.Open[model.Payment](path)
	if err != nil {
		return nil, fmt.Errorf("open payment store: %w", err)
	}
	return &PaymentRepository{payments: payments}, nil
}

func (r *PaymentRepository) Create(_ context.Context, p model.Payment) error {
	err := r.payments.Insert(p.ID, p, nil)
	if errors.Is(err, store.ErrExists) {
		return model.ErrPaymentExists
	}
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Get(_ context.Context, id string) (model.Payment, error) {
	p, ok := r.payments.Get(id)
	if !ok {
		return model.Payment{}, model.ErrPaymentNotFound
	}
	return p, nil
}

// Update serializes read-modify-write cycles per payment id. mutate may
// return an error to leave the record untouched.
func (r *PaymentRepository) Update(_ context.Context, id string, mutate func(*model.Payment) error) (model.Payment, error) {
	updated, err := r.payments.Update(id, func(p model.Payment) (model.Payment, error) {
		if err := mutate(&p); err != nil {
			return model.Payment{}, err
		}
		p.ID = id
		return p, nil
	}, nil)
	if errors.Is(err, store.ErrNotFound) {
		return model.Payment{}, model.ErrPaymentNotFound
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("update payment %s: %w", id, err)
	}
	return updated, nil
}

func (r *PaymentRepository) List(_ context.Context) ([]model.Payment, error) {
	payments := r.payments.Filter(nil)
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	return payments, nil
}
