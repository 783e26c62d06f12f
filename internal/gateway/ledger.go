package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mobile-payment-backend/internal/event"
	"mobile-payment-backend/internal/metrics"
	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/repository"
)

var errUnchanged = errors.New("status unchanged")

// hooks carries the ledger and the side channels shared by both variants.
type hooks struct {
	store      repository.PaymentStore
	logger     *slog.Logger
	metrics    *metrics.Metrics
	bus        event.Bus
	httpClient *http.Client
	now        func() time.Time
}

func newHooks(store repository.PaymentStore, opts ...Option) *hooks {
	h := &hooks{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *hooks) recordCreated(mode Mode, p model.Payment) {
	h.metrics.PaymentCreated(string(mode), true)
	h.logger.Info("payment created",
		"payment_id", p.ID,
		"order_id", p.OrderID,
		"amount", p.Amount,
		"currency", p.Currency,
		"mode", mode,
	)
	if h.bus != nil {
		h.bus.Publish(event.New(event.TypePaymentCreated, event.PaymentCreated{
			PaymentID: p.ID,
			OrderID:   p.OrderID,
			UserID:    p.UserID,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Method:    p.Method,
			Status:    string(p.Status),
		}, p.UserID))
	}
}

// transition moves a stored payment to next under the ledger's per-record
// lock. Re-applying the current status succeeds without a write.
func (h *hooks) transition(ctx context.Context, paymentID string, next model.PaymentStatus, source string, mutate func(*model.Payment)) (model.Payment, error) {
	var from model.PaymentStatus

	updated, err := h.store.Update(ctx, paymentID, func(p *model.Payment) error {
		from = p.Status
		if p.Status == next {
			return errUnchanged
		}
		if !p.Status.CanTransition(next) {
			return model.ErrInvalidTransition
		}
		p.Status = next
		p.UpdatedAt = h.now().UTC()
		if mutate != nil {
			mutate(p)
		}
		return nil
	})

	switch {
	case errors.Is(err, errUnchanged):
		return h.store.Get(ctx, paymentID)
	case errors.Is(err, model.ErrInvalidTransition):
		h.logger.Warn("payment transition rejected",
			"payment_id", paymentID,
			"from", from,
			"to", next,
			"source", source,
		)
		return model.Payment{}, err
	case err != nil:
		return model.Payment{}, err
	}

	h.metrics.StatusTransition(string(from), string(next))
	h.logger.Info("payment status changed",
		"payment_id", paymentID,
		"from", from,
		"to", next,
		"source", source,
	)
	if h.bus != nil {
		h.bus.Publish(event.New(event.TypePaymentStatusChanged, event.StatusChange{
			PaymentID: paymentID,
			OrderID:   updated.OrderID,
			From:      string(from),
			To:        string(next),
			Source:    source,
		}, updated.UserID))
	}
	return updated, nil
}

func transitionFailure(paymentID string, err error) Result {
	switch {
	case errors.Is(err, model.ErrPaymentNotFound):
		return failure(ErrCodeNotFound, "payment "+paymentID+" not found")
	case errors.Is(err, model.ErrInvalidTransition):
		return failure(ErrCodeInvalidTransition, "payment is already in a final state")
	}
	return failure(ErrCodeStorage, "could not update payment")
}

// callbackFields accepts both the local and the provider field names.
func callbackFields(payload map[string]any) (string, string) {
	id := firstString(payload, "payment_id", "paymentId")
	status := firstString(payload, "status", "paymentStatus")
	return id, status
}

func firstString(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
