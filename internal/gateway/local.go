package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"mobile-payment-backend/internal/model"
)

const (
	mockIDPrefix      = "mock-"
	maxCreateAttempts = 3
)

// LocalGateway synthesizes payments entirely in the local ledger.
type LocalGateway struct {
	*hooks
	baseURL string
}

func newLocalGateway(baseURL string, h *hooks) *LocalGateway {
	return &LocalGateway{hooks: h, baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *LocalGateway) Mode() Mode {
	return ModeMock
}

func (g *LocalGateway) CreatePayment(ctx context.Context, req CreateRequest) Result {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		paymentID := mockIDPrefix + hexID()
		token := hexID()
		now := g.now().UTC()

		p := model.Payment{
			ID:            paymentID,
			OrderID:       req.OrderID,
			UserID:        req.UserID,
			Amount:        req.Amount,
			Currency:      req.Currency,
			Method:        req.Method,
			Status:        model.PaymentCreated,
			RedirectURL:   g.redirectURL(paymentID, token, req.ReturnURL),
			CallbackToken: token,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err := g.store.Create(ctx, p)
		if errors.Is(err, model.ErrPaymentExists) {
			continue
		}
		if err != nil {
			g.metrics.PaymentCreated(string(ModeMock), false)
			g.logger.Error("persist payment failed", "payment_id", paymentID, "error", err)
			return failure(ErrCodeStorage, "could not persist payment")
		}

		g.recordCreated(ModeMock, p)
		return Result{Success: true, PaymentID: p.ID, RedirectURL: p.RedirectURL, Status: p.Status}
	}

	g.metrics.PaymentCreated(string(ModeMock), false)
	return failure(ErrCodeStorage, "could not allocate a payment id")
}

func (g *LocalGateway) GetStatus(ctx context.Context, paymentID string) (model.PaymentStatus, bool) {
	p, err := g.store.Get(ctx, paymentID)
	if err != nil {
		return "", false
	}
	return p.Status, true
}

// HandleCallback applies {payment_id, status} to an existing payment. It
// never creates a record. A token, when present, must match the one issued
// in the redirect URL.
func (g *LocalGateway) HandleCallback(ctx context.Context, payload map[string]any) bool {
	paymentID, rawStatus := callbackFields(payload)
	if paymentID == "" || rawStatus == "" {
		g.metrics.Callback(false)
		return false
	}

	status, ok := callbackStatus(rawStatus)
	if !ok {
		g.metrics.Callback(false)
		g.logger.Warn("callback with unknown status", "payment_id", paymentID, "status", rawStatus)
		return false
	}

	if token, present := payload["token"]; present {
		if !g.tokenMatches(ctx, paymentID, token) {
			g.metrics.Callback(false)
			g.logger.Warn("callback token mismatch", "payment_id", paymentID)
			return false
		}
	}

	if _, err := g.transition(ctx, paymentID, status, "callback", nil); err != nil {
		g.metrics.Callback(false)
		if !errors.Is(err, model.ErrPaymentNotFound) && !errors.Is(err, model.ErrInvalidTransition) {
			g.logger.Error("apply callback failed", "payment_id", paymentID, "error", err)
		}
		return false
	}

	g.metrics.Callback(true)
	return true
}

func (g *LocalGateway) tokenMatches(ctx context.Context, paymentID string, token any) bool {
	got, ok := token.(string)
	if !ok || got == "" {
		return false
	}
	p, err := g.store.Get(ctx, paymentID)
	if err != nil || p.CallbackToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(p.CallbackToken)) == 1
}

func (g *LocalGateway) Approve(ctx context.Context, paymentID string, _ map[string]any) Result {
	p, err := g.transition(ctx, paymentID, model.PaymentCompleted, "approve", nil)
	if err != nil {
		return transitionFailure(paymentID, err)
	}
	return Result{Success: true, PaymentID: p.ID, Status: p.Status}
}

// Cancel records the reason. A partial amount is validated against the
// payment but the whole payment is cancelled.
func (g *LocalGateway) Cancel(ctx context.Context, paymentID string, reason string, amount *int64) Result {
	if amount != nil {
		current, err := g.store.Get(ctx, paymentID)
		if err != nil {
			return transitionFailure(paymentID, err)
		}
		if *amount <= 0 || *amount > current.Amount {
			return failure(ErrCodeInvalidAmount, "cancel amount must be between 1 and the payment amount")
		}
	}

	p, err := g.transition(ctx, paymentID, model.PaymentCancelled, "cancel", func(p *model.Payment) {
		p.CancelReason = strings.TrimSpace(reason)
	})
	if err != nil {
		return transitionFailure(paymentID, err)
	}
	return Result{Success: true, PaymentID: p.ID, Status: p.Status}
}

// redirectURL appends payment_id and token to the caller's return URL, or to
// the app's completion page when none was given.
func (g *LocalGateway) redirectURL(paymentID string, token string, returnURL string) string {
	query := url.Values{"payment_id": {paymentID}, "token": {token}}.Encode()

	base := strings.TrimRight(strings.TrimSpace(returnURL), "/")
	if base == "" {
		return g.baseURL + "/payments/complete?" + query
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query
}

func hexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var _ Gateway = (*LocalGateway)(nil)
