package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"mobile-payment-backend/internal/gateway"
	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/repository"
	"mobile-payment-backend/pkg/apierror"
)

const guestUser = "guest"

// PaymentService validates payment requests and translates gateway results
// into API errors. State changes themselves happen in the gateway.
type PaymentService struct {
	gateway  gateway.Gateway
	payments repository.PaymentStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewPaymentService(gw gateway.Gateway, payments repository.PaymentStore, logger *slog.Logger) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{gateway: gw, payments: payments, logger: logger, now: time.Now}
}

func (s *PaymentService) Mode() gateway.Mode {
	return s.gateway.Mode()
}

// Create checks the request and asks the gateway for a new payment. caller
// is nil for anonymous requests.
func (s *PaymentService) Create(ctx context.Context, req model.CreatePaymentRequest, caller *model.AuthClaims) (model.CreatedPayment, error) {
	var missing []string
	if req.Amount == nil || strings.TrimSpace(req.Amount.String()) == "" {
		missing = append(missing, "amount")
	}
	if req.Currency == nil || strings.TrimSpace(*req.Currency) == "" {
		missing = append(missing, "currency")
	}
	if req.PaymentMethod == nil || strings.TrimSpace(*req.PaymentMethod) == "" {
		missing = append(missing, "payment_method")
	}
	if len(missing) > 0 {
		return model.CreatedPayment{}, apierror.MissingFields("missing_fields", missing)
	}

	amount, err := req.Amount.Int64()
	if err != nil || amount <= 0 {
		return model.CreatedPayment{}, apierror.New("invalid_amount", "amount must be a positive integer in minor units", req.Amount.String(), http.StatusBadRequest)
	}

	currency := strings.ToUpper(strings.TrimSpace(*req.Currency))
	if !validCurrency(currency) {
		return model.CreatedPayment{}, apierror.New("invalid_currency", "currency must be a three-letter code", *req.Currency, http.StatusBadRequest)
	}

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		orderID = s.newOrderID(caller)
	}

	var userID string
	user := guestUser
	if caller != nil {
		userID = caller.UserID
		user = caller.Username
	}

	res := s.gateway.CreatePayment(ctx, gateway.CreateRequest{
		Amount:    amount,
		Currency:  currency,
		Method:    strings.TrimSpace(*req.PaymentMethod),
		OrderID:   orderID,
		ReturnURL: strings.TrimSpace(req.ReturnURL),
		UserID:    userID,
	})
	if !res.Success {
		return model.CreatedPayment{}, gatewayError(res)
	}

	return model.CreatedPayment{
		PaymentID:   res.PaymentID,
		OrderID:     orderID,
		RedirectURL: res.RedirectURL,
		User:        user,
	}, nil
}

func (s *PaymentService) Status(ctx context.Context, paymentID string) (model.PaymentStatusView, error) {
	status, ok := s.gateway.GetStatus(ctx, paymentID)
	if !ok {
		return model.PaymentStatusView{}, apierror.NotFound("not_found", "payment not found", paymentID)
	}
	return model.PaymentStatusView{PaymentID: paymentID, Status: status}, nil
}

func (s *PaymentService) Callback(ctx context.Context, payload map[string]any) error {
	if !s.gateway.HandleCallback(ctx, payload) {
		return apierror.Validation("invalid_callback", "callback was rejected")
	}
	return nil
}

func (s *PaymentService) Approve(ctx context.Context, paymentID string, extra map[string]any) (gateway.Result, error) {
	res := s.gateway.Approve(ctx, paymentID, extra)
	if !res.Success {
		return res, gatewayError(res)
	}
	return res, nil
}

// Cancel is allowed for the payment's owner and for admins.
func (s *PaymentService) Cancel(ctx context.Context, caller *model.AuthClaims, paymentID string, req model.CancelPaymentRequest) (gateway.Result, error) {
	if err := s.authorizeOwner(ctx, caller, paymentID); err != nil {
		return gateway.Result{}, err
	}

	res := s.gateway.Cancel(ctx, paymentID, req.Reason, req.Amount)
	if !res.Success {
		return res, gatewayError(res)
	}
	return res, nil
}

// List returns every payment for admins and the caller's own otherwise.
func (s *PaymentService) List(ctx context.Context, caller *model.AuthClaims) ([]model.Payment, error) {
	all, err := s.payments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if caller.IsAdmin() {
		return all, nil
	}

	own := make([]model.Payment, 0, len(all))
	for _, p := range all {
		if p.UserID == caller.UserID {
			own = append(own, p)
		}
	}
	return own, nil
}

func (s *PaymentService) authorizeOwner(ctx context.Context, caller *model.AuthClaims, paymentID string) error {
	if caller.IsAdmin() {
		return nil
	}

	p, err := s.payments.Get(ctx, paymentID)
	switch {
	case errors.Is(err, model.ErrPaymentNotFound):
		if s.gateway.Mode().Delegated() {
			return apierror.Forbidden("FORBIDDEN", "only admins can cancel payments created elsewhere")
		}
		return apierror.NotFound("not_found", "payment not found", paymentID)
	case err != nil:
		return err
	}

	if caller == nil || p.UserID == "" || p.UserID != caller.UserID {
		return apierror.Forbidden("FORBIDDEN", "payment belongs to another user")
	}
	return nil
}

func (s *PaymentService) newOrderID(caller *model.AuthClaims) string {
	if caller != nil {
		return fmt.Sprintf("ORDER-%s-%d", caller.UserID, s.now().Unix())
	}
	return "ORDER-" + uuid.NewString()
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// gatewayError maps a failed gateway Result to an API error.
func gatewayError(res gateway.Result) error {
	message := res.Message
	if message == "" {
		message = "payment gateway request failed"
	}

	switch res.Error {
	case gateway.ErrCodeNotFound:
		return apierror.NotFound(res.Error, message, "")
	case gateway.ErrCodeInvalidTransition:
		return apierror.Conflict(res.Error, message, "")
	case gateway.ErrCodeInvalidAmount:
		return apierror.Validation(res.Error, message)
	case gateway.ErrCodeStorage:
		return apierror.New(res.Error, message, "", http.StatusInternalServerError)
	case gateway.ErrCodeTimeout:
		return apierror.New(res.Error, message, "", http.StatusGatewayTimeout)
	}

	code := res.Error
	if code == "" {
		code = "PROVIDER_ERROR"
	}
	return apierror.New(code, message, "", http.StatusBadGateway)
}
