package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mobile-payment-backend/internal/model"
)

const defaultProviderTimeout = 10 * time.Second

// DelegatedGateway forwards payments to the external provider and keeps a
// local mirror of the payments it created.
type DelegatedGateway struct {
	*hooks
	mode             Mode
	appBaseURL       string
	client           *ProviderClient
	signer           *Signer
	requireSignature bool
}

func newDelegatedGateway(cfg Config, h *hooks) (*DelegatedGateway, error) {
	var missing []string
	if strings.TrimSpace(cfg.ProviderBaseURL) == "" {
		missing = append(missing, "provider base url")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s mode requires %s", cfg.Mode, strings.Join(missing, ", "))
	}

	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	signer := NewSigner(cfg.ClientSecret)
	return &DelegatedGateway{
		hooks:            h,
		mode:             cfg.Mode,
		appBaseURL:       strings.TrimRight(cfg.AppBaseURL, "/"),
		client:           NewProviderClient(cfg.ProviderBaseURL, cfg.ClientID, signer, h.httpClient, timeout, cfg.ProviderMaxRPS, h.logger, h.metrics),
		signer:           signer,
		requireSignature: cfg.RequireSignature,
	}, nil
}

func (g *DelegatedGateway) Mode() Mode {
	return g.mode
}

func (g *DelegatedGateway) CreatePayment(ctx context.Context, req CreateRequest) Result {
	returnURL := strings.TrimSpace(req.ReturnURL)
	if returnURL == "" {
		returnURL = g.appBaseURL + "/payments/complete"
	}

	body, fail := g.client.Post(ctx, "reserve", "/payments/reserve", map[string]any{
		"orderId":       req.OrderID,
		"amount":        req.Amount,
		"currency":      req.Currency,
		"paymentMethod": req.Method,
		"returnUrl":     returnURL,
	})
	if fail != nil {
		g.metrics.PaymentCreated(string(g.mode), false)
		return fail.result()
	}

	reserveID := firstString(body, "reserveId")
	if reserveID == "" {
		g.metrics.PaymentCreated(string(g.mode), false)
		return Result{Success: false, Error: ErrCodeInvalidResponse, Message: "provider response has no reserveId", Provider: body}
	}
	paymentURL := firstString(body, "paymentUrl")

	now := g.now().UTC()
	mirror := model.Payment{
		ID:          reserveID,
		OrderID:     req.OrderID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Method:      req.Method,
		Status:      model.PaymentReserved,
		RedirectURL: paymentURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := g.store.Create(ctx, mirror); err != nil {
		// The reservation exists upstream either way; the mirror is best effort.
		g.logger.Warn("mirror payment record failed", "payment_id", reserveID, "error", err)
	}

	g.recordCreated(g.mode, mirror)
	return Result{
		Success:     true,
		PaymentID:   reserveID,
		RedirectURL: paymentURL,
		Status:      model.PaymentReserved,
		Provider:    body,
	}
}

func (g *DelegatedGateway) GetStatus(ctx context.Context, paymentID string) (model.PaymentStatus, bool) {
	body, fail := g.client.Get(ctx, "status", "/payments/"+url.PathEscape(paymentID), nil)
	if fail != nil {
		return "", false
	}

	status := MapProviderStatus(firstString(body, "paymentStatus", "status"))
	g.syncMirror(ctx, paymentID, status, "status_poll")
	return status, true
}

// HandleCallback verifies a provider notification. A present signature must
// verify; an absent one is rejected only when signatures are required. The
// payment does not have to exist locally.
func (g *DelegatedGateway) HandleCallback(ctx context.Context, payload map[string]any) bool {
	paymentID, rawStatus := callbackFields(payload)
	if paymentID == "" || rawStatus == "" {
		g.metrics.Callback(false)
		return false
	}

	if _, signed := payload[signatureField]; signed {
		if !g.signer.Verify(payload) {
			g.metrics.Callback(false)
			g.logger.Warn("callback signature mismatch", "payment_id", paymentID)
			return false
		}
	} else if g.requireSignature {
		g.metrics.Callback(false)
		g.logger.Warn("unsigned callback rejected", "payment_id", paymentID)
		return false
	}

	status, ok := callbackStatus(rawStatus)
	if !ok {
		status = model.PaymentUnknown
	}

	_, err := g.transition(ctx, paymentID, status, "callback", nil)
	if err != nil && !errors.Is(err, model.ErrPaymentNotFound) {
		g.metrics.Callback(false)
		return false
	}

	g.metrics.Callback(true)
	return true
}

func (g *DelegatedGateway) Approve(ctx context.Context, paymentID string, extra map[string]any) Result {
	params := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		params[k] = v
	}
	params["paymentId"] = paymentID

	body, fail := g.client.Post(ctx, "approve", "/payments/"+url.PathEscape(paymentID)+"/approve", params)
	if fail != nil {
		return fail.result()
	}
	return g.providerResult(ctx, paymentID, body, "approve")
}

func (g *DelegatedGateway) Cancel(ctx context.Context, paymentID string, reason string, amount *int64) Result {
	params := map[string]any{
		"paymentId":    paymentID,
		"cancelReason": reason,
	}
	if amount != nil {
		params["cancelAmount"] = *amount
	}

	body, fail := g.client.Post(ctx, "cancel", "/payments/"+url.PathEscape(paymentID)+"/cancel", params)
	if fail != nil {
		return fail.result()
	}
	return g.providerResult(ctx, paymentID, body, "cancel")
}

func (g *DelegatedGateway) providerResult(ctx context.Context, paymentID string, body map[string]any, source string) Result {
	status := MapProviderStatus(firstString(body, "paymentStatus", "status"))
	g.syncMirror(ctx, paymentID, status, source)

	return Result{
		Success:   true,
		PaymentID: paymentID,
		Status:    status,
		Provider:  body,
	}
}

// syncMirror applies an upstream status to the local mirror if there is one.
func (g *DelegatedGateway) syncMirror(ctx context.Context, paymentID string, status model.PaymentStatus, source string) {
	if status == model.PaymentUnknown {
		return
	}
	_, err := g.transition(ctx, paymentID, status, source, nil)
	if err != nil && !errors.Is(err, model.ErrPaymentNotFound) && !errors.Is(err, model.ErrInvalidTransition) {
		g.logger.Warn("sync payment mirror failed", "payment_id", paymentID, "error", err)
	}
}

var _ Gateway = (*DelegatedGateway)(nil)
