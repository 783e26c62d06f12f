package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mobile-payment-backend/internal/event"
	"mobile-payment-backend/internal/metrics"
	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/repository"
)

type Mode string

const (
	ModeMock       Mode = "mock"
	ModeSandbox    Mode = "sandbox"
	ModeProduction Mode = "production"
)

func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeMock, ModeSandbox, ModeProduction:
		return m, nil
	}
	return "", fmt.Errorf("unknown payment mode %q", raw)
}

// Delegated reports whether payments are handled by the external provider.
func (m Mode) Delegated() bool {
	return m == ModeSandbox || m == ModeProduction
}

// Error codes carried by Result.Error for failures raised locally.
const (
	ErrCodeNotFound          = "not_found"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeInvalidAmount     = "invalid_amount"
	ErrCodeStorage           = "storage_error"
	ErrCodeTransport         = "TRANSPORT_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeInvalidResponse   = "INVALID_RESPONSE"
)

type CreateRequest struct {
	Amount    int64
	Currency  string
	Method    string
	OrderID   string
	ReturnURL string
	UserID    string
}

// Result is the structured outcome of a gateway operation. Failures never
// surface as Go errors; Success is false and Error holds a stable code.
type Result struct {
	Success     bool                `json:"success"`
	PaymentID   string              `json:"payment_id,omitempty"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	Status      model.PaymentStatus `json:"status,omitempty"`
	Error       string              `json:"error,omitempty"`
	Message     string              `json:"message,omitempty"`
	Provider    map[string]any      `json:"provider,omitempty"`
}

func failure(code string, message string) Result {
	return Result{Success: false, Error: code, Message: message}
}

// Gateway is implemented by LocalGateway and DelegatedGateway. The variant is
// chosen once by New.
type Gateway interface {
	Mode() Mode
	CreatePayment(ctx context.Context, req CreateRequest) Result
	GetStatus(ctx context.Context, paymentID string) (model.PaymentStatus, bool)
	HandleCallback(ctx context.Context, payload map[string]any) bool
	Approve(ctx context.Context, paymentID string, extra map[string]any) Result
	Cancel(ctx context.Context, paymentID string, reason string, amount *int64) Result
}

type Config struct {
	Mode             Mode
	AppBaseURL       string
	ProviderBaseURL  string
	ClientID         string
	ClientSecret     string
	ProviderTimeout  time.Duration
	ProviderMaxRPS   float64
	RequireSignature bool
}

type Option func(*hooks)

func WithLogger(logger *slog.Logger) Option {
	return func(h *hooks) { h.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *hooks) { h.metrics = m }
}

func WithBus(bus event.Bus) Option {
	return func(h *hooks) { h.bus = bus }
}

func WithHTTPClient(client *http.Client) Option {
	return func(h *hooks) { h.httpClient = client }
}

func WithClock(now func() time.Time) Option {
	return func(h *hooks) { h.now = now }
}

// New builds the gateway variant for cfg.Mode over the shared payment ledger.
func New(cfg Config, store repository.PaymentStore, opts ...Option) (Gateway, error) {
	h := newHooks(store, opts...)

	switch {
	case cfg.Mode == ModeMock:
		return newLocalGateway(cfg.AppBaseURL, h), nil
	case cfg.Mode.Delegated():
		return newDelegatedGateway(cfg, h)
	}
	return nil, fmt.Errorf("unknown payment mode %q", cfg.Mode)
}
