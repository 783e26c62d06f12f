package service

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mobile-payment-backend/internal/gateway"
	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/repository"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Mode() gateway.Mode {
	return m.Called().Get(0).(gateway.Mode)
}

func (m *mockGateway) CreatePayment(ctx context.Context, req gateway.CreateRequest) gateway.Result {
	return m.Called(ctx, req).Get(0).(gateway.Result)
}

func (m *mockGateway) GetStatus(ctx context.Context, paymentID string) (model.PaymentStatus, bool) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(model.PaymentStatus), args.Bool(1)
}

func (m *mockGateway) HandleCallback(ctx context.Context, payload map[string]any) bool {
	return m.Called(ctx, payload).Bool(0)
}

func (m *mockGateway) Approve(ctx context.Context, paymentID string, extra map[string]any) gateway.Result {
	return m.Called(ctx, paymentID, extra).Get(0).(gateway.Result)
}

func (m *mockGateway) Cancel(ctx context.Context, paymentID string, reason string, amount *int64) gateway.Result {
	return m.Called(ctx, paymentID, reason, amount).Get(0).(gateway.Result)
}

func strPtr(s string) *string { return &s }

func numPtr(s string) *json.Number {
	n := json.Number(s)
	return &n
}

func newPaymentFixture(t *testing.T) (*PaymentService, *repository.PaymentRepository) {
	t.Helper()
	store, err := repository.NewPaymentRepository(filepath.Join(t.TempDir(), "payments.json"))
	require.NoError(t, err)
	gw, err := gateway.New(gateway.Config{Mode: gateway.ModeMock, AppBaseURL: "http://127.0.0.1:8000"}, store)
	require.NoError(t, err)
	return NewPaymentService(gw, store, nil), store
}

func TestPaymentService_CreateValidation(t *testing.T) {
	svc, _ := newPaymentFixture(t)
	ctx := context.Background()

	t.Run("lists every missing field", func(t *testing.T) {
		_, err := svc.Create(ctx, model.CreatePaymentRequest{Currency: strPtr("KRW")}, nil)
		requireAPIError(t, err, "missing_fields", 400)
		assert.Contains(t, err.Error(), "amount,payment_method")
	})

	for name, amount := range map[string]string{"zero": "0", "negative": "-5", "fraction": "10.5"} {
		t.Run("amount "+name, func(t *testing.T) {
			_, err := svc.Create(ctx, model.CreatePaymentRequest{Amount: numPtr(amount), Currency: strPtr("KRW"), PaymentMethod: strPtr("card")}, nil)
			requireAPIError(t, err, "invalid_amount", 400)
		})
	}

	t.Run("currency", func(t *testing.T) {
		_, err := svc.Create(ctx, model.CreatePaymentRequest{Amount: numPtr("1500"), Currency: strPtr("WON!"), PaymentMethod: strPtr("card")}, nil)
		requireAPIError(t, err, "invalid_currency", 400)
	})
}

func TestPaymentService_CreateAndLifecycle(t *testing.T) {
	svc, store := newPaymentFixture(t)
	ctx := context.Background()
	owner := &model.AuthClaims{UserID: "u-1", Username: "alice", Role: model.RoleUser}

	created, err := svc.Create(ctx, model.CreatePaymentRequest{
		Amount:        numPtr("1500"),
		Currency:      strPtr("krw"),
		PaymentMethod: strPtr("card"),
	}, owner)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.PaymentID, "mock-"))
	assert.True(t, strings.HasPrefix(created.OrderID, "ORDER-u-1-"))
	assert.Equal(t, "alice", created.User)

	stored, err := store.Get(ctx, created.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "KRW", stored.Currency)
	assert.Equal(t, "u-1", stored.UserID)

	view, err := svc.Status(ctx, created.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCreated, view.Status)

	_, err = svc.Status(ctx, "mock-missing")
	requireAPIError(t, err, "not_found", 404)

	requireAPIError(t, svc.Callback(ctx, map[string]any{"payment_id": "mock-missing", "status": "completed"}), "invalid_callback", 400)

	t.Run("stranger cannot cancel", func(t *testing.T) {
		stranger := &model.AuthClaims{UserID: "u-2", Role: model.RoleUser}
		_, err := svc.Cancel(ctx, stranger, created.PaymentID, model.CancelPaymentRequest{})
		requireAPIError(t, err, "FORBIDDEN", 403)
	})

	t.Run("owner cancels then state is final", func(t *testing.T) {
		res, err := svc.Cancel(ctx, owner, created.PaymentID, model.CancelPaymentRequest{Reason: "changed mind"})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentCancelled, res.Status)

		_, err = svc.Approve(ctx, created.PaymentID, nil)
		requireAPIError(t, err, "invalid_transition", 409)
	})

	t.Run("anonymous payments", func(t *testing.T) {
		guest, err := svc.Create(ctx, model.CreatePaymentRequest{
			Amount: numPtr("1500"), Currency: strPtr("KRW"), PaymentMethod: strPtr("card"), OrderID: "ORDER-42",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "guest", guest.User)
		assert.Equal(t, "ORDER-42", guest.OrderID)

		_, err = svc.Cancel(ctx, owner, guest.PaymentID, model.CancelPaymentRequest{})
		requireAPIError(t, err, "FORBIDDEN", 403)
	})

	t.Run("list scopes to caller", func(t *testing.T) {
		mine, err := svc.List(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		all, err := svc.List(ctx, &model.AuthClaims{UserID: "a-1", Role: model.RoleAdmin})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestPaymentService_GatewayFailures(t *testing.T) {
	store, err := repository.NewPaymentRepository(filepath.Join(t.TempDir(), "payments.json"))
	require.NoError(t, err)
	gw := new(mockGateway)
	svc := NewPaymentService(gw, store, nil)
	ctx := context.Background()

	gw.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req gateway.CreateRequest) bool {
		return req.Amount == 10000 && req.Currency == "KRW" && strings.HasPrefix(req.OrderID, "ORDER-")
	})).Return(gateway.Result{Success: false, Error: gateway.ErrCodeTimeout, Message: "provider did not respond in time"})

	_, err = svc.Create(ctx, model.CreatePaymentRequest{Amount: numPtr("10000"), Currency: strPtr("KRW"), PaymentMethod: strPtr("naverpay")}, nil)
	requireAPIError(t, err, gateway.ErrCodeTimeout, http.StatusGatewayTimeout)

	gw.On("Approve", mock.Anything, "PAY_1", map[string]any(nil)).
		Return(gateway.Result{Success: false, Error: "SERVER_ERROR", Provider: map[string]any{"success": false}})

	res, err := svc.Approve(ctx, "PAY_1", nil)
	requireAPIError(t, err, "SERVER_ERROR", http.StatusBadGateway)
	assert.Equal(t, false, res.Provider["success"])

	gw.On("Mode").Return(gateway.ModeSandbox)
	_, err = svc.Cancel(ctx, &model.AuthClaims{UserID: "u-1", Role: model.RoleUser}, "PAY_REMOTE", model.CancelPaymentRequest{})
	requireAPIError(t, err, "FORBIDDEN", 403)

	gw.AssertExpectations(t)
}
