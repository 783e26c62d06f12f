//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobile-payment-backend/internal/gateway"
)

type created struct {
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

func createDelegatedPayment(t *testing.T, server *httptest.Server) created {
	t.Helper()

	status, env := call(t, server, http.MethodPost, "/api/payments", map[string]any{
		"amount": 10000, "currency": "KRW", "payment_method": "naverpay",
	}, "")
	require.Equal(t, http.StatusCreated, status)

	var out created
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func paymentStatus(t *testing.T, server *httptest.Server, id string) string {
	t.Helper()

	status, env := call(t, server, http.MethodGet, "/api/payments/"+id, nil, "")
	require.Equal(t, http.StatusOK, status)

	var out created
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out.Status
}

func TestDelegatedReserveStatusApprove(t *testing.T) {
	provider := newFakeProvider(t)
	server := newDelegatedServer(t, provider, false)

	p := createDelegatedPayment(t, server)
	assert.True(t, strings.HasPrefix(p.PaymentID, "PAY-"), p.PaymentID)
	assert.Equal(t, "https://provider.test/approve/"+p.PaymentID, p.RedirectURL)

	assert.Equal(t, "reserved", paymentStatus(t, server, p.PaymentID))

	token := adminToken(t, server)
	status, _ := call(t, server, http.MethodPost, "/api/payments/"+p.PaymentID+"/approve", map[string]any{}, token)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "completed", paymentStatus(t, server, p.PaymentID))
}

func TestDelegatedUnknownPaymentIsNotFoundUpstream(t *testing.T) {
	provider := newFakeProvider(t)
	server := newDelegatedServer(t, provider, false)

	status, _ := call(t, server, http.MethodGet, "/api/payments/PAY-nope", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDelegatedSignedCallback(t *testing.T) {
	provider := newFakeProvider(t)
	server := newDelegatedServer(t, provider, true)

	p := createDelegatedPayment(t, server)

	unsigned := map[string]any{"paymentId": p.PaymentID, "paymentStatus": "APPROVED"}
	status, env := call(t, server, http.MethodPost, "/api/payments/callback", unsigned, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_callback", env.Error.Code)

	forged := map[string]any{"paymentId": p.PaymentID, "paymentStatus": "APPROVED", "signature": "00ff"}
	status, _ = call(t, server, http.MethodPost, "/api/payments/callback", forged, "")
	assert.Equal(t, http.StatusBadRequest, status)

	signed := map[string]any{"paymentId": p.PaymentID, "paymentStatus": "APPROVED"}
	signed["signature"] = gateway.NewSigner(providerSecret).Sign(signed)
	status, _ = call(t, server, http.MethodPost, "/api/payments/callback", signed, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestDelegatedCancelRequiresAdminForForeignPayments(t *testing.T) {
	provider := newFakeProvider(t)
	server := newDelegatedServer(t, provider, false)

	p := createDelegatedPayment(t, server)

	status, env := call(t, server, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "shopper", "email": "shopper@example.com", "password": "secret-pass",
	}, "")
	require.Equal(t, http.StatusCreated, status)
	var shopper struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &shopper))

	status, _ = call(t, server, http.MethodPost, "/api/payments/"+p.PaymentID+"/cancel", map[string]any{"reason": "nope"}, shopper.AccessToken)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, server, http.MethodPost, "/api/payments/"+p.PaymentID+"/cancel", map[string]any{"reason": "duplicate order"}, adminToken(t, server))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", paymentStatus(t, server, p.PaymentID))
}
