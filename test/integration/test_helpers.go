//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mobile-payment-backend/internal/app"
	"mobile-payment-backend/internal/config"
	"mobile-payment-backend/internal/gateway"
)

const (
	providerClientID = "integration-client"
	providerSecret   = "integration-secret"
)

// fakeProvider imitates the external payment API: reservations, status
// queries, approve and cancel, with signed requests.
type fakeProvider struct {
	mu     sync.Mutex
	status map[string]string
	seq    int
	server *httptest.Server
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	fp := &fakeProvider{status: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments/reserve", fp.reserve)
	mux.HandleFunc("GET /payments/{id}", fp.get)
	mux.HandleFunc("POST /payments/{id}/approve", fp.transition("APPROVED"))
	mux.HandleFunc("POST /payments/{id}/cancel", fp.transition("CANCELLED"))

	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) verified(w http.ResponseWriter, r *http.Request, params map[string]any) bool {
	if r.Header.Get("X-Client-Id") != providerClientID || !gateway.NewSigner(providerSecret).Verify(params) {
		writeProvider(w, http.StatusUnauthorized, map[string]any{"code": "4001", "message": "bad signature"})
		return false
	}
	return true
}

func (fp *fakeProvider) reserve(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeProvider(w, http.StatusBadRequest, map[string]any{"code": "4000", "message": "bad body"})
		return
	}
	if !fp.verified(w, r, body) {
		return
	}

	fp.mu.Lock()
	fp.seq++
	id := fmt.Sprintf("PAY-%06d", fp.seq)
	fp.status[id] = "RESERVED"
	fp.mu.Unlock()

	writeProvider(w, http.StatusOK, map[string]any{
		"code":       "0000",
		"message":    "Success",
		"reserveId":  id,
		"paymentUrl": "https://provider.test/approve/" + id,
	})
}

func (fp *fakeProvider) get(w http.ResponseWriter, r *http.Request) {
	params := map[string]any{}
	for k := range r.URL.Query() {
		params[k] = r.URL.Query().Get(k)
	}
	if !fp.verified(w, r, params) {
		return
	}

	fp.mu.Lock()
	status, ok := fp.status[r.PathValue("id")]
	fp.mu.Unlock()
	if !ok {
		writeProvider(w, http.StatusNotFound, map[string]any{"code": "4040", "message": "unknown payment"})
		return
	}

	writeProvider(w, http.StatusOK, map[string]any{"code": "0000", "paymentStatus": status})
}

func (fp *fakeProvider) transition(next string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil || !fp.verified(w, r, body) {
			if err != nil {
				writeProvider(w, http.StatusBadRequest, map[string]any{"code": "4000", "message": "bad body"})
			}
			return
		}

		fp.mu.Lock()
		defer fp.mu.Unlock()
		if _, ok := fp.status[r.PathValue("id")]; !ok {
			writeProvider(w, http.StatusNotFound, map[string]any{"code": "4040", "message": "unknown payment"})
			return
		}
		fp.status[r.PathValue("id")] = next
		writeProvider(w, http.StatusOK, map[string]any{"code": "0000", "paymentStatus": next})
	}
}

func writeProvider(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newDelegatedServer(t *testing.T, provider *fakeProvider, requireSignature bool) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		ServerPort:               "0",
		RequestTimeout:           10 * time.Second,
		ShutdownTimeout:          5 * time.Second,
		JWTSecret:                "integration-jwt-secret",
		AccessTokenTTL:           15 * time.Minute,
		RefreshTokenTTL:          24 * time.Hour,
		TokenPurgeInterval:       time.Hour,
		TokenRegistry:            config.RegistryFile,
		TokensFile:               filepath.Join(dir, "tokens.json"),
		UsersFile:                filepath.Join(dir, "users.json"),
		PaymentsFile:             filepath.Join(dir, "payments.json"),
		BootstrapAdminUser:       "admin",
		BootstrapAdminEmail:      "admin@example.com",
		BootstrapAdminPass:       "admin123",
		PaymentMode:              gateway.ModeSandbox,
		AppBaseURL:               "http://shop.test",
		ProviderBaseURL:          provider.server.URL,
		ProviderClientID:         providerClientID,
		ProviderClientSecret:     providerSecret,
		ProviderTimeout:          2 * time.Second,
		ProviderMaxRPS:           100,
		ProviderRequireSignature: requireSignature,
		CORSOrigins:              []string{"*"},
		MetricsEnabled:           true,
	}
	require.NoError(t, cfg.Validate())

	application, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(application.Close)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)
	return server
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func call(t *testing.T, server *httptest.Server, method, path string, body any, token string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func adminToken(t *testing.T, server *httptest.Server) string {
	t.Helper()

	status, env := call(t, server, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "admin123"}, "")
	require.Equal(t, http.StatusOK, status)

	var data struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.AccessToken
}
