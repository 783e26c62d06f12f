package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobile-payment-backend/internal/config"
	"mobile-payment-backend/internal/gateway"
	"mobile-payment-backend/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	return &config.Config{
		ServerPort:              "0",
		ServerReadHeaderTimeout: time.Second,
		ServerWriteTimeout:      5 * time.Second,
		ServerIdleTimeout:       5 * time.Second,
		RequestTimeout:          5 * time.Second,
		ShutdownTimeout:         5 * time.Second,
		JWTSecret:               "app-test-secret",
		AccessTokenTTL:          30 * time.Minute,
		RefreshTokenTTL:         24 * time.Hour,
		TokenPurgeInterval:      time.Hour,
		TokenRegistry:           config.RegistryFile,
		TokensFile:              filepath.Join(dir, "tokens.json"),
		UsersFile:               filepath.Join(dir, "users.json"),
		PaymentsFile:            filepath.Join(dir, "payments.json"),
		BootstrapAdminUser:      "admin",
		BootstrapAdminEmail:     "admin@example.com",
		BootstrapAdminPass:      "admin123",
		PaymentMode:             gateway.ModeMock,
		AppBaseURL:              "http://127.0.0.1:8000",
		CORSOrigins:             []string{"*"},
		MetricsEnabled:          true,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loginAdmin(t *testing.T, h http.Handler) string {
	t.Helper()

	body, err := json.Marshal(map[string]string{"username": "admin", "password": "admin123"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data model.AuthResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.RefreshToken
}

func TestNewWiresFileBackedApp(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotEmpty(t, loginAdmin(t, a.Handler()))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A second start over the same files keeps the single bootstrap admin.
	again, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(again.Close)
	assert.NotEmpty(t, loginAdmin(t, again.Handler()))
}

func TestNewWithRedisRegistry(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.TokenRegistry = config.RegistryRedis
	cfg.RedisAddr = mr.Addr()

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	loginAdmin(t, a.Handler())

	keys := mr.Keys()
	found := false
	for _, k := range keys {
		if strings.HasPrefix(k, "refresh:token:") {
			found = true
		}
	}
	assert.True(t, found, "expected a refresh token key in %v", keys)
}

func TestOpenTokenRegistryRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.TokenRegistry = config.RegistryRedis
	cfg.RedisAddr = addr

	_, _, err := OpenTokenRegistry(context.Background(), cfg)
	assert.Error(t, err)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsEnabled = false

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRejectsDelegatedModeWithoutProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.PaymentMode = gateway.ModeSandbox

	_, err := New(context.Background(), cfg, quietLogger())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
