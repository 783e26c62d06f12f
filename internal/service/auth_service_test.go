package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/repository"
	"mobile-payment-backend/pkg/apierror"
)

const testSecret = "unit-test-secret"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type authFixture struct {
	svc    *AuthService
	users  *repository.UserRepository
	tokens *repository.FileTokenRegistry
	clock  *testClock
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	dir := t.TempDir()

	users, err := repository.NewUserRepository(filepath.Join(dir, "users.json"))
	require.NoError(t, err)
	tokens, err := repository.NewFileTokenRegistry(filepath.Join(dir, "refresh_tokens.json"))
	require.NoError(t, err)

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	svc := NewAuthService(users, tokens, testSecret, 30*time.Minute, 7*24*time.Hour, WithClock(clock.Now))
	return authFixture{svc: svc, users: users, tokens: tokens, clock: clock}
}

func (f authFixture) signup(t *testing.T, username string) model.AuthResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), model.SignupRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	}, nil)
	require.NoError(t, err)
	return res
}

func requireAPIError(t *testing.T, err error, code string, status int) {
	t.Helper()
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, code, apiErr.Code)
	assert.Equal(t, status, apiErr.HTTPStatus)
}

func TestAuthService_AccessTokenRoundTrip(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueAccessToken("u-1", "alice", model.RoleAdmin)
	require.NoError(t, err)

	claims, ok := f.svc.VerifyToken(ctx, token)
	require.True(t, ok)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, model.TokenTypeAccess, claims.Type)
	assert.True(t, claims.ExpiresAt.Equal(f.clock.Now().Add(30*time.Minute)))

	f.clock.Advance(30*time.Minute + time.Second)
	_, ok = f.svc.VerifyToken(ctx, token)
	assert.False(t, ok, "expired token must not verify")
}

func TestAuthService_VerifyRejectsForgedTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	t.Run("other secret", func(t *testing.T) {
		other := NewAuthService(f.users, f.tokens, "different", time.Minute, time.Hour)
		token, err := other.IssueAccessToken("u-1", "alice", model.RoleUser)
		require.NoError(t, err)
		_, ok := f.svc.VerifyToken(ctx, token)
		assert.False(t, ok)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"user_id": "u-1", "type": "access", "exp": f.clock.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, ok := f.svc.VerifyToken(ctx, signed)
		assert.False(t, ok)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u-1", "type": "access"})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, ok := f.svc.VerifyToken(ctx, signed)
		assert.False(t, ok)
	})

	t.Run("garbage", func(t *testing.T) {
		_, ok := f.svc.VerifyToken(ctx, "not-a-jwt")
		assert.False(t, ok)
		_, ok = f.svc.VerifyToken(ctx, "")
		assert.False(t, ok)
	})
}

func TestAuthService_RefreshTokenLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.signup(t, "alice")

	second, err := f.svc.IssueRefreshToken(ctx, user.User.ID)
	require.NoError(t, err)

	claims, ok := f.svc.VerifyToken(ctx, user.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, model.TokenTypeRefresh, claims.Type)
	assert.NotEmpty(t, claims.TokenID)

	access, refresh, ok := f.svc.RefreshAccessToken(ctx, user.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, user.RefreshToken, refresh, "refresh token is not rotated")
	accessClaims, ok := f.svc.VerifyToken(ctx, access)
	require.True(t, ok)
	assert.Equal(t, "alice", accessClaims.Username)

	require.True(t, f.svc.RevokeRefreshToken(ctx, user.RefreshToken))
	assert.False(t, f.svc.RevokeRefreshToken(ctx, user.RefreshToken), "already revoked")

	_, _, ok = f.svc.RefreshAccessToken(ctx, user.RefreshToken)
	assert.False(t, ok, "revoked token must not refresh")

	_, _, ok = f.svc.RefreshAccessToken(ctx, second)
	assert.True(t, ok, "other tokens of the same user stay valid")

	t.Run("access token cannot refresh", func(t *testing.T) {
		_, _, ok := f.svc.RefreshAccessToken(ctx, user.AccessToken)
		assert.False(t, ok)
		assert.False(t, f.svc.RevokeRefreshToken(ctx, user.AccessToken))
	})

	t.Run("structurally valid but unregistered", func(t *testing.T) {
		forged, err := f.svc.signToken(jwt.MapClaims{
			"user_id": user.User.ID, "token_id": "never-registered", "type": "refresh",
			"iat": f.clock.Now().Unix(), "exp": f.clock.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)
		_, ok := f.svc.VerifyToken(ctx, forged)
		assert.False(t, ok)
	})
}

func TestAuthService_RefreshUsesCurrentUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.signup(t, "carol")

	_, err := f.users.Update(ctx, user.User.ID, func(u *model.User) error {
		u.Role = model.RoleAdmin
		return nil
	})
	require.NoError(t, err)

	access, _, ok := f.svc.RefreshAccessToken(ctx, user.RefreshToken)
	require.True(t, ok)
	claims, ok := f.svc.VerifyToken(ctx, access)
	require.True(t, ok)
	assert.Equal(t, model.RoleAdmin, claims.Role)

	_, err = f.users.Update(ctx, user.User.ID, func(u *model.User) error {
		u.IsActive = false
		return nil
	})
	require.NoError(t, err)
	_, _, ok = f.svc.RefreshAccessToken(ctx, user.RefreshToken)
	assert.False(t, ok, "inactive users cannot refresh")
}

func TestAuthService_CurrentUserAndGuards(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.signup(t, "dave")

	claims, ok := f.svc.CurrentUser(ctx, "Bearer "+user.AccessToken)
	require.True(t, ok)
	assert.Equal(t, "dave", claims.Username)

	for name, header := range map[string]string{
		"missing":       "",
		"wrong scheme":  "Basic " + user.AccessToken,
		"no token":      "Bearer ",
		"refresh token": "Bearer " + user.RefreshToken,
		"garbage":       "Bearer abc.def.ghi",
	} {
		_, ok := f.svc.CurrentUser(ctx, header)
		assert.False(t, ok, name)
	}

	_, err := f.svc.Authenticate(ctx, "")
	requireAPIError(t, err, "UNAUTHORIZED", 401)

	_, err = f.svc.AuthorizeAdmin(ctx, "Bearer "+user.AccessToken)
	requireAPIError(t, err, "FORBIDDEN", 403)

	adminToken, err := f.svc.IssueAccessToken("a-1", "root", model.RoleAdmin)
	require.NoError(t, err)
	admin, err := f.svc.AuthorizeAdmin(ctx, "Bearer "+adminToken)
	require.NoError(t, err)
	assert.Equal(t, "a-1", admin.UserID)
}

func TestAuthService_PurgeExpiredRefreshTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.signup(t, "erin")

	f.clock.Advance(8 * 24 * time.Hour)
	fresh, err := f.svc.IssueRefreshToken(ctx, user.User.ID)
	require.NoError(t, err)

	purged, err := f.svc.PurgeExpiredRefreshTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, ok := f.svc.VerifyToken(ctx, fresh)
	assert.True(t, ok, "unexpired tokens survive a purge")
}

type mockUserStore struct {
	mock.Mock
	repository.UserStore
}

func (m *mockUserStore) FindByUsername(ctx context.Context, username string) (model.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(model.User), args.Error(1)
}

func TestAuthService_LoginStoreFailure(t *testing.T) {
	store := new(mockUserStore)
	boom := errors.New("disk on fire")
	store.On("FindByUsername", mock.Anything, "alice").Return(model.User{}, boom)

	svc := NewAuthService(store, nil, testSecret, time.Minute, time.Hour)
	_, err := svc.Login(context.Background(), "alice", "secret123")

	assert.ErrorIs(t, err, boom)
	store.AssertExpectations(t)
}
