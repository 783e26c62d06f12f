package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mobile-payment-backend/internal/metrics"
	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/repository"
	"mobile-payment-backend/pkg/apierror"
)

const (
	claimUserID   = "user_id"
	claimUsername = "username"
	claimRole     = "role"
	claimType     = "type"
	claimTokenID  = "token_id"
	claimIssuedAt = "iat"
	claimExpires  = "exp"
)

type AuthService struct {
	users      repository.UserStore
	tokens     repository.TokenRegistry
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type AuthOption func(*AuthService)

// WithClock replaces the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(s *AuthService) { s.logger = logger }
}

func WithAuthMetrics(m *metrics.Metrics) AuthOption {
	return func(s *AuthService) { s.metrics = m }
}

func NewAuthService(users repository.UserStore, tokens repository.TokenRegistry, jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:      users,
		tokens:     tokens,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *AuthService) IssueAccessToken(userID string, username string, role string) (string, error) {
	now := s.now()
	return s.signToken(jwt.MapClaims{
		claimUserID:   userID,
		claimUsername: username,
		claimRole:     role,
		claimType:     model.TokenTypeAccess,
		claimIssuedAt: now.Unix(),
		claimExpires:  now.Add(s.accessTTL).Unix(),
	})
}

// IssueRefreshToken registers a new token id before handing out the token,
// so a token that exists is always revocable.
func (s *AuthService) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	now := s.now()
	record := model.RefreshRecord{
		TokenID:   uuid.NewString(),
		UserID:    userID,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(s.refreshTTL).UTC(),
	}

	if err := s.tokens.Register(ctx, record); err != nil {
		return "", err
	}

	return s.signToken(jwt.MapClaims{
		claimUserID:   userID,
		claimTokenID:  record.TokenID,
		claimType:     model.TokenTypeRefresh,
		claimIssuedAt: now.Unix(),
		claimExpires:  record.ExpiresAt.Unix(),
	})
}

// VerifyToken checks signature and expiry. Refresh tokens must also still be
// present in the registry.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*model.AuthClaims, bool) {
	claims, ok := s.parse(tokenString)
	if !ok {
		return nil, false
	}

	if claims.Type == model.TokenTypeRefresh {
		record, err := s.tokens.Lookup(ctx, claims.TokenID)
		if err != nil {
			if !errors.Is(err, model.ErrTokenNotFound) {
				s.logger.Warn("refresh registry lookup failed", "error", err)
			}
			return nil, false
		}
		if record.UserID != claims.UserID || !record.ExpiresAt.After(s.now()) {
			return nil, false
		}
	}

	return claims, true
}

// RevokeRefreshToken reports false when the token does not verify or was
// already absent from the registry.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, tokenString string) bool {
	claims, ok := s.parse(tokenString)
	if !ok || claims.Type != model.TokenTypeRefresh {
		return false
	}

	removed, err := s.tokens.Revoke(ctx, claims.TokenID)
	if err != nil {
		s.logger.Warn("revoke refresh token failed", "user_id", claims.UserID, "error", err)
		return false
	}
	return removed
}

// RefreshAccessToken mints a new access token for the refresh token's
// subject. The refresh token itself is returned unchanged.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, string, bool) {
	claims, ok := s.VerifyToken(ctx, refreshToken)
	if !ok || claims.Type != model.TokenTypeRefresh {
		return "", "", false
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return "", "", false
	}

	access, err := s.IssueAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		s.logger.Error("issue access token failed", "user_id", user.ID, "error", err)
		return "", "", false
	}
	return access, refreshToken, true
}

// CurrentUser extracts the identity carried by a bearer access token.
func (s *AuthService) CurrentUser(ctx context.Context, authHeader string) (*model.AuthClaims, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return nil, false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}

	claims, ok := s.VerifyToken(ctx, token)
	if !ok || claims.Type != model.TokenTypeAccess {
		return nil, false
	}
	return claims, true
}

// Authenticate is the guard used before any identity-bound operation.
func (s *AuthService) Authenticate(ctx context.Context, authHeader string) (*model.AuthClaims, error) {
	claims, ok := s.CurrentUser(ctx, authHeader)
	if !ok {
		return nil, apierror.Unauthorized("UNAUTHORIZED", "authentication required")
	}
	return claims, nil
}

func (s *AuthService) AuthorizeAdmin(ctx context.Context, authHeader string) (*model.AuthClaims, error) {
	claims, err := s.Authenticate(ctx, authHeader)
	if err != nil {
		return nil, err
	}
	if !claims.IsAdmin() {
		return nil, apierror.Forbidden("FORBIDDEN", "admin privileges required")
	}
	return claims, nil
}

func (s *AuthService) PurgeExpiredRefreshTokens(ctx context.Context) (int, error) {
	purged, err := s.tokens.PurgeExpired(ctx, s.now())
	if err != nil {
		return purged, fmt.Errorf("purge refresh tokens: %w", err)
	}
	s.metrics.TokensPurged(purged)
	return purged, nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, user model.User) (model.TokenPair, error) {
	access, err := s.IssueAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.IssueRefreshToken(ctx, user.ID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *AuthService) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) parse(tokenString string) (*model.AuthClaims, bool) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, false
	}

	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, false
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	claims := &model.AuthClaims{}
	claims.UserID, _ = claimsMap[claimUserID].(string)
	claims.Username, _ = claimsMap[claimUsername].(string)
	claims.Role, _ = claimsMap[claimRole].(string)
	claims.Type, _ = claimsMap[claimType].(string)
	claims.TokenID, _ = claimsMap[claimTokenID].(string)

	if claims.UserID == "" {
		return nil, false
	}
	switch claims.Type {
	case model.TokenTypeAccess:
	case model.TokenTypeRefresh:
		if claims.TokenID == "" {
			return nil, false
		}
	default:
		return nil, false
	}

	if iat, err := claimsMap.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.UTC()
	}
	if exp, err := claimsMap.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.UTC()
	}

	return claims, true
}
