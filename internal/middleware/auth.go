package middleware

import (
	"context"
	"net/http"
	"strings"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/pkg/apierror"
)

type authenticator interface {
	Authenticate(ctx context.Context, authHeader string) (*model.AuthClaims, error)
	CurrentUser(ctx context.Context, authHeader string) (*model.AuthClaims, bool)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	auth authenticator
}

func NewAuthMiddleware(auth authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth rejects requests without a valid bearer access token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeAPIError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// OptionalAuth attaches the caller's identity when a valid token is present
// and lets anonymous requests through otherwise.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := m.auth.CurrentUser(r.Context(), r.Header.Get("Authorization")); ok {
			r = r.WithContext(WithClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles must run after RequireAuth.
func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, role := range allowedRoles {
		roleSet[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAPIError(w, apierror.Unauthorized("UNAUTHORIZED", "authentication required"))
				return
			}

			if _, exists := roleSet[strings.ToLower(claims.Role)]; !exists {
				writeAPIError(w, apierror.Forbidden("FORBIDDEN", "admin privileges required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(m.RequireRoles(model.RoleAdmin)(next))
}

func WithClaims(ctx context.Context, claims *model.AuthClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok && claims != nil
}
