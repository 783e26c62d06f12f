package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/pkg/apierror"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

// Signup creates a user and logs them in. Only an admin caller may create
// another admin.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest, caller *model.AuthClaims) (model.AuthResult, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return model.AuthResult{}, apierror.MissingFields("MISSING_FIELD", missing)
	}

	if utf8.RuneCountInString(username) < minUsernameLength {
		return model.AuthResult{}, apierror.Validation("INVALID_USERNAME", "username must be at least 3 characters")
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return model.AuthResult{}, apierror.Validation("INVALID_PASSWORD", "password must be at least 6 characters")
	}
	if !validEmail(email) {
		return model.AuthResult{}, apierror.Validation("INVALID_EMAIL", "a valid email address is required")
	}

	role, err := parseRole(req.Role)
	if err != nil {
		return model.AuthResult{}, err
	}
	if role == model.RoleAdmin && !caller.IsAdmin() {
		return model.AuthResult{}, apierror.Forbidden("FORBIDDEN", "only an admin can create admin accounts")
	}

	user, err := s.createUser(ctx, username, email, req.Password, role)
	if err != nil {
		return model.AuthResult{}, err
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return model.AuthResult{}, err
	}

	s.logger.Info("user signed up", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return model.AuthResult{User: user.Public(), TokenPair: pair}, nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (model.AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.AuthResult{}, apierror.Validation("MISSING_CREDENTIALS", "username and password are required")
	}

	invalid := apierror.Unauthorized("INVALID_CREDENTIALS", "invalid username or password")

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		s.metrics.Login("invalid_credentials")
		return model.AuthResult{}, invalid
	}
	if err != nil {
		return model.AuthResult{}, err
	}

	if !VerifyPassword(password, user.PasswordHash) {
		s.metrics.Login("invalid_credentials")
		s.logger.Warn("login rejected", "username", user.Username, "reason", "invalid_credentials")
		return model.AuthResult{}, invalid
	}
	if !user.IsActive {
		s.metrics.Login("inactive")
		return model.AuthResult{}, apierror.Forbidden("ACCOUNT_INACTIVE", "account is inactive")
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return model.AuthResult{}, err
	}

	at := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, at); err != nil {
		s.logger.Warn("update last login failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &at
	}

	s.metrics.Login("success")
	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return model.AuthResult{User: user.Public(), TokenPair: pair}, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return apierror.Validation("MISSING_TOKEN", "refresh_token is required")
	}
	if !s.RevokeRefreshToken(ctx, refreshToken) {
		return apierror.Validation("INVALID_TOKEN", "refresh token is invalid or already revoked")
	}
	return nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return model.TokenPair{}, apierror.Validation("MISSING_TOKEN", "refresh_token is required")
	}

	access, refresh, ok := s.RefreshAccessToken(ctx, refreshToken)
	if !ok {
		return model.TokenPair{}, apierror.Unauthorized("INVALID_TOKEN", "refresh token is invalid or expired")
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (model.PublicUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, userNotFound(userID)
	}
	if err != nil {
		return model.PublicUser{}, err
	}
	return user.Public(), nil
}

// UpdateProfile changes the caller's email and/or password. A password
// change revokes every outstanding refresh token of the user.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (model.PublicUser, error) {
	var (
		email        string
		passwordHash string
	)

	if req.Email != nil {
		email = strings.TrimSpace(*req.Email)
		if !validEmail(email) {
			return model.PublicUser{}, apierror.Validation("INVALID_EMAIL", "a valid email address is required")
		}
	}
	if req.Password != nil {
		if utf8.RuneCountInString(*req.Password) < minPasswordLength {
			return model.PublicUser{}, apierror.Validation("INVALID_PASSWORD", "password must be at least 6 characters")
		}
		hash, err := HashPassword(*req.Password)
		if err != nil {
			return model.PublicUser{}, err
		}
		passwordHash = hash
	}

	user, err := s.users.Update(ctx, userID, func(u *model.User) error {
		if email != "" {
			u.Email = email
		}
		if passwordHash != "" {
			u.PasswordHash = passwordHash
		}
		return nil
	})
	if err != nil {
		return model.PublicUser{}, mapUserStoreError(err, userID)
	}

	if passwordHash != "" {
		if _, err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			s.logger.Warn("revoke refresh tokens after password change failed", "user_id", userID, "error", err)
		}
	}

	s.logger.Info("profile updated", "user_id", userID, "email_changed", email != "", "password_changed", passwordHash != "")
	return user.Public(), nil
}

func (s *AuthService) ListUsers(ctx context.Context, filter model.UserFilter) (model.UserList, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return model.UserList{}, err
	}

	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return model.UserList{Users: out, Total: len(out)}, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID string) (model.PublicUser, error) {
	return s.Profile(ctx, userID)
}

// UpdateUser lets an admin change another account's role or active flag.
// Deactivated accounts lose their refresh tokens immediately.
func (s *AuthService) UpdateUser(ctx context.Context, actor *model.AuthClaims, userID string, req model.UpdateUserRequest) (model.PublicUser, error) {
	var role string
	if req.Role != nil {
		parsed, err := parseRole(*req.Role)
		if err != nil {
			return model.PublicUser{}, err
		}
		role = parsed
	}

	if actor != nil && actor.UserID == userID {
		if req.IsActive != nil && !*req.IsActive {
			return model.PublicUser{}, apierror.Validation("SELF_MODIFICATION", "admins cannot deactivate their own account")
		}
		if role != "" && role != model.RoleAdmin {
			return model.PublicUser{}, apierror.Validation("SELF_MODIFICATION", "admins cannot remove their own admin role")
		}
	}

	user, err := s.users.Update(ctx, userID, func(u *model.User) error {
		if role != "" {
			u.Role = role
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		return nil
	})
	if err != nil {
		return model.PublicUser{}, mapUserStoreError(err, userID)
	}

	if !user.IsActive {
		if _, err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			s.logger.Warn("revoke refresh tokens of deactivated user failed", "user_id", userID, "error", err)
		}
	}

	s.logger.Info("user updated", "user_id", userID, "role", user.Role, "is_active", user.IsActive, "by", actorID(actor))
	return user.Public(), nil
}

func (s *AuthService) DeleteUser(ctx context.Context, actor *model.AuthClaims, userID string) error {
	if actor != nil && actor.UserID == userID {
		return apierror.Validation("SELF_MODIFICATION", "admins cannot delete their own account")
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return mapUserStoreError(err, userID)
	}
	if _, err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Warn("revoke refresh tokens of deleted user failed", "user_id", userID, "error", err)
	}

	s.logger.Info("user deleted", "user_id", userID, "by", actorID(actor))
	return nil
}

// EnsureBootstrapAdmin creates the first admin when the credential store is
// empty. It reports whether an account was created.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, username string, email string, password string) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	user, err := s.createUser(ctx, username, email, password, model.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	s.logger.Info("bootstrap admin created", "user_id", user.ID, "username", user.Username)
	return true, nil
}

func (s *AuthService) createUser(ctx context.Context, username, email, password, role string) (model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.User{}, mapUserStoreError(err, user.ID)
	}
	return user, nil
}

func parseRole(raw string) (string, error) {
	role := strings.ToLower(strings.TrimSpace(raw))
	switch role {
	case "":
		return model.RoleUser, nil
	case model.RoleUser, model.RoleAdmin:
		return role, nil
	}
	return "", apierror.New("INVALID_ROLE", "role must be user or admin", raw, http.StatusBadRequest)
}

func validEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	return ok && local != "" && domain != ""
}

func mapUserStoreError(err error, userID string) error {
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		return userNotFound(userID)
	case errors.Is(err, model.ErrDuplicateUsername):
		return apierror.Validation("DUPLICATE_USERNAME", "username already exists")
	case errors.Is(err, model.ErrDuplicateEmail):
		return apierror.Validation("DUPLICATE_EMAIL", "email already exists")
	}
	return err
}

func userNotFound(userID string) error {
	return apierror.NotFound("USER_NOT_FOUND", "user not found", userID)
}

func actorID(actor *model.AuthClaims) string {
	if actor == nil {
		return ""
	}
	return actor.UserID
}
