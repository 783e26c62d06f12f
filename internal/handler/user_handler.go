package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mobile-payment-backend/internal/middleware"
	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/service"
	"mobile-payment-backend/pkg/apierror"
)

// UserHandler serves the admin-only account routes.
type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.UserFilter{Role: strings.ToLower(strings.TrimSpace(query.Get("role")))}

	if raw := strings.TrimSpace(query.Get("is_active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, apierror.New("BAD_REQUEST", "is_active must be true or false", "is_active", http.StatusBadRequest))
			return
		}
		filter.IsActive = &active
	}

	users, err := h.service.ListUsers(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.UpdateUserRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	actor, _ := middleware.ClaimsFromContext(r.Context())
	user, err := h.service.UpdateUser(r.Context(), actor, chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ClaimsFromContext(r.Context())
	if err := h.service.DeleteUser(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true})
}
