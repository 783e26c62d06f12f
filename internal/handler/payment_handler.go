package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mobile-payment-backend/internal/gateway"
	"mobile-payment-backend/internal/middleware"
	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/internal/service"
	"mobile-payment-backend/pkg/apierror"
)

type PaymentHandler struct {
	service *service.PaymentService
}

func NewPaymentHandler(service *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Create runs behind OptionalAuth; anonymous callers pay as guest.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.CreatePaymentRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	caller, _ := middleware.ClaimsFromContext(r.Context())
	created, err := h.service.Create(r.Context(), payload, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created)
}

func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("UNAUTHORIZED", "authentication required"))
		return
	}

	payments, err := h.service.List(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"payments": payments, "total": len(payments)})
}

// Callback accepts any flat JSON object. Numbers keep their literal form so
// a provider signature over them still verifies.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	payload := map[string]any{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, apierror.Validation("invalid_callback", "callback body must be a JSON object"))
		return
	}

	if err := h.service.Callback(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *PaymentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	extra := map[string]any{}
	if err := decodeJSON(w, r, &extra); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), extra)
	if err != nil {
		writeFailure(w, err, failedResult(result))
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.CancelPaymentRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	caller, _ := middleware.ClaimsFromContext(r.Context())
	result, err := h.service.Cancel(r.Context(), caller, chi.URLParam(r, "id"), payload)
	if err != nil {
		writeFailure(w, err, failedResult(result))
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

// failedResult keeps the gateway's structured failure in the body. Guard
// failures never reach the gateway and carry no result.
func failedResult(res gateway.Result) any {
	if res.Error == "" && res.Message == "" {
		return nil
	}
	return res
}
