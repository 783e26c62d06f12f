package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	writeFailure(w, err, nil)
}

// writeFailure is writeError with a data payload kept alongside the error,
// for endpoints whose failure bodies still carry a result.
func writeFailure(w http.ResponseWriter, err error, data any) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
		body.Fields = apiErr.Fields
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "USER_NOT_FOUND"
		body.Message = "User not found"
	} else if errors.Is(err, model.ErrDuplicateUsername) {
		status = http.StatusBadRequest
		body.Code = "DUPLICATE_USERNAME"
		body.Message = "Username already exists"
	} else if errors.Is(err, model.ErrDuplicateEmail) {
		status = http.StatusBadRequest
		body.Code = "DUPLICATE_EMAIL"
		body.Message = "Email already exists"
	} else if errors.Is(err, model.ErrPaymentNotFound) {
		status = http.StatusNotFound
		body.Code = "not_found"
		body.Message = "Payment not found"
	} else if errors.Is(err, model.ErrInvalidTransition) {
		status = http.StatusConflict
		body.Code = "invalid_transition"
		body.Message = "Payment status cannot change"
	} else if errors.Is(err, model.ErrProductNotFound) {
		status = http.StatusNotFound
		body.Code = "PRODUCT_NOT_FOUND"
		body.Message = "Product not found"
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Data:    data,
		Error:   body,
	})
}

// decodeJSON reads a JSON object body. An empty body decodes as {} so the
// services can report which fields are missing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}
