package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/pkg/apierror"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

// writeAPIError renders guard failures in the same envelope the handlers use.
func writeAPIError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{Code: "INTERNAL_ERROR", Message: "Unexpected server error"}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body = &model.APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details, Fields: apiErr.Fields}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, model.APIResponse{Success: false, Error: body})
}
