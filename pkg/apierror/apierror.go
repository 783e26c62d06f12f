package apierror

import (
	"fmt"
	"net/http"
	"strings"
)

type APIError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Details    string   `json:"details,omitempty"`
	Fields     []string `json:"fields,omitempty"`
	HTTPStatus int      `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	switch {
	case len(e.Fields) > 0:
		return fmt.Sprintf("%s: %s [%s]", e.Code, e.Message, strings.Join(e.Fields, ","))
	case e.Details != "":
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func Validation(code string, message string) *APIError {
	return New(code, message, "", http.StatusBadRequest)
}

// MissingFields reports every absent required field at once.
func MissingFields(code string, fields []string) *APIError {
	return &APIError{
		Code:       code,
		Message:    "missing required fields: " + strings.Join(fields, ", "),
		Fields:     fields,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Unauthorized(code string, message string) *APIError {
	return New(code, message, "", http.StatusUnauthorized)
}

func Forbidden(code string, message string) *APIError {
	return New(code, message, "", http.StatusForbidden)
}

func NotFound(code string, message string, details string) *APIError {
	return New(code, message, details, http.StatusNotFound)
}

func Conflict(code string, message string, details string) *APIError {
	return New(code, message, details, http.StatusConflict)
}
