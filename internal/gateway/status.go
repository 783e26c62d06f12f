package gateway

import (
	"strings"

	"mobile-payment-backend/internal/model"
)

var providerStatuses = map[string]model.PaymentStatus{
	"RESERVED":  model.PaymentReserved,
	"PENDING":   model.PaymentPending,
	"APPROVED":  model.PaymentCompleted,
	"COMPLETED": model.PaymentCompleted,
	"CANCELLED": model.PaymentCancelled,
	"CANCELED":  model.PaymentCancelled,
	"FAILED":    model.PaymentFailed,
	"REJECTED":  model.PaymentFailed,
}

// MapProviderStatus translates provider vocabulary; anything unrecognized
// becomes PaymentUnknown.
func MapProviderStatus(raw string) model.PaymentStatus {
	if status, ok := providerStatuses[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return status
	}
	return model.PaymentUnknown
}

// callbackStatus accepts the local vocabulary first and falls back to the
// provider's.
func callbackStatus(raw string) (model.PaymentStatus, bool) {
	if status, ok := model.ParsePaymentStatus(raw); ok {
		return status, true
	}
	if status := MapProviderStatus(raw); status != model.PaymentUnknown {
		return status, true
	}
	return "", false
}
