package model

import "encoding/json"

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateProfileRequest uses pointers so absent fields are left untouched.
type UpdateProfileRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type UpdateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// CreatePaymentRequest keeps every field optional at decode time so the
// handler can report exactly which required fields are missing.
type CreatePaymentRequest struct {
	Amount        *json.Number `json:"amount"`
	Currency      *string      `json:"currency"`
	PaymentMethod *string      `json:"payment_method"`
	OrderID       string       `json:"order_id"`
	ReturnURL     string       `json:"return_url"`
}

type CancelPaymentRequest struct {
	Reason string `json:"reason"`
	Amount *int64 `json:"amount"`
}

type ScanRequest struct {
	Barcode string `json:"barcode"`
	StoreID string `json:"store_id"`
}
