package model

import "errors"

var (
	// User related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")

	// Token related errors
	ErrTokenNotFound = errors.New("token not found")

	// Payment related errors
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentExists     = errors.New("payment already exists")
	ErrInvalidTransition = errors.New("invalid payment status transition")

	// Catalog related errors
	ErrProductNotFound = errors.New("product not found")
)
