package domain

import "errors"

var (
	ErrNotFound          = errors.New("payment not found")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrCurrencyRequired  = errors.New("currency is required")
	ErrPaymentCompleted  = errors.New("payment already completed")
	ErrInvalidTransition = errors.New("status transition not permitted")
	ErrMissingSecret     = errors.New("webhook secret not configured")
)
