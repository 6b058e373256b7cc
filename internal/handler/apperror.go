package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrPaymentCompleted     = &AppError{http.StatusBadRequest, "PAYMENT_ALREADY_COMPLETED", "Cannot cancel a completed payment"}
	ErrInvalidTransition    = &AppError{http.StatusConflict, "INVALID_TRANSITION", "Payment status does not permit this operation"}
	ErrInvalidAmount        = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrCurrencyRequired     = &AppError{http.StatusBadRequest, "CURRENCY_REQUIRED", "Currency is required"}
	ErrInvalidSignature     = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrPaymentRequired      = &AppError{http.StatusPaymentRequired, "PAYMENT_REQUIRED", "Payment required to access this resource"}
	ErrIdempotencyConflict  = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
