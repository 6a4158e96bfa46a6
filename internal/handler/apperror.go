package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Admin role required"}
	ErrInvalidSignature = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Invalid webhook signature"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvoiceInvalid        = &AppError{http.StatusUnprocessableEntity, "INVOICE_INVALID", "Invoice number and/or customer ID is invalid."}
	ErrInvoiceAlreadyPaid    = &AppError{http.StatusUnprocessableEntity, "INVOICE_ALREADY_PAID", "Invoice has been paid already."}
	ErrPaymentNotCompleted   = &AppError{http.StatusUnprocessableEntity, "PAYMENT_NOT_COMPLETED", "Invalid payment status."}
	ErrUpstreamUnavailable   = &AppError{http.StatusBadGateway, "UPSTREAM_ERROR", "An upstream service is unavailable, please retry"}
	ErrJobNotRetryable       = &AppError{http.StatusConflict, "JOB_NOT_RETRYABLE", "Reconciliation job is not in a retryable state"}
	ErrInvalidIdempotencyKey = &AppError{http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "Idempotency-Key header is too long"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
