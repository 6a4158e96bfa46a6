package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvoiceMismatch      = errors.New("invoice number and customer do not match")
	ErrInvoiceAlreadyPaid   = errors.New("invoice has been paid already")
	ErrERPAuthentication    = errors.New("erp login rejected")
	ErrUpstream             = errors.New("upstream api error")
	ErrSettlementTimeout    = errors.New("settlement data not available")
	ErrPaymentNotCompleted  = errors.New("checkout session is not paid")
	ErrAlreadyReconciled    = errors.New("checkout session already reconciled")
	ErrJobNotRetryable      = errors.New("reconciliation job is not in a retryable state")
	ErrPaymentAlreadyBooked = errors.New("erp payment already booked for this session")
)
