package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/josh-kwaku/invoice-pay/internal/logging"
	"github.com/josh-kwaku/invoice-pay/internal/service/checkout"
)

type checkoutStarter interface {
	StartCheckout(ctx context.Context, customerID, invoiceNumber string) (*checkout.StartResult, error)
}

type checkoutConfirmer interface {
	Confirm(ctx context.Context, sessionID string) (*checkout.Confirmation, error)
}

type CheckoutHandler struct {
	starter   checkoutStarter
	confirmer checkoutConfirmer
}

func NewCheckoutHandler(starter checkoutStarter, confirmer checkoutConfirmer) *CheckoutHandler {
	return &CheckoutHandler{starter: starter, confirmer: confirmer}
}

type createCheckoutRequest struct {
	CustomerID    string `json:"customer_id"`
	InvoiceNumber string `json:"invoice_number"`
}

func (req createCheckoutRequest) validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(req.CustomerID) == "" {
		errs = append(errs, FieldError{Field: "customer_id", Message: "required"})
	}
	if strings.TrimSpace(req.InvoiceNumber) == "" {
		errs = append(errs, FieldError{Field: "invoice_number", Message: "required"})
	}
	return errs
}

type checkoutSessionResponse struct {
	SessionID     string `json:"session_id"`
	InvoiceNumber string `json:"invoice_number"`
}

type confirmationResponse struct {
	SessionID      string `json:"session_id"`
	InvoiceNumber  string `json:"invoice_number"`
	PaymentStatus  string `json:"payment_status"`
	Reconciliation string `json:"reconciliation"`
}

func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	result, err := h.starter.StartCheckout(r.Context(), req.CustomerID, req.InvoiceNumber)
	if err != nil {
		logging.FromContext(r.Context()).Warn("checkout session not created",
			"invoice_number", req.InvoiceNumber,
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, checkoutSessionResponse{
		SessionID:     result.SessionID,
		InvoiceNumber: result.InvoiceNumber,
	})
}

func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		RespondValidationError(w, []FieldError{{Field: "session_id", Message: "required"}})
		return
	}

	c, err := h.confirmer.Confirm(r.Context(), sessionID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, confirmationResponse{
		SessionID:      c.SessionID,
		InvoiceNumber:  c.InvoiceNumber,
		PaymentStatus:  string(c.PaymentStatus),
		Reconciliation: string(c.Reconciliation),
	})
}
