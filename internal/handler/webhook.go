package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/josh-kwaku/invoice-pay/internal/checkout"
	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
	svccheckout "github.com/josh-kwaku/invoice-pay/internal/service/checkout"
)

const maxWebhookBody = 1 << 20

type webhookVerifier interface {
	Verify(payload []byte, signature string) (checkout.WebhookEvent, error)
}

type reconciliationTrigger interface {
	Trigger(ctx context.Context, sessionID string) (svccheckout.Trigger, error)
}

type WebhookHandler struct {
	verifier webhookVerifier
	trigger  reconciliationTrigger
}

func NewWebhookHandler(verifier webhookVerifier, trigger reconciliationTrigger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, trigger: trigger}
}

// ReceiveStripeWebhook acknowledges every verified event. Completed checkout
// sessions are handed to the reconciliation queue; a queue failure returns 5xx so
// Stripe redelivers.
func (h *WebhookHandler) ReceiveStripeWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	event, err := h.verifier.Verify(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, checkout.ErrInvalidSignature) {
			log.Warn("webhook signature verification failed", "error", err)
			RespondAppError(w, ErrInvalidSignature, nil)
			return
		}
		log.Warn("failed to parse webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	log = log.With("event_id", event.ID, "event_type", event.Type)

	if !event.Triggers() {
		log.Debug("webhook event ignored")
		RespondSuccess(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	trigger, err := h.trigger.Trigger(r.Context(), event.SessionID)
	if errors.Is(err, domain.ErrPaymentNotCompleted) {
		// completed with a delayed payment method; async_payment_succeeded follows
		log.Info("webhook session not paid yet", "session_id", event.SessionID)
		RespondSuccess(w, http.StatusOK, map[string]string{"status": "awaiting_payment"})
		return
	}
	if err != nil {
		log.Error("webhook reconciliation trigger failed", "session_id", event.SessionID, "error", err)
		RespondDomainError(w, err)
		return
	}

	log.Info("webhook event received", "session_id", event.SessionID, "reconciliation", trigger)
	RespondSuccess(w, http.StatusOK, map[string]string{
		"status":         "received",
		"reconciliation": string(trigger),
	})
}
