package checkout

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

const (
	EventSessionCompleted             = "checkout.session.completed"
	EventSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

var ErrInvalidSignature = fmt.Errorf("invalid webhook signature: %w", domain.ErrInvalidRequest)

// WebhookEvent is a verified processor event that references a checkout session.
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

// Triggers reports whether the event should start reconciliation.
func (e WebhookEvent) Triggers() bool {
	return e.SessionID != "" &&
		(e.Type == EventSessionCompleted || e.Type == EventSessionAsyncPaymentSucceeded)
}

type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Verify checks the Stripe-Signature header and decodes the event.
// Events for objects other than checkout sessions come back with an empty SessionID.
func (v *WebhookVerifier) Verify(payload []byte, signature string) (WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("Verify: %w: %v", ErrInvalidSignature, err)
	}

	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || !strings.HasPrefix(out.Type, "checkout.session.") {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return WebhookEvent{}, fmt.Errorf("Verify: decode session: %w", domain.ErrInvalidRequest)
	}
	out.SessionID = s.ID
	return out, nil
}
