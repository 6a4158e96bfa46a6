// Package checkout talks to the hosted payment processor.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

const settlementExpansion = "payment_intent.latest_charge.balance_transaction"

// StripeGateway implements the session operations on the Stripe API.
type StripeGateway struct {
	client *client.API
}

// NewStripeGateway builds a gateway. Passing nil backends uses Stripe's defaults.
func NewStripeGateway(apiKey string, backends *stripe.Backends) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &StripeGateway{client: sc}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req domain.SessionCreateRequest) (string, error) {
	params := sessionParams(req)
	params.Context = ctx

	s, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("CreateSession: %w", mapStripeError(err))
	}
	return s.ID, nil
}

// GetSession fetches a session. With expandSettlement the linked balance
// transaction is requested, which is the only way to read settled amounts.
func (g *StripeGateway) GetSession(ctx context.Context, sessionID string, expandSettlement bool) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	if expandSettlement {
		params.AddExpand(settlementExpansion)
	}

	s, err := g.client.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("GetSession: %s: %w", sessionID, mapStripeError(err))
	}
	return toDomainSession(s), nil
}

// UpdateSessionMetadata merges the given keys into the session metadata.
func (g *StripeGateway) UpdateSessionMetadata(ctx context.Context, sessionID string, metadata map[string]string) error {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	if _, err := g.client.CheckoutSessions.Update(sessionID, params); err != nil {
		return fmt.Errorf("UpdateSessionMetadata: %s: %w", sessionID, mapStripeError(err))
	}
	return nil
}

func sessionParams(req domain.SessionCreateRequest) *stripe.CheckoutSessionParams {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.LineItem.Name),
	}
	if req.LineItem.Description != "" {
		product.Description = stripe.String(req.LineItem.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.LineItem.Currency),
				UnitAmount:  stripe.Int64(req.LineItem.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(req.LineItem.Quantity),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Description: stripe.String(req.Description),
		},
	}
	if req.SetupFutureUsage != "" {
		params.PaymentIntentData.SetupFutureUsage = stripe.String(req.SetupFutureUsage)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func toDomainSession(s *stripe.CheckoutSession) *domain.CheckoutSession {
	out := &domain.CheckoutSession{
		ID:            s.ID,
		PaymentStatus: domain.SessionPaymentStatus(s.PaymentStatus),
		Metadata:      make(map[string]string, len(s.Metadata)),
	}
	for k, v := range s.Metadata {
		out.Metadata[k] = v
	}

	pi := s.PaymentIntent
	if pi == nil {
		return out
	}
	out.PaymentIntentID = pi.ID

	if pi.LatestCharge == nil || pi.LatestCharge.BalanceTransaction == nil {
		return out
	}
	bt := pi.LatestCharge.BalanceTransaction
	tx := &domain.SettledTransaction{
		Amount:   bt.Amount,
		Fee:      bt.Fee,
		Currency: string(bt.Currency),
	}
	// Stripe reports 0 when no conversion took place.
	if bt.ExchangeRate != 0 {
		rate := decimal.NewFromFloat(bt.ExchangeRate)
		tx.ExchangeRate = &rate
	}
	out.Transaction = tx
	return out
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, stripeErr.Msg)
		}
		return fmt.Errorf("%w: stripe %d %s: %s", domain.ErrUpstream, stripeErr.HTTPStatusCode, stripeErr.Code, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
}
