package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

func testGateway(t *testing.T, h http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	return NewStripeGateway("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestSessionParams(t *testing.T) {
	req := domain.SessionCreateRequest{
		LineItem: domain.LineItem{
			Name:        "Invoice #004210",
			Description: "Consulting, March",
			UnitAmount:  25000,
			Currency:    "usd",
			Quantity:    1,
		},
		Description:      "Invoice #004210",
		SetupFutureUsage: string(stripe.PaymentIntentSetupFutureUsageOffSession),
		Metadata: map[string]string{
			domain.MetadataCustomerID:    "C001",
			domain.MetadataInvoiceNumber: "004210",
		},
		SuccessURL: "https://pay.example.com/confirmation?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://pay.example.com/",
	}

	params := sessionParams(req)

	assert.Equal(t, "payment", *params.Mode)
	require.Len(t, params.PaymentMethodTypes, 1)
	assert.Equal(t, "card", *params.PaymentMethodTypes[0])
	assert.Equal(t, req.SuccessURL, *params.SuccessURL)
	assert.Equal(t, req.CancelURL, *params.CancelURL)

	require.Len(t, params.LineItems, 1)
	item := params.LineItems[0]
	assert.Equal(t, int64(1), *item.Quantity)
	assert.Equal(t, "usd", *item.PriceData.Currency)
	assert.Equal(t, int64(25000), *item.PriceData.UnitAmount)
	assert.Equal(t, "Invoice #004210", *item.PriceData.ProductData.Name)
	assert.Equal(t, "Consulting, March", *item.PriceData.ProductData.Description)

	assert.Equal(t, "Invoice #004210", *params.PaymentIntentData.Description)
	assert.Equal(t, "off_session", *params.PaymentIntentData.SetupFutureUsage)
	assert.Equal(t, "C001", params.Metadata[domain.MetadataCustomerID])
	assert.Equal(t, "004210", params.Metadata[domain.MetadataInvoiceNumber])
}

func TestSessionParams_EmptyDescriptionOmitted(t *testing.T) {
	params := sessionParams(domain.SessionCreateRequest{
		LineItem: domain.LineItem{Name: "Invoice #1", UnitAmount: 100, Currency: "usd", Quantity: 1},
	})
	assert.Nil(t, params.LineItems[0].PriceData.ProductData.Description)
	assert.Nil(t, params.PaymentIntentData.SetupFutureUsage)
}

func TestToDomainSession(t *testing.T) {
	tests := []struct {
		name        string
		session     *stripe.CheckoutSession
		wantTx      bool
		wantRate    string
		wantCorrect bool
	}{
		{
			name: "unexpanded payment intent",
			session: &stripe.CheckoutSession{
				ID:            "cs_1",
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
				PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
			},
		},
		{
			name: "settled without conversion",
			session: &stripe.CheckoutSession{
				ID:            "cs_1",
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
				PaymentIntent: &stripe.PaymentIntent{
					ID: "pi_1",
					LatestCharge: &stripe.Charge{BalanceTransaction: &stripe.BalanceTransaction{
						Amount: 25000, Fee: 750, Currency: stripe.CurrencyUSD,
					}},
				},
			},
			wantTx:   true,
			wantRate: "1",
		},
		{
			name: "settled with conversion",
			session: &stripe.CheckoutSession{
				ID:            "cs_1",
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
				PaymentIntent: &stripe.PaymentIntent{
					ID: "pi_1",
					LatestCharge: &stripe.Charge{BalanceTransaction: &stripe.BalanceTransaction{
						Amount: 33750, Fee: 1012, Currency: stripe.CurrencyCAD, ExchangeRate: 1.35,
					}},
				},
			},
			wantTx:      true,
			wantRate:    "1.35",
			wantCorrect: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.session.Metadata = map[string]string{domain.MetadataInvoiceNumber: "004210"}

			got := toDomainSession(tc.session)

			assert.Equal(t, "cs_1", got.ID)
			assert.True(t, got.IsPaid())
			assert.Equal(t, "pi_1", got.PaymentIntentID)
			assert.Equal(t, "004210", got.InvoiceNumber())
			assert.Equal(t, tc.wantTx, got.Settled())
			if !tc.wantTx {
				assert.Nil(t, got.Transaction)
				return
			}
			assert.True(t, decimal.RequireFromString(tc.wantRate).Equal(got.Transaction.CrossRate()))
			assert.Equal(t, tc.wantCorrect, got.Transaction.NeedsAmountCorrection())
		})
	}
}

func TestToDomainSession_CopiesMetadata(t *testing.T) {
	src := &stripe.CheckoutSession{ID: "cs_1", Metadata: map[string]string{"k": "v"}}
	got := toDomainSession(src)
	got.Metadata["k"] = "changed"
	assert.Equal(t, "v", src.Metadata["k"])
	assert.Nil(t, got.Transaction)
}

func TestGetSession_RequestsSettlementExpansion(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_123", r.URL.Path)
		assert.Equal(t, settlementExpansion, r.URL.Query().Get("expand[0]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cs_123",
			"object": "checkout.session",
			"payment_status": "paid",
			"metadata": {"CustomerID": "C001", "InvoiceNumber": "004210"},
			"payment_intent": {
				"id": "pi_1",
				"object": "payment_intent",
				"latest_charge": {
					"id": "ch_1",
					"object": "charge",
					"balance_transaction": {
						"id": "txn_1",
						"object": "balance_transaction",
						"amount": 25000,
						"fee": 750,
						"currency": "usd",
						"exchange_rate": null
					}
				}
			}
		}`))
	})

	s, err := g.GetSession(context.Background(), "cs_123", true)
	require.NoError(t, err)
	assert.True(t, s.NeedsReconciliation())
	require.True(t, s.Settled())
	assert.Equal(t, int64(25000), s.Transaction.Amount)
	assert.Equal(t, int64(750), s.Transaction.Fee)
	assert.Nil(t, s.Transaction.ExchangeRate)
}

func TestGetSession_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "missing session", status: http.StatusNotFound, wantErr: domain.ErrNotFound},
		{name: "rejected request", status: http.StatusBadRequest, wantErr: domain.ErrUpstream},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := testGateway(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`))
			})

			_, err := g.GetSession(context.Background(), "cs_missing", false)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
