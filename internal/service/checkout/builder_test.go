package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

func TestSessionBuilder_Build(t *testing.T) {
	b := NewSessionBuilder("Invoice #", "https://pay.example.com/ok?session_id={CHECKOUT_SESSION_ID}", "https://pay.example.com/")

	inv := &domain.Invoice{
		Number:      "004210",
		CustomerID:  "C001",
		Balance:     decimal.RequireFromString("250.00"),
		Currency:    "USD",
		Description: "Consulting, March",
	}
	req := b.Build(inv, "004210", "C001")

	assert.Equal(t, "Invoice #004210", req.LineItem.Name)
	assert.Equal(t, "Consulting, March", req.LineItem.Description)
	assert.Equal(t, int64(25000), req.LineItem.UnitAmount)
	assert.Equal(t, "usd", req.LineItem.Currency)
	assert.Equal(t, int64(1), req.LineItem.Quantity)
	assert.Equal(t, "Invoice #004210", req.Description)
	assert.Equal(t, "off_session", req.SetupFutureUsage)
	assert.Equal(t, map[string]string{
		domain.MetadataCustomerID:    "C001",
		domain.MetadataInvoiceNumber: "004210",
	}, req.Metadata)
	assert.Equal(t, "https://pay.example.com/ok?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, "https://pay.example.com/", req.CancelURL)
}

func TestSessionBuilder_AmountRounding(t *testing.T) {
	tests := []struct {
		balance string
		want    int64
	}{
		{balance: "250.00", want: 25000},
		{balance: "19.995", want: 2000},
		{balance: "19.994", want: 1999},
		{balance: "0.01", want: 1},
		{balance: "1234.5", want: 123450},
	}

	b := NewSessionBuilder("Invoice #", "", "")
	for _, tc := range tests {
		t.Run(tc.balance, func(t *testing.T) {
			inv := &domain.Invoice{Balance: decimal.RequireFromString(tc.balance), Currency: "cad"}
			req := b.Build(inv, "1", "C1")
			assert.Equal(t, tc.want, req.LineItem.UnitAmount)
			assert.Equal(t, "cad", req.LineItem.Currency)
		})
	}
}
