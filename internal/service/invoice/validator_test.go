package invoice

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

type mockFinder struct {
	invoices map[string]*domain.Invoice
	err      error
	lookups  []string
}

func (m *mockFinder) FindInvoice(_ context.Context, number string) (*domain.Invoice, error) {
	m.lookups = append(m.lookups, number)
	if m.err != nil {
		return nil, m.err
	}
	inv, ok := m.invoices[number]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		raw   string
		width int
		want  string
	}{
		{raw: "4210", width: 6, want: "004210"},
		{raw: "  4210 ", width: 6, want: "004210"},
		{raw: "004210", width: 6, want: "004210"},
		{raw: "1234567", width: 6, want: "1234567"},
		{raw: "", width: 6, want: "000000"},
		{raw: "42", width: 1, want: "42"},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeNumber(tc.raw, tc.width))
		})
	}
}

func TestValidate(t *testing.T) {
	finder := &mockFinder{invoices: map[string]*domain.Invoice{
		"004210": {Number: "004210", CustomerID: "C001", Balance: decimal.RequireFromString("250.00"), Currency: "USD"},
		"004211": {Number: "004211", CustomerID: "C001", Balance: decimal.Zero, Currency: "USD"},
		"004212": {Number: "004212", CustomerID: "C001", Balance: decimal.RequireFromString("-5"), Currency: "USD"},
	}}

	tests := []struct {
		name     string
		number   string
		customer string
		wantErr  error
	}{
		{name: "valid", number: "4210", customer: "C001"},
		{name: "customer case-insensitive", number: "4210", customer: " c001 "},
		{name: "unknown invoice", number: "9999", customer: "C001", wantErr: domain.ErrInvoiceNotFound},
		{name: "other customer", number: "4210", customer: "C002", wantErr: domain.ErrInvoiceMismatch},
		{name: "zero balance", number: "4211", customer: "C001", wantErr: domain.ErrInvoiceAlreadyPaid},
		{name: "negative balance", number: "4212", customer: "C001", wantErr: domain.ErrInvoiceAlreadyPaid},
		{name: "blank customer", number: "4210", customer: "  ", wantErr: domain.ErrInvalidRequest},
		{name: "blank number", number: " ", customer: "C001", wantErr: domain.ErrInvalidRequest},
	}

	v := NewValidator(6)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inv, err := v.Validate(context.Background(), finder, tc.number, tc.customer)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, inv)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "004210", inv.Number)
		})
	}
}

func TestValidate_LooksUpNormalizedNumber(t *testing.T) {
	finder := &mockFinder{err: errors.New("erp unavailable")}

	_, err := NewValidator(6).Validate(context.Background(), finder, "4210", "C001")
	require.Error(t, err)
	assert.Equal(t, []string{"004210"}, finder.lookups)
}
