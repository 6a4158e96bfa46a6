// Package checkout turns validated invoices into hosted payment sessions and
// hands paid sessions over to reconciliation.
package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

const setupFutureUsageOffSession = "off_session"

var minorUnits = decimal.NewFromInt(100)

type SessionBuilder struct {
	titlePrefix string
	successURL  string
	cancelURL   string
}

func NewSessionBuilder(titlePrefix, successURL, cancelURL string) *SessionBuilder {
	return &SessionBuilder{
		titlePrefix: titlePrefix,
		successURL:  successURL,
		cancelURL:   cancelURL,
	}
}

// Build describes a single-item session for the invoice's open balance.
// The metadata written here is the only link back to the ERP invoice.
func (b *SessionBuilder) Build(inv *domain.Invoice, normalizedNumber, customerID string) domain.SessionCreateRequest {
	title := b.titlePrefix + normalizedNumber

	return domain.SessionCreateRequest{
		LineItem: domain.LineItem{
			Name:        title,
			Description: strings.TrimSpace(inv.Description),
			UnitAmount:  inv.Balance.Mul(minorUnits).Round(0).IntPart(),
			Currency:    strings.ToLower(inv.CurrencyCode()),
			Quantity:    1,
		},
		Description:      title,
		SetupFutureUsage: setupFutureUsageOffSession,
		Metadata: map[string]string{
			domain.MetadataCustomerID:    customerID,
			domain.MetadataInvoiceNumber: normalizedNumber,
		},
		SuccessURL: b.successURL,
		CancelURL:  b.cancelURL,
	}
}
