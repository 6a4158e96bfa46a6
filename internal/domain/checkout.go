package domain

import (
	"github.com/shopspring/decimal"
)

const (
	MetadataCustomerID          = "CustomerID"
	MetadataInvoiceNumber       = "InvoiceNumber"
	MetadataPaymentReferenceNbr = "PaymentReferenceNbr"
)

type SessionPaymentStatus string

const (
	SessionPaymentStatusPaid              SessionPaymentStatus = "paid"
	SessionPaymentStatusUnpaid            SessionPaymentStatus = "unpaid"
	SessionPaymentStatusNoPaymentRequired SessionPaymentStatus = "no_payment_required"
)

type CheckoutSession struct {
	ID              string
	PaymentStatus   SessionPaymentStatus
	PaymentIntentID string
	Metadata        map[string]string
	Transaction     *SettledTransaction
}

func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == SessionPaymentStatusPaid
}

// Reconciled reports whether the session carries the ERP payment reference.
// Its presence is the only signal that the ERP payment was already created.
func (s *CheckoutSession) Reconciled() bool {
	_, ok := s.Metadata[MetadataPaymentReferenceNbr]
	return ok
}

func (s *CheckoutSession) NeedsReconciliation() bool {
	return s.IsPaid() && !s.Reconciled()
}

func (s *CheckoutSession) InvoiceNumber() string {
	return s.Metadata[MetadataInvoiceNumber]
}

func (s *CheckoutSession) CustomerID() string {
	return s.Metadata[MetadataCustomerID]
}

// Settled reports whether the processor has finalized the transaction.
func (s *CheckoutSession) Settled() bool {
	return s.Transaction != nil && s.Transaction.Amount > 0
}

// SettledTransaction holds processor amounts in minor units.
type SettledTransaction struct {
	Amount       int64
	Fee          int64
	Currency     string
	ExchangeRate *decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func (t *SettledTransaction) GrossAmount() decimal.Decimal {
	return decimal.NewFromInt(t.Amount).Div(hundred)
}

func (t *SettledTransaction) FeeAmount() decimal.Decimal {
	return decimal.NewFromInt(t.Fee).Div(hundred)
}

// CrossRate is the exchange rate if the processor supplied one, otherwise 1.
func (t *SettledTransaction) CrossRate() decimal.Decimal {
	if t.ExchangeRate == nil {
		return decimal.NewFromInt(1)
	}
	return *t.ExchangeRate
}

// NeedsAmountCorrection is true when a non-identity rate was supplied, which
// makes the ERP recompute the applied amount.
func (t *SettledTransaction) NeedsAmountCorrection() bool {
	return t.ExchangeRate != nil && !t.ExchangeRate.Equal(decimal.NewFromInt(1))
}

type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Currency    string
	Quantity    int64
}

type SessionCreateRequest struct {
	LineItem         LineItem
	Description      string
	SetupFutureUsage string
	Metadata         map[string]string
	SuccessURL       string
	CancelURL        string
}
