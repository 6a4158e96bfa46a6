package domain

import "github.com/shopspring/decimal"

const (
	ERPPaymentType    = "Payment"
	ERPDocTypeInvoice = "Invoice"
)

type ERPPaymentStatus string

const (
	ERPPaymentStatusOpen     ERPPaymentStatus = "Open"
	ERPPaymentStatusBalanced ERPPaymentStatus = "Balanced"
	ERPPaymentStatusReleased ERPPaymentStatus = "Released"
)

type ERPPayment struct {
	ID            string
	ReferenceNbr  string
	Type          string
	Status        ERPPaymentStatus
	CustomerID    string
	PaymentMethod string
	CashAccount   string
	PaymentRef    string
	Description   string
	PaymentAmount decimal.Decimal
	Documents     []DocumentApplication
	Charges       []Charge
}

// AppliedTotal sums the document application amounts.
func (p *ERPPayment) AppliedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range p.Documents {
		total = total.Add(d.AmountPaid)
	}
	return total
}

type DocumentApplication struct {
	ID           string
	DocType      string
	ReferenceNbr string
	AmountPaid   decimal.Decimal
	CrossRate    decimal.Decimal
}

type Charge struct {
	EntryTypeID string
	Amount      decimal.Decimal
	Description string
}
