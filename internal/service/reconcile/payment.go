package reconcile

import (
	"fmt"
	"strings"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

type PaymentSettings struct {
	PaymentMethod      string
	FeeEntryType       string
	CashAccounts       map[string]string
	DefaultCashAccount string
}

// CashAccount picks the deposit account for a settlement currency.
func (s PaymentSettings) CashAccount(currency string) string {
	if acct, ok := s.CashAccounts[strings.ToUpper(currency)]; ok {
		return acct
	}
	return s.DefaultCashAccount
}

// buildPayment maps a settled session to the ERP payment that records it.
func buildPayment(session *domain.CheckoutSession, settings PaymentSettings) (*domain.ERPPayment, error) {
	customerID := session.CustomerID()
	invoiceNumber := session.InvoiceNumber()
	if customerID == "" || invoiceNumber == "" {
		return nil, fmt.Errorf("buildPayment: session %s metadata lacks customer or invoice: %w", session.ID, domain.ErrInvalidRequest)
	}

	tx := session.Transaction
	gross := tx.GrossAmount()

	return &domain.ERPPayment{
		Type:          domain.ERPPaymentType,
		CustomerID:    customerID,
		PaymentMethod: settings.PaymentMethod,
		CashAccount:   settings.CashAccount(tx.Currency),
		PaymentRef:    session.PaymentIntentID,
		PaymentAmount: gross,
		Documents: []domain.DocumentApplication{{
			DocType:      domain.ERPDocTypeInvoice,
			ReferenceNbr: invoiceNumber,
			AmountPaid:   gross,
			CrossRate:    tx.CrossRate(),
		}},
		Charges: []domain.Charge{{
			EntryTypeID: settings.FeeEntryType,
			Amount:      tx.FeeAmount(),
		}},
	}, nil
}

// correctionFor re-asserts the settled gross on every application of the
// created payment, undoing the ERP's cross-rate recalculation.
func correctionFor(created *domain.ERPPayment, session *domain.CheckoutSession) (*domain.ERPPayment, error) {
	if len(created.Documents) == 0 {
		return nil, fmt.Errorf("correctionFor: payment %s returned no document applications: %w", created.ReferenceNbr, domain.ErrUpstream)
	}

	gross := session.Transaction.GrossAmount()
	fix := &domain.ERPPayment{
		ID:           created.ID,
		Type:         domain.ERPPaymentType,
		ReferenceNbr: created.ReferenceNbr,
	}
	for _, d := range created.Documents {
		d.AmountPaid = gross
		fix.Documents = append(fix.Documents, d)
	}
	return fix, nil
}
