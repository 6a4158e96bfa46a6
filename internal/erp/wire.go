package erp

import (
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

// The entity API wraps every field as {"value": x}.

type stringValue struct {
	Value string `json:"value"`
}

func str(v string) *stringValue {
	if v == "" {
		return nil
	}
	return &stringValue{Value: v}
}

func (v *stringValue) get() string {
	if v == nil {
		return ""
	}
	return v.Value
}

type decimalValue struct {
	Value decimal.Decimal `json:"value"`
}

func dec(d decimal.Decimal) *decimalValue {
	return &decimalValue{Value: d}
}

// MarshalJSON writes the amount as a JSON number; the ERP rejects quoted decimals.
func (v decimalValue) MarshalJSON() ([]byte, error) {
	return []byte(`{"value":` + v.Value.String() + `}`), nil
}

func (v *decimalValue) get() decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return v.Value
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Tenant   string `json:"tenant,omitempty"`
}

type invoiceDTO struct {
	ReferenceNbr *stringValue  `json:"ReferenceNbr,omitempty"`
	Customer     *stringValue  `json:"Customer,omitempty"`
	Balance      *decimalValue `json:"Balance,omitempty"`
	Currency     *stringValue  `json:"Currency,omitempty"`
	Description  *stringValue  `json:"Description,omitempty"`
}

func (d invoiceDTO) toDomain(number string) *domain.Invoice {
	return &domain.Invoice{
		Number:      number,
		CustomerID:  d.Customer.get(),
		Balance:     d.Balance.get(),
		Currency:    d.Currency.get(),
		Description: d.Description.get(),
	}
}

type documentDTO struct {
	ID           string        `json:"id,omitempty"`
	DocType      *stringValue  `json:"DocType,omitempty"`
	ReferenceNbr *stringValue  `json:"ReferenceNbr,omitempty"`
	AmountPaid   *decimalValue `json:"AmountPaid,omitempty"`
	CrossRate    *decimalValue `json:"CrossRate,omitempty"`
}

type chargeDTO struct {
	EntryTypeID *stringValue  `json:"EntryTypeID,omitempty"`
	Amount      *decimalValue `json:"Amount,omitempty"`
	Description *stringValue  `json:"Description,omitempty"`
}

type paymentDTO struct {
	ID               string        `json:"id,omitempty"`
	Type             *stringValue  `json:"Type,omitempty"`
	ReferenceNbr     *stringValue  `json:"ReferenceNbr,omitempty"`
	Status           *stringValue  `json:"Status,omitempty"`
	CustomerID       *stringValue  `json:"CustomerID,omitempty"`
	PaymentMethod    *stringValue  `json:"PaymentMethod,omitempty"`
	CashAccount      *stringValue  `json:"CashAccount,omitempty"`
	PaymentRef       *stringValue  `json:"PaymentRef,omitempty"`
	Description      *stringValue  `json:"Description,omitempty"`
	PaymentAmount    *decimalValue `json:"PaymentAmount,omitempty"`
	DocumentsToApply []documentDTO `json:"DocumentsToApply,omitempty"`
	Charges          []chargeDTO   `json:"Charges,omitempty"`
}

func toPaymentDTO(p *domain.ERPPayment) paymentDTO {
	dto := paymentDTO{
		ID:            p.ID,
		Type:          str(p.Type),
		ReferenceNbr:  str(p.ReferenceNbr),
		CustomerID:    str(p.CustomerID),
		PaymentMethod: str(p.PaymentMethod),
		CashAccount:   str(p.CashAccount),
		PaymentRef:    str(p.PaymentRef),
		Description:   str(p.Description),
		PaymentAmount: dec(p.PaymentAmount),
	}
	for _, d := range p.Documents {
		dto.DocumentsToApply = append(dto.DocumentsToApply, documentDTO{
			ID:           d.ID,
			DocType:      str(d.DocType),
			ReferenceNbr: str(d.ReferenceNbr),
			AmountPaid:   dec(d.AmountPaid),
			CrossRate:    dec(d.CrossRate),
		})
	}
	for _, c := range p.Charges {
		dto.Charges = append(dto.Charges, chargeDTO{
			EntryTypeID: str(c.EntryTypeID),
			Amount:      dec(c.Amount),
			Description: str(c.Description),
		})
	}
	return dto
}

// toCorrectionDTO carries only the keys and the document applications.
// Charges are left out so the update does not add a second fee line.
func toCorrectionDTO(p *domain.ERPPayment) paymentDTO {
	dto := paymentDTO{
		ID:           p.ID,
		Type:         str(p.Type),
		ReferenceNbr: str(p.ReferenceNbr),
	}
	for _, d := range p.Documents {
		dto.DocumentsToApply = append(dto.DocumentsToApply, documentDTO{
			ID:           d.ID,
			DocType:      str(d.DocType),
			ReferenceNbr: str(d.ReferenceNbr),
			AmountPaid:   dec(d.AmountPaid),
		})
	}
	return dto
}

func (d paymentDTO) toDomain() *domain.ERPPayment {
	p := &domain.ERPPayment{
		ID:            d.ID,
		Type:          d.Type.get(),
		ReferenceNbr:  d.ReferenceNbr.get(),
		Status:        domain.ERPPaymentStatus(d.Status.get()),
		CustomerID:    d.CustomerID.get(),
		PaymentMethod: d.PaymentMethod.get(),
		CashAccount:   d.CashAccount.get(),
		PaymentRef:    d.PaymentRef.get(),
		Description:   d.Description.get(),
		PaymentAmount: d.PaymentAmount.get(),
	}
	for _, doc := range d.DocumentsToApply {
		p.Documents = append(p.Documents, domain.DocumentApplication{
			ID:           doc.ID,
			DocType:      doc.DocType.get(),
			ReferenceNbr: doc.ReferenceNbr.get(),
			AmountPaid:   doc.AmountPaid.get(),
			CrossRate:    doc.CrossRate.get(),
		})
	}
	for _, c := range d.Charges {
		p.Charges = append(p.Charges, domain.Charge{
			EntryTypeID: c.EntryTypeID.get(),
			Amount:      c.Amount.get(),
			Description: c.Description.get(),
		})
	}
	return p
}

type releaseRequest struct {
	Entity releaseEntity `json:"entity"`
}

type releaseEntity struct {
	Type         *stringValue `json:"Type"`
	ReferenceNbr *stringValue `json:"ReferenceNbr"`
}
