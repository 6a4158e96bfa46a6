package invoice

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
)

// Finder is the part of an ERP session the validator needs.
type Finder interface {
	FindInvoice(ctx context.Context, invoiceNumber string) (*domain.Invoice, error)
}

// NormalizeNumber trims the caller's input and left-pads it with zeros to width.
// Inputs already at or beyond width are returned trimmed but otherwise unchanged.
func NormalizeNumber(raw string, width int) string {
	n := strings.TrimSpace(raw)
	if pad := width - utf8.RuneCountInString(n); pad > 0 {
		n = strings.Repeat("0", pad) + n
	}
	return n
}

type Validator struct {
	width int
}

func NewValidator(width int) *Validator {
	return &Validator{width: width}
}

// Validate looks up the invoice and checks that it belongs to customerID and is
// still open. The returned invoice carries the normalized number.
func (v *Validator) Validate(ctx context.Context, erp Finder, rawNumber, customerID string) (*domain.Invoice, error) {
	number := NormalizeNumber(rawNumber, v.width)
	customerID = strings.TrimSpace(customerID)
	if strings.TrimSpace(rawNumber) == "" || customerID == "" {
		return nil, fmt.Errorf("Validate: %w", domain.ErrInvalidRequest)
	}

	inv, err := erp.FindInvoice(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("Validate: %w", err)
	}

	if !strings.EqualFold(strings.TrimSpace(inv.CustomerID), customerID) {
		logging.FromContext(ctx).Info("invoice customer mismatch", "invoice_number", number)
		return nil, fmt.Errorf("Validate: %s: %w", number, domain.ErrInvoiceMismatch)
	}
	if inv.IsPaid() {
		return nil, fmt.Errorf("Validate: %s: %w", number, domain.ErrInvoiceAlreadyPaid)
	}

	inv.Number = number
	return inv, nil
}
