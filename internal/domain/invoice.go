package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	Number      string
	CustomerID  string
	Balance     decimal.Decimal
	Currency    string
	Description string
}

// CurrencyCode returns the ISO-4217 code upper-cased.
func (i *Invoice) CurrencyCode() string {
	return strings.ToUpper(strings.TrimSpace(i.Currency))
}

func (i *Invoice) IsPaid() bool {
	return !i.Balance.IsPositive()
}
