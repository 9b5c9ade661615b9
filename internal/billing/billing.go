// Package billing is the Postgres-backed billing platform the gateway settles into:
// clients with a credit balance, invoices with items, and gateway transactions.
package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/billing-xendit/internal/payment"
)

var (
	// ErrInvoiceNotFound matches payment.ErrInvoiceNotFound so handlers can map it to 404.
	ErrInvoiceNotFound = payment.ErrInvoiceNotFound
	// ErrClientNotFound is returned when a ledger operation names an unknown client.
	ErrClientNotFound = errors.New("billing: client not found")
)

func parseID(raw string, notFound error) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", notFound, raw)
	}
	return id, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// withTax applies a percentage tax rate and rounds to cents.
func withTax(subtotal, ratePercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(ratePercent.Div(decimal.NewFromInt(100)))
	return subtotal.Mul(factor).Round(2)
}
