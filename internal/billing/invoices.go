package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/billing-xendit/internal/payment"
)

// Invoices implements payment.InvoiceService on Postgres.
type Invoices struct {
	Pool *pgxpool.Pool
}

var _ payment.InvoiceService = Invoices{}

const selectInvoice = `SELECT i.id, i.hash, i.serie, i.nr, i.status, i.currency, i.client_id,
       i.buyer_email, i.tax_rate::text,
       COALESCE((SELECT SUM(it.price * it.quantity) FROM invoice_items it WHERE it.invoice_id = i.id), 0)::text
  FROM invoices i
 WHERE i.id = $1`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Get loads an invoice. Total is the tax-inclusive amount due.
func (s Invoices) Get(ctx context.Context, invoiceID string) (payment.Invoice, error) {
	id, err := parseID(invoiceID, ErrInvoiceNotFound)
	if err != nil {
		return payment.Invoice{}, err
	}
	inv, _, err := loadInvoice(ctx, s.Pool, selectInvoice, id)
	return inv, err
}

func loadInvoice(ctx context.Context, q querier, query string, id int64) (payment.Invoice, decimal.Decimal, error) {
	inv, rate, err := scanInvoice(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return payment.Invoice{}, decimal.Zero, fmt.Errorf("%w: %d", ErrInvoiceNotFound, id)
	}
	return inv, rate, err
}

// scanInvoice reads one row shaped like selectInvoice.
func scanInvoice(row pgx.Row) (payment.Invoice, decimal.Decimal, error) {
	var inv payment.Invoice
	var rowID, clientID int64
	var taxRate, subtotal string
	err := row.Scan(
		&rowID, &inv.Hash, &inv.Serie, &inv.Number, &inv.Status, &inv.Currency, &clientID,
		&inv.BuyerEmail, &taxRate, &subtotal,
	)
	if err != nil {
		return payment.Invoice{}, decimal.Zero, err
	}
	rate, err := parseAmount(taxRate)
	if err != nil {
		return payment.Invoice{}, decimal.Zero, fmt.Errorf("parse tax rate: %w", err)
	}
	sub, err := parseAmount(subtotal)
	if err != nil {
		return payment.Invoice{}, decimal.Zero, fmt.Errorf("parse subtotal: %w", err)
	}
	inv.ID = strconv.FormatInt(rowID, 10)
	inv.ClientID = strconv.FormatInt(clientID, 10)
	inv.Total = withTax(sub, rate)
	return inv, rate, nil
}

// Items returns the invoice lines in insertion order.
func (s Invoices) Items(ctx context.Context, invoiceID string) ([]payment.InvoiceItem, error) {
	id, err := parseID(invoiceID, ErrInvoiceNotFound)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT title FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]payment.InvoiceItem, 0)
	for rows.Next() {
		var item payment.InvoiceItem
		if err := rows.Scan(&item.Title); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// TotalWithTax recomputes the amount due from the current invoice lines.
func (s Invoices) TotalWithTax(ctx context.Context, inv payment.Invoice) (decimal.Decimal, error) {
	fresh, err := s.Get(ctx, inv.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return fresh.Total, nil
}

// MarkPaid settles the invoice against the client's credit: the tax-inclusive total
// is deducted from the balance and the invoice flips to paid. The invoice row is
// locked for the duration and an already paid invoice is left alone.
func (s Invoices) MarkPaid(ctx context.Context, invoiceID string) error {
	id, err := parseID(invoiceID, ErrInvoiceNotFound)
	if err != nil {
		return err
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inv, _, err := loadInvoice(ctx, tx, selectInvoice+` FOR UPDATE OF i`, id)
	if err != nil {
		return err
	}
	if inv.Paid() {
		return tx.Commit(ctx)
	}
	debit := inv.Total.Neg()
	if err := applyBalance(ctx, tx, inv.ClientID, debit, "Invoice "+inv.Serie+inv.Number+" payment", "invoice", inv.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE invoices SET status = $2, paid_at = now() WHERE id = $1`, id, payment.InvoiceStatusPaid); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const selectOutstanding = `SELECT i.id, i.hash, i.serie, i.nr, i.status, i.currency, i.client_id,
       i.buyer_email, i.tax_rate::text,
       COALESCE((SELECT SUM(it.price * it.quantity) FROM invoice_items it WHERE it.invoice_id = i.id), 0)::text
  FROM invoices i
 WHERE i.client_id = $1 AND i.status <> $2
 ORDER BY i.created_at, i.id
   FOR UPDATE OF i`

// PayOutstandingWithCredits spends the client's credit on its unpaid invoices, oldest
// first, and stops at the first invoice the remaining balance does not cover.
// Invoices are locked before the client row, the same order MarkPaid uses.
func (s Invoices) PayOutstandingWithCredits(ctx context.Context, clientID string) (int, error) {
	id, err := parseID(clientID, ErrClientNotFound)
	if err != nil {
		return 0, err
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, selectOutstanding, id, payment.InvoiceStatusPaid)
	if err != nil {
		return 0, err
	}
	var outstanding []payment.Invoice
	for rows.Next() {
		inv, _, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		outstanding = append(outstanding, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(outstanding) == 0 {
		return 0, tx.Commit(ctx)
	}

	var raw string
	if err := tx.QueryRow(ctx, `SELECT credit::text FROM clients WHERE id = $1 FOR UPDATE`, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %d", ErrClientNotFound, id)
		}
		return 0, err
	}
	credit, err := parseAmount(raw)
	if err != nil {
		return 0, fmt.Errorf("parse credit: %w", err)
	}

	paid := 0
	for _, inv := range outstanding {
		if credit.LessThan(inv.Total) {
			break
		}
		invoiceID, err := parseID(inv.ID, ErrInvoiceNotFound)
		if err != nil {
			return 0, err
		}
		if err := applyBalance(ctx, tx, inv.ClientID, inv.Total.Neg(), "Invoice "+inv.Serie+inv.Number+" payment", "invoice", inv.ID); err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, `UPDATE invoices SET status = $2, paid_at = now() WHERE id = $1`, invoiceID, payment.InvoiceStatusPaid); err != nil {
			return 0, err
		}
		credit = credit.Sub(inv.Total)
		paid++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return paid, nil
}
