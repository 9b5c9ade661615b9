package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/billing-xendit/internal/payment"
)

const foreignKeyViolation = "23503"

// Transactions implements payment.TransactionStore.
type Transactions struct {
	Pool *pgxpool.Pool
}

var _ payment.TransactionStore = Transactions{}

// FindByInvoice returns the most recently updated transaction for the invoice.
func (s Transactions) FindByInvoice(ctx context.Context, invoiceID string) (payment.Transaction, bool, error) {
	id, err := parseID(invoiceID, ErrInvoiceNotFound)
	if err != nil {
		return payment.Transaction{}, false, err
	}
	var (
		tx        payment.Transaction
		rowInv    int64
		status    string
		amount    string
		createdAt time.Time
		updatedAt time.Time
	)
	err = s.Pool.QueryRow(ctx,
		`SELECT id::text, invoice_id, gateway_id, remote_transaction_id, status, type,
		        amount::text, currency, error, created_at, updated_at
		   FROM transactions
		  WHERE invoice_id = $1
		  ORDER BY updated_at DESC
		  LIMIT 1`, id).Scan(
		&tx.ID, &rowInv, &tx.GatewayID, &tx.RemoteTransactionID, &status, &tx.Type,
		&amount, &tx.Currency, &tx.Error, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.Transaction{}, false, nil
		}
		return payment.Transaction{}, false, err
	}
	tx.InvoiceID = strconv.FormatInt(rowInv, 10)
	tx.Status = payment.LocalStatus(status)
	tx.CreatedAt = createdAt.UTC()
	tx.UpdatedAt = updatedAt.UTC()
	if tx.Amount, err = parseAmount(amount); err != nil {
		return payment.Transaction{}, false, err
	}
	return tx, true, nil
}

// Save inserts or updates the transaction by id. A transaction for an invoice that
// does not exist fails with ErrInvoiceNotFound.
func (s Transactions) Save(ctx context.Context, tx payment.Transaction) error {
	invoiceID, err := parseID(tx.InvoiceID, ErrInvoiceNotFound)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	createdAt, updatedAt := tx.CreatedAt, tx.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO transactions (id, invoice_id, gateway_id, remote_transaction_id, status, type,
		                           amount, currency, error, created_at, updated_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   gateway_id = EXCLUDED.gateway_id,
		   remote_transaction_id = EXCLUDED.remote_transaction_id,
		   status = EXCLUDED.status,
		   type = EXCLUDED.type,
		   amount = EXCLUDED.amount,
		   currency = EXCLUDED.currency,
		   error = EXCLUDED.error,
		   updated_at = EXCLUDED.updated_at`,
		tx.ID, invoiceID, tx.GatewayID, tx.RemoteTransactionID, string(tx.Status), tx.Type,
		tx.Amount.String(), tx.Currency, tx.Error, createdAt, updatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %d", ErrInvoiceNotFound, invoiceID)
	}
	return err
}
