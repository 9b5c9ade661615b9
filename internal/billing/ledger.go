package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/billing-xendit/internal/payment"
)

// Ledger implements payment.ClientLedger on the clients credit balance.
type Ledger struct {
	Pool *pgxpool.Pool
}

var _ payment.ClientLedger = Ledger{}

// AddFunds credits amount to the client and records a balance entry tagged with ref.
func (l Ledger) AddFunds(ctx context.Context, clientID string, amount decimal.Decimal, note string, ref payment.FundsReference) error {
	tx, err := l.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := applyBalance(ctx, tx, clientID, amount, note, ref.Type, ref.TransactionID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Balance returns the client's current credit.
func (l Ledger) Balance(ctx context.Context, clientID string) (decimal.Decimal, error) {
	id, err := parseID(clientID, ErrClientNotFound)
	if err != nil {
		return decimal.Zero, err
	}
	var raw string
	if err := l.Pool.QueryRow(ctx, `SELECT credit::text FROM clients WHERE id = $1`, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %d", ErrClientNotFound, id)
		}
		return decimal.Zero, err
	}
	return parseAmount(raw)
}

func applyBalance(ctx context.Context, tx pgx.Tx, clientID string, amount decimal.Decimal, note, relType, relID string) error {
	id, err := parseID(clientID, ErrClientNotFound)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE clients SET credit = credit + $2::numeric WHERE id = $1`, id, amount.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrClientNotFound, id)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO client_balance_entries (client_id, amount, note, rel_type, rel_id)
		 VALUES ($1, $2::numeric, $3, $4, $5)`,
		id, amount.String(), note, relType, relID)
	return err
}
