package billing

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// NewItem is an invoice line to insert.
type NewItem struct {
	Title    string
	Price    decimal.Decimal
	Quantity int
}

// NewInvoice is an unpaid invoice to insert.
type NewInvoice struct {
	ClientID   string
	Hash       string
	Serie      string
	Number     string
	Currency   string
	TaxRate    decimal.Decimal
	BuyerEmail string
	Items      []NewItem
}

// CreateClient inserts a client with a zero balance and returns its id.
func CreateClient(ctx context.Context, pool *pgxpool.Pool, email, currency string) (string, error) {
	var id int64
	err := pool.QueryRow(ctx,
		`INSERT INTO clients (email, currency) VALUES ($1, $2) RETURNING id`,
		email, currency).Scan(&id)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// CreateInvoice inserts an invoice with its lines in one transaction and returns its id.
func CreateInvoice(ctx context.Context, pool *pgxpool.Pool, in NewInvoice) (string, error) {
	clientID, err := parseID(in.ClientID, ErrClientNotFound)
	if err != nil {
		return "", err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO invoices (client_id, hash, serie, nr, currency, tax_rate, buyer_email)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7) RETURNING id`,
		clientID, in.Hash, in.Serie, in.Number, in.Currency, in.TaxRate.String(), in.BuyerEmail).Scan(&id)
	if err != nil {
		return "", err
	}
	for _, item := range in.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO invoice_items (invoice_id, title, price, quantity) VALUES ($1, $2, $3::numeric, $4)`,
			id, item.Title, item.Price.String(), qty); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}
