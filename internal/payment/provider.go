package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LocalStatus is the billing-side state of a gateway transaction.
type LocalStatus string

const (
	StatusPending  LocalStatus = "pending"
	StatusComplete LocalStatus = "complete"
	StatusExpired  LocalStatus = "expired"
	StatusFailed   LocalStatus = "failed"
	StatusUnknown  LocalStatus = "unknown"
)

// InvoiceStatusPaid is the billing platform's status for a settled invoice.
const InvoiceStatusPaid = "paid"

// TransactionTypePayment tags transactions created by this adapter.
const TransactionTypePayment = "payment"

// Invoice is the subset of a billing invoice the gateway reads.
type Invoice struct {
	ID         string
	Hash       string
	Serie      string
	Number     string
	Status     string
	Total      decimal.Decimal
	Currency   string
	ClientID   string
	BuyerEmail string
}

// Paid reports whether the billing platform already settled the invoice.
func (i Invoice) Paid() bool {
	return i.Status == InvoiceStatusPaid
}

// InvoiceItem is a single invoice line; only its title feeds the remote description.
type InvoiceItem struct {
	Title string
}

// Transaction records one attempted or completed payment against an invoice.
// Transactions are mutated in place and never deleted.
type Transaction struct {
	ID                  string
	InvoiceID           string
	GatewayID           string
	RemoteTransactionID string
	Status              LocalStatus
	Type                string
	Amount              decimal.Decimal
	Currency            string
	Error               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FundsReference tags a ledger credit with the transaction that produced it.
type FundsReference struct {
	Type          string
	TransactionID string
}

// InvoiceService is the billing platform's invoice API.
type InvoiceService interface {
	Get(ctx context.Context, invoiceID string) (Invoice, error)
	Items(ctx context.Context, invoiceID string) ([]InvoiceItem, error)
	TotalWithTax(ctx context.Context, inv Invoice) (decimal.Decimal, error)
	MarkPaid(ctx context.Context, invoiceID string) error
	// PayOutstandingWithCredits settles the client's unpaid invoices, oldest first,
	// from its credit balance and returns how many were paid.
	PayOutstandingWithCredits(ctx context.Context, clientID string) (int, error)
}

// ClientLedger credits funds to a client's account balance.
type ClientLedger interface {
	AddFunds(ctx context.Context, clientID string, amount decimal.Decimal, note string, ref FundsReference) error
}

// TransactionStore persists gateway transactions. FindByInvoice reports found=false
// when the invoice has no transaction yet.
type TransactionStore interface {
	FindByInvoice(ctx context.Context, invoiceID string) (tx Transaction, found bool, err error)
	Save(ctx context.Context, tx Transaction) error
}

// InvoiceCreator opens a remote payment invoice.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (RemoteInvoice, error)
}

// Serializer runs fn while holding an exclusive lock for key.
type Serializer interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// EventEmitter publishes reconciliation outcomes.
type EventEmitter interface {
	Emit(ctx context.Context, topic, key string, payload any) error
}
