package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/billing-xendit/internal/events"
	"github.com/noah-isme/billing-xendit/internal/obs"
)

// ErrInvoiceIDRequired rejects a redirect callback without an invoice identifier.
var ErrInvoiceIDRequired = errors.New("payment: invoice id is required")

const defaultLockTTL = 30 * time.Second

// Notification is the body of a Xendit invoice callback.
type Notification struct {
	ID             string              `json:"id"`
	ExternalID     string              `json:"external_id" validate:"required"`
	Status         string              `json:"status"`
	PaidAmount     decimal.NullDecimal `json:"paid_amount"`
	Amount         decimal.NullDecimal `json:"amount"`
	Currency       string              `json:"currency"`
	PaymentMethod  string              `json:"payment_method"`
	PaymentChannel string              `json:"payment_channel"`
}

// settledAmount prefers the paid amount and falls back to the nominal amount.
func (n Notification) settledAmount() (decimal.Decimal, bool) {
	if n.PaidAmount.Valid {
		return n.PaidAmount.Decimal, true
	}
	if n.Amount.Valid {
		return n.Amount.Decimal, true
	}
	return decimal.Zero, false
}

// Outcome describes what a reconciliation did to the local transaction.
type Outcome struct {
	Transaction Transaction
	Created     bool
	Settled     bool
}

// RedirectResult describes a completed browser return.
type RedirectResult struct {
	Invoice     Invoice
	AlreadyPaid bool
	Settled     bool
}

// Engine applies payment results to transactions, client balances and invoices.
// It performs no locking of its own unless a Serializer is configured.
type Engine struct {
	Transactions TransactionStore
	Invoices     InvoiceService
	Ledger       ClientLedger
	GatewayID    string
	Serializer   Serializer
	LockTTL      time.Duration
	Events       EventEmitter
	Logger       zerolog.Logger
	Now          func() time.Time
}

// CompleteFromRedirect settles an invoice when the payer's browser returns from the
// hosted payment page. An invoice that is already paid is left untouched.
func (e *Engine) CompleteFromRedirect(ctx context.Context, invoiceID string) (RedirectResult, error) {
	ctx, span := otel.Tracer("payment.Engine").Start(ctx, "Engine.CompleteFromRedirect")
	defer span.End()

	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return RedirectResult{}, ErrInvoiceIDRequired
	}
	span.SetAttributes(attribute.String("invoice.id", invoiceID))

	inv, err := e.Invoices.Get(ctx, invoiceID)
	if err != nil {
		span.RecordError(err)
		return RedirectResult{}, fmt.Errorf("load invoice %s: %w", invoiceID, err)
	}
	if inv.Paid() {
		e.Logger.Info().Str("invoice_id", invoiceID).Msg("invoice already paid, skipping redirect processing")
		return RedirectResult{Invoice: inv, AlreadyPaid: true}, nil
	}

	tx, _, err := e.findOrCreate(ctx, invoiceID)
	if err != nil {
		span.RecordError(err)
		return RedirectResult{}, err
	}
	tx.Status = StatusComplete
	tx.Type = TransactionTypePayment
	tx.GatewayID = e.GatewayID
	tx.Amount = inv.Total
	tx.Currency = inv.Currency
	tx.Error = ""
	tx.UpdatedAt = e.now()
	if err := e.Transactions.Save(ctx, tx); err != nil {
		span.RecordError(err)
		return RedirectResult{}, fmt.Errorf("save transaction: %w", err)
	}

	settled, err := e.settle(ctx, "redirect", inv, tx)
	if err != nil {
		span.RecordError(err)
		return RedirectResult{}, err
	}
	if settled {
		inv.Status = InvoiceStatusPaid
	}
	e.Logger.Info().Str("invoice_id", invoiceID).Str("transaction_id", tx.ID).Bool("settled", settled).Msg("xendit payment processed from redirect")
	e.emit(ctx, tx, settled)
	return RedirectResult{Invoice: inv, Settled: settled}, nil
}

// ReconcileNotification applies an authenticated webhook to the invoice's transaction.
// Only a PAID notification settles; every other status is recorded and acknowledged.
// A complete transaction is terminal and is never moved back by a later status.
func (e *Engine) ReconcileNotification(ctx context.Context, n Notification) (Outcome, error) {
	ctx, span := otel.Tracer("payment.Engine").Start(ctx, "Engine.ReconcileNotification")
	defer span.End()

	n.ExternalID = strings.TrimSpace(n.ExternalID)
	if err := validate.Struct(n); err != nil {
		return Outcome{}, &MalformedNotificationError{Reason: "missing external_id"}
	}
	span.SetAttributes(
		attribute.String("invoice.id", n.ExternalID),
		attribute.String("payment.remote_status", n.Status),
	)

	tx, created, err := e.findOrCreate(ctx, n.ExternalID)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}
	status, errText := MapStatus(n.Status)
	e.Logger.Info().Str("invoice_id", n.ExternalID).Str("remote_status", n.Status).Str("local_status", string(status)).Msg("xendit payment status")

	if status != StatusComplete {
		if !created && tx.Status == StatusComplete {
			e.Logger.Info().Str("invoice_id", n.ExternalID).Str("transaction_id", tx.ID).Str("remote_status", n.Status).Msg("transaction already complete, ignoring notification")
			return Outcome{Transaction: tx}, nil
		}
		tx.Status = status
		tx.Error = errText
		tx.UpdatedAt = e.now()
		if err := e.Transactions.Save(ctx, tx); err != nil {
			span.RecordError(err)
			return Outcome{}, fmt.Errorf("save transaction: %w", err)
		}
		e.Logger.Info().Str("invoice_id", n.ExternalID).Str("status", string(status)).Msg("xendit payment not completed")
		e.emit(ctx, tx, false)
		return Outcome{Transaction: tx, Created: created}, nil
	}

	inv, err := e.Invoices.Get(ctx, n.ExternalID)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("load invoice %s: %w", n.ExternalID, err)
	}
	amount, ok := n.settledAmount()
	if !ok {
		amount = inv.Total
	}
	currency := strings.TrimSpace(n.Currency)
	if currency == "" {
		currency = inv.Currency
	}
	tx.Status = StatusComplete
	tx.Type = TransactionTypePayment
	tx.RemoteTransactionID = n.ID
	tx.Amount = amount
	tx.Currency = currency
	tx.Error = ""

	settled, err := e.settle(ctx, "webhook", inv, tx)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}
	tx.UpdatedAt = e.now()
	if err := e.Transactions.Save(ctx, tx); err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("save transaction: %w", err)
	}
	e.Logger.Info().Str("invoice_id", n.ExternalID).Str("transaction_id", tx.ID).Bool("settled", settled).Msg("xendit payment processed successfully")
	e.emit(ctx, tx, settled)
	return Outcome{Transaction: tx, Created: created, Settled: settled}, nil
}

// settle credits the client, marks the invoice paid and then spends any remaining
// credit on the client's other unpaid invoices. With a Serializer the invoice is
// re-read under the lock and an already paid invoice is skipped.
func (e *Engine) settle(ctx context.Context, path string, inv Invoice, tx Transaction) (bool, error) {
	ctx, span := otel.Tracer("payment.Engine").Start(ctx, "Engine.Settle")
	defer span.End()
	span.SetAttributes(
		attribute.String("settlement.path", path),
		attribute.String("invoice.id", inv.ID),
		attribute.String("transaction.id", tx.ID),
	)

	settled := false
	run := func(ctx context.Context) error {
		if e.Serializer != nil {
			current, err := e.Invoices.Get(ctx, inv.ID)
			if err != nil {
				return fmt.Errorf("reload invoice %s: %w", inv.ID, err)
			}
			if current.Paid() {
				e.Logger.Info().Str("invoice_id", inv.ID).Msg("invoice settled concurrently, skipping")
				return nil
			}
			inv = current
		}
		ref := FundsReference{Type: GatewayName, TransactionID: tx.ID}
		if err := e.Ledger.AddFunds(ctx, inv.ClientID, tx.Amount, GatewayName+" payment", ref); err != nil {
			return fmt.Errorf("add funds: %w", err)
		}
		if err := e.Invoices.MarkPaid(ctx, inv.ID); err != nil {
			return fmt.Errorf("mark invoice %s paid: %w", inv.ID, err)
		}
		settled = true
		// The payment is booked at this point; leftover credit is best effort.
		paid, err := e.Invoices.PayOutstandingWithCredits(ctx, inv.ClientID)
		if err != nil {
			e.Logger.Warn().Err(err).Str("client_id", inv.ClientID).Msg("pay outstanding invoices with credits")
			return nil
		}
		if paid > 0 {
			e.Logger.Info().Str("client_id", inv.ClientID).Int("invoices", paid).Msg("outstanding invoices paid with credits")
		}
		return nil
	}

	var err error
	if e.Serializer != nil {
		ttl := e.LockTTL
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		err = e.Serializer.WithLock(ctx, "settle:"+inv.ID, ttl, run)
	} else {
		err = run(ctx)
	}

	result := "settled"
	switch {
	case err != nil:
		result = "error"
		span.RecordError(err)
	case !settled:
		result = "skipped"
	}
	obs.CountSettlement(path, result)
	if err != nil {
		return false, err
	}
	e.Logger.Info().Str("invoice_id", inv.ID).Str("amount", tx.Amount.String()).Bool("settled", settled).Msg("invoice marked as paid")
	return settled, nil
}

func (e *Engine) findOrCreate(ctx context.Context, invoiceID string) (Transaction, bool, error) {
	tx, found, err := e.Transactions.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return Transaction{}, false, fmt.Errorf("find transaction for invoice %s: %w", invoiceID, err)
	}
	if found {
		return tx, false, nil
	}
	now := e.now()
	return Transaction{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
		GatewayID: e.GatewayID,
		Type:      TransactionTypePayment,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, true, nil
}

func (e *Engine) emit(ctx context.Context, tx Transaction, settled bool) {
	if e.Events == nil {
		return
	}
	payload := map[string]any{
		"invoiceId":     tx.InvoiceID,
		"transactionId": tx.ID,
		"gatewayId":     tx.GatewayID,
		"status":        string(tx.Status),
		"settled":       settled,
	}
	if tx.RemoteTransactionID != "" {
		payload["remoteTransactionId"] = tx.RemoteTransactionID
	}
	if !tx.Amount.IsZero() {
		payload["amount"] = tx.Amount.String()
		payload["currency"] = tx.Currency
	}
	if tx.Error != "" {
		payload["error"] = tx.Error
	}
	if err := e.Events.Emit(ctx, events.TopicForStatus(string(tx.Status)), tx.InvoiceID, payload); err != nil {
		e.Logger.Warn().Err(err).Str("invoice_id", tx.InvoiceID).Msg("emit payment event")
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}
