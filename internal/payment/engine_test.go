package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/billing-xendit/internal/events"
	"github.com/noah-isme/billing-xendit/internal/payment"
)

type engineFixture struct {
	engine   *payment.Engine
	invoices *fakeInvoices
	ledger   *fakeLedger
	txs      *fakeTransactions
	events   *captureEvents
}

func newEngineFixture(invs ...payment.Invoice) engineFixture {
	f := engineFixture{
		invoices: newFakeInvoices(invs...),
		ledger:   &fakeLedger{},
		txs:      newFakeTransactions(),
		events:   &captureEvents{},
	}
	f.engine = &payment.Engine{
		Transactions: f.txs,
		Invoices:     f.invoices,
		Ledger:       f.ledger,
		GatewayID:    "10",
		Events:       f.events,
		Logger:       zerolog.Nop(),
		Now:          func() time.Time { return fixedNow },
	}
	return f
}

func TestRedirectSettlesUnpaidInvoice(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())

	res, err := f.engine.CompleteFromRedirect(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, res.Settled)
	require.False(t, res.AlreadyPaid)
	require.True(t, res.Invoice.Paid())

	tx := f.txs.rows["42"]
	require.NotEmpty(t, tx.ID)
	require.Equal(t, payment.StatusComplete, tx.Status)
	require.Equal(t, payment.TransactionTypePayment, tx.Type)
	require.Equal(t, "10", tx.GatewayID)
	require.Equal(t, "IDR", tx.Currency)
	require.True(t, tx.Amount.Equal(decimal.RequireFromString("150000")))
	require.Equal(t, fixedNow, tx.UpdatedAt)

	require.Len(t, f.ledger.credits, 1)
	c := f.ledger.credits[0]
	require.Equal(t, "7", c.clientID)
	require.Equal(t, "Xendit payment", c.note)
	require.Equal(t, payment.FundsReference{Type: "Xendit", TransactionID: tx.ID}, c.ref)
	require.Equal(t, []string{"42"}, f.invoices.paid)

	require.Len(t, f.events.events, 1)
	require.Equal(t, events.TopicInvoicePaid, f.events.events[0].topic)
	require.Equal(t, "42", f.events.events[0].key)
}

func TestRedirectIgnoresPaidInvoice(t *testing.T) {
	inv := unpaidInvoice()
	inv.Status = payment.InvoiceStatusPaid
	f := newEngineFixture(inv)

	res, err := f.engine.CompleteFromRedirect(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, res.AlreadyPaid)
	require.False(t, res.Settled)
	require.Empty(t, f.txs.saves)
	require.Empty(t, f.ledger.credits)
	require.Empty(t, f.invoices.paid)
	require.Empty(t, f.events.events)
}

func TestRedirectUnknownInvoice(t *testing.T) {
	f := newEngineFixture()
	_, err := f.engine.CompleteFromRedirect(context.Background(), "404")
	require.ErrorIs(t, err, payment.ErrInvoiceNotFound)

	_, err = f.engine.CompleteFromRedirect(context.Background(), "  ")
	require.ErrorIs(t, err, payment.ErrInvoiceIDRequired)
}

func TestNotificationPaidCreatesAndSettles(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())

	out, err := f.engine.ReconcileNotification(context.Background(), payment.Notification{
		ID:         "inv_remote_1",
		ExternalID: "42",
		Status:     "PAID",
		PaidAmount: decimal.NewNullDecimal(decimal.RequireFromString("150000")),
		Amount:     decimal.NewNullDecimal(decimal.RequireFromString("160000")),
		Currency:   "IDR",
	})
	require.NoError(t, err)
	require.True(t, out.Created)
	require.True(t, out.Settled)

	tx := out.Transaction
	require.Equal(t, payment.StatusComplete, tx.Status)
	require.Equal(t, "inv_remote_1", tx.RemoteTransactionID)
	require.Equal(t, "10", tx.GatewayID)
	require.True(t, tx.Amount.Equal(decimal.RequireFromString("150000")), tx.Amount.String())
	require.Equal(t, tx, f.txs.rows["42"])

	require.Len(t, f.ledger.credits, 1)
	require.True(t, f.ledger.credits[0].amount.Equal(decimal.RequireFromString("150000")))
	require.Equal(t, tx.ID, f.ledger.credits[0].ref.TransactionID)
	require.Equal(t, []string{"42"}, f.invoices.paid)
}

func TestNotificationFallsBackToAmount(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())

	out, err := f.engine.ReconcileNotification(context.Background(), payment.Notification{
		ExternalID: "42",
		Status:     "PAID",
		Amount:     decimal.NewNullDecimal(decimal.RequireFromString("149999.50")),
	})
	require.NoError(t, err)
	require.True(t, out.Transaction.Amount.Equal(decimal.RequireFromString("149999.50")))
	require.Equal(t, "IDR", out.Transaction.Currency)
}

func TestNotificationNonPaidStatuses(t *testing.T) {
	cases := []struct {
		remote string
		status payment.LocalStatus
		errMsg string
		topic  string
	}{
		{"EXPIRED", payment.StatusExpired, "payment expired", events.TopicPaymentExpired},
		{"FAILED", payment.StatusFailed, "payment failed", events.TopicPaymentFailed},
		{"PENDING", payment.StatusPending, "", events.TopicPaymentPending},
		{"REFUNDED", payment.StatusUnknown, `unrecognized payment status: "REFUNDED"`, events.TopicPaymentUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.remote, func(t *testing.T) {
			f := newEngineFixture(unpaidInvoice())
			out, err := f.engine.ReconcileNotification(context.Background(), payment.Notification{
				ExternalID: "42",
				Status:     tc.remote,
			})
			require.NoError(t, err)
			require.False(t, out.Settled)
			require.Equal(t, tc.status, out.Transaction.Status)
			require.Equal(t, tc.errMsg, out.Transaction.Error)
			require.Equal(t, "10", out.Transaction.GatewayID)

			require.Empty(t, f.ledger.credits)
			require.Empty(t, f.invoices.paid)
			require.Zero(t, f.invoices.gets)
			require.Len(t, f.events.events, 1)
			require.Equal(t, tc.topic, f.events.events[0].topic)
		})
	}
}

func TestNotificationUpdatesExistingTransaction(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())
	existing := payment.Transaction{
		ID:        "tx-existing",
		InvoiceID: "42",
		GatewayID: "10",
		Status:    payment.StatusPending,
		Type:      payment.TransactionTypePayment,
		CreatedAt: fixedNow.Add(-time.Hour),
	}
	f.txs.rows["42"] = existing

	out, err := f.engine.ReconcileNotification(context.Background(), payment.Notification{ExternalID: "42", Status: "EXPIRED"})
	require.NoError(t, err)
	require.False(t, out.Created)
	require.Equal(t, "tx-existing", out.Transaction.ID)
	require.Equal(t, existing.CreatedAt, out.Transaction.CreatedAt)
	require.Equal(t, fixedNow, out.Transaction.UpdatedAt)
}

func TestNotificationMissingExternalID(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())

	_, err := f.engine.ReconcileNotification(context.Background(), payment.Notification{ExternalID: "  ", Status: "PAID"})
	require.Error(t, err)
	require.True(t, payment.IsMalformed(err))
	require.Zero(t, f.txs.finds)
	require.Empty(t, f.txs.saves)
	require.Zero(t, f.invoices.gets)
}

func TestNotificationLedgerFailureSkipsPersist(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())
	f.ledger.err = context.DeadlineExceeded

	_, err := f.engine.ReconcileNotification(context.Background(), payment.Notification{ExternalID: "42", Status: "PAID"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, f.txs.saves)
	require.Empty(t, f.invoices.paid)
	require.Empty(t, f.events.events)
}

func TestSerializedSettlementIsIdempotent(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())
	lock := &memSerializer{}
	f.engine.Serializer = lock

	n := payment.Notification{ExternalID: "42", Status: "PAID", PaidAmount: decimal.NewNullDecimal(decimal.RequireFromString("150000"))}
	first, err := f.engine.ReconcileNotification(context.Background(), n)
	require.NoError(t, err)
	require.True(t, first.Settled)

	second, err := f.engine.ReconcileNotification(context.Background(), n)
	require.NoError(t, err)
	require.False(t, second.Settled)
	require.Equal(t, first.Transaction.ID, second.Transaction.ID)

	res, err := f.engine.CompleteFromRedirect(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, res.AlreadyPaid)

	require.Len(t, f.ledger.credits, 1)
	require.Equal(t, []string{"42"}, f.invoices.paid)
	require.Equal(t, []string{"settle:42", "settle:42"}, lock.keys)
}

func TestLateStatusDoesNotReopenCompleteTransaction(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())
	ctx := context.Background()

	paid, err := f.engine.ReconcileNotification(ctx, payment.Notification{
		ID:         "rmt-1",
		ExternalID: "42",
		Status:     "PAID",
		PaidAmount: decimal.NewNullDecimal(decimal.RequireFromString("150000")),
	})
	require.NoError(t, err)
	require.True(t, paid.Settled)

	for _, remote := range []string{"EXPIRED", "PENDING", "FAILED"} {
		out, err := f.engine.ReconcileNotification(ctx, payment.Notification{ExternalID: "42", Status: remote})
		require.NoError(t, err)
		require.False(t, out.Settled)
		require.Equal(t, payment.StatusComplete, out.Transaction.Status)
	}

	tx := f.txs.rows["42"]
	require.Equal(t, payment.StatusComplete, tx.Status)
	require.Empty(t, tx.Error)
	require.Equal(t, "rmt-1", tx.RemoteTransactionID)
	require.Len(t, f.txs.saves, 1)
	require.Len(t, f.ledger.credits, 1)
	require.True(t, f.invoices.invoices["42"].Paid())
	require.Len(t, f.events.events, 1)
}

func TestRedirectTwiceSettlesOnce(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())
	ctx := context.Background()

	first, err := f.engine.CompleteFromRedirect(ctx, "42")
	require.NoError(t, err)
	require.True(t, first.Settled)

	second, err := f.engine.CompleteFromRedirect(ctx, "42")
	require.NoError(t, err)
	require.True(t, second.AlreadyPaid)
	require.False(t, second.Settled)

	require.Len(t, f.ledger.credits, 1)
	require.Equal(t, []string{"42"}, f.invoices.paid)
	require.Len(t, f.txs.saves, 1)
}

func TestSettlementPaysOutstandingWithCredits(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())

	_, err := f.engine.CompleteFromRedirect(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, []string{"7"}, f.invoices.batches)
}

func TestOutstandingCreditFailureKeepsSettlement(t *testing.T) {
	f := newEngineFixture(unpaidInvoice())
	f.invoices.batchErr = context.DeadlineExceeded

	out, err := f.engine.ReconcileNotification(context.Background(), payment.Notification{ExternalID: "42", Status: "PAID"})
	require.NoError(t, err)
	require.True(t, out.Settled)
	require.Equal(t, payment.StatusComplete, f.txs.rows["42"].Status)
	require.Equal(t, []string{"42"}, f.invoices.paid)
	require.Equal(t, []string{"7"}, f.invoices.batches)
}
