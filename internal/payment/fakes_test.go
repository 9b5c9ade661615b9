package payment_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/billing-xendit/internal/payment"
)

type fakeInvoices struct {
	mu       sync.Mutex
	invoices map[string]payment.Invoice
	items    map[string][]payment.InvoiceItem
	paid     []string
	gets     int
	batches  []string
	batchErr error
}

func newFakeInvoices(invs ...payment.Invoice) *fakeInvoices {
	f := &fakeInvoices{invoices: map[string]payment.Invoice{}, items: map[string][]payment.InvoiceItem{}}
	for _, inv := range invs {
		f.invoices[inv.ID] = inv
	}
	return f
}

func (f *fakeInvoices) Get(_ context.Context, id string) (payment.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	inv, ok := f.invoices[id]
	if !ok {
		return payment.Invoice{}, fmt.Errorf("%w: %s", payment.ErrInvoiceNotFound, id)
	}
	return inv, nil
}

func (f *fakeInvoices) Items(_ context.Context, id string) ([]payment.InvoiceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id], nil
}

func (f *fakeInvoices) TotalWithTax(_ context.Context, inv payment.Invoice) (decimal.Decimal, error) {
	return inv.Total, nil
}

func (f *fakeInvoices) MarkPaid(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv := f.invoices[id]
	inv.Status = payment.InvoiceStatusPaid
	f.invoices[id] = inv
	f.paid = append(f.paid, id)
	return nil
}

func (f *fakeInvoices) PayOutstandingWithCredits(_ context.Context, clientID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, clientID)
	return 0, f.batchErr
}

type credit struct {
	clientID string
	amount   decimal.Decimal
	note     string
	ref      payment.FundsReference
}

type fakeLedger struct {
	mu      sync.Mutex
	credits []credit
	err     error
}

func (f *fakeLedger) AddFunds(_ context.Context, clientID string, amount decimal.Decimal, note string, ref payment.FundsReference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.credits = append(f.credits, credit{clientID: clientID, amount: amount, note: note, ref: ref})
	return nil
}

type fakeTransactions struct {
	mu    sync.Mutex
	rows  map[string]payment.Transaction
	saves []payment.Transaction
	finds int
}

func newFakeTransactions() *fakeTransactions {
	return &fakeTransactions{rows: map[string]payment.Transaction{}}
}

func (f *fakeTransactions) FindByInvoice(_ context.Context, invoiceID string) (payment.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	tx, ok := f.rows[invoiceID]
	return tx, ok, nil
}

func (f *fakeTransactions) Save(_ context.Context, tx payment.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[tx.InvoiceID] = tx
	f.saves = append(f.saves, tx)
	return nil
}

type memSerializer struct {
	mu   sync.Mutex
	keys []string
}

func (m *memSerializer) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return fn(ctx)
}

type emitted struct {
	topic   string
	key     string
	payload map[string]any
}

type captureEvents struct {
	mu     sync.Mutex
	events []emitted
}

func (c *captureEvents) Emit(_ context.Context, topic, key string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, _ := payload.(map[string]any)
	c.events = append(c.events, emitted{topic: topic, key: key, payload: p})
	return nil
}

type fakeCreator struct {
	req  payment.InvoiceRequest
	resp payment.RemoteInvoice
	err  error
}

func (f *fakeCreator) CreateInvoice(_ context.Context, req payment.InvoiceRequest) (payment.RemoteInvoice, error) {
	f.req = req
	return f.resp, f.err
}

func unpaidInvoice() payment.Invoice {
	return payment.Invoice{
		ID:         "42",
		Hash:       "h4sh",
		Serie:      "INV",
		Number:     "0042",
		Status:     "unpaid",
		Total:      decimal.RequireFromString("150000.00"),
		Currency:   "IDR",
		ClientID:   "7",
		BuyerEmail: "payer@example.com",
	}
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
