package payment

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/billing-xendit/internal/obs"
)

// ReturnPath is the redirect callback route the payer's browser comes back to.
const ReturnPath = "/api/v1/payments/xendit/return"

// Checkout opens remote invoices for local invoices and renders the payment form.
type Checkout struct {
	Invoices        InvoiceService
	Creator         InvoiceCreator
	GatewayID       string
	CallbackBaseURL string
	PublicBaseURL   string
	MaxItemTitles   int
	Logger          zerolog.Logger
}

// PaymentForm creates a Xendit invoice for invoiceID and returns the self-submitting
// form that forwards the payer to it.
func (c *Checkout) PaymentForm(ctx context.Context, invoiceID string) (template.HTML, RemoteInvoice, error) {
	if c == nil || c.Invoices == nil || c.Creator == nil {
		return "", RemoteInvoice{}, errors.New("checkout not configured")
	}
	ctx, span := otel.Tracer("payment.Checkout").Start(ctx, "Checkout.PaymentForm")
	defer span.End()

	start := time.Now()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", GatewayName),
			attribute.Float64("payment.invoice.duration_ms", obs.DurationMillis(time.Since(start))),
			attribute.String("payment.invoice.result", result),
		)
		obs.CountInvoiceCreate(GatewayName, result)
	}()

	invoiceID = strings.TrimSpace(invoiceID)
	span.SetAttributes(attribute.String("invoice.id", invoiceID))
	inv, err := c.Invoices.Get(ctx, invoiceID)
	if err != nil {
		return "", RemoteInvoice{}, err
	}
	if inv.Paid() {
		result = "already_paid"
		return "", RemoteInvoice{}, ErrInvoiceAlreadyPaid
	}
	items, err := c.Invoices.Items(ctx, invoiceID)
	if err != nil {
		return "", RemoteInvoice{}, fmt.Errorf("load invoice items: %w", err)
	}
	total, err := c.Invoices.TotalWithTax(ctx, inv)
	if err != nil {
		return "", RemoteInvoice{}, fmt.Errorf("compute invoice total: %w", err)
	}

	req := InvoiceRequest{
		ExternalID:         inv.ID,
		Amount:             total,
		PayerEmail:         strings.TrimSpace(inv.BuyerEmail),
		Description:        BuildDescription(inv, items, c.MaxItemTitles),
		SuccessRedirectURL: c.successURL(inv.ID),
		FailureRedirectURL: c.failureURL(inv.Hash),
		Currency:           inv.Currency,
	}
	remote, err := c.Creator.CreateInvoice(ctx, req)
	if err != nil {
		span.RecordError(err)
		return "", RemoteInvoice{}, err
	}
	span.SetAttributes(attribute.String("payment.remote_id", remote.ID))

	form, err := RenderForm(remote.InvoiceURL, inv.ID)
	if err != nil {
		return "", RemoteInvoice{}, err
	}
	result = "success"
	c.Logger.Info().Str("invoice_id", inv.ID).Str("remote_id", remote.ID).Msg("payment form rendered")
	return form, remote, nil
}

func (c *Checkout) successURL(invoiceID string) string {
	q := url.Values{}
	q.Set("bb_invoice_id", invoiceID)
	q.Set("gateway_id", c.GatewayID)
	return strings.TrimRight(c.CallbackBaseURL, "/") + ReturnPath + "?" + q.Encode()
}

// InvoicePageURL is the billing portal page for an invoice hash.
func InvoicePageURL(publicBase, hash string) string {
	return strings.TrimRight(publicBase, "/") + "/invoice/" + url.PathEscape(hash)
}

// ThankYouPageURL is where a settled payer lands after the redirect callback.
func ThankYouPageURL(publicBase, hash string) string {
	return strings.TrimRight(publicBase, "/") + "/invoice/thank-you/" + url.PathEscape(hash)
}

func (c *Checkout) failureURL(hash string) string {
	return InvoicePageURL(c.PublicBaseURL, hash)
}
