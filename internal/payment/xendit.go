package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/billing-xendit/internal/resilience"
)

const (
	// DefaultBaseURL is the live and sandbox Xendit API host; the API key selects the mode.
	DefaultBaseURL = "https://api.xendit.co"

	invoicePath        = "/v2/invoices"
	maxDescriptionLen  = 255
	descriptionCutoff  = 252
	maxResponseBytes   = 1 << 20
	defaultItemTitles  = 10
	descriptionDivider = " | "
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// InvoiceRequest is the outbound body of a Xendit invoice creation call.
type InvoiceRequest struct {
	ExternalID         string          `json:"external_id" validate:"required"`
	Amount             decimal.Decimal `json:"-"`
	PayerEmail         string          `json:"payer_email,omitempty" validate:"omitempty,email"`
	Description        string          `json:"description" validate:"max=255"`
	SuccessRedirectURL string          `json:"success_redirect_url" validate:"required,url"`
	FailureRedirectURL string          `json:"failure_redirect_url" validate:"required,url"`
	Currency           string          `json:"currency" validate:"required"`
}

// MarshalJSON encodes Amount as a JSON number, which the invoice API requires.
func (r InvoiceRequest) MarshalJSON() ([]byte, error) {
	type wire InvoiceRequest
	return json.Marshal(struct {
		wire
		Amount json.Number `json:"amount"`
	}{wire: wire(r), Amount: json.Number(r.Amount.StringFixed(2))})
}

// RemoteInvoice is the parsed Xendit response. Raw keeps every field returned.
type RemoteInvoice struct {
	ID         string
	InvoiceURL string
	Status     string
	ExpiryDate string
	Raw        map[string]any
}

// Xendit creates invoices through the Xendit REST API.
type Xendit struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

// CreateInvoice posts req to the invoice endpoint using HTTP Basic auth with the API
// key as username and an empty password.
func (x Xendit) CreateInvoice(ctx context.Context, req InvoiceRequest) (RemoteInvoice, error) {
	if err := validate.Struct(req); err != nil {
		return RemoteInvoice{}, err
	}
	if !req.Amount.IsPositive() {
		return RemoteInvoice{}, errors.New("invoice amount must be positive")
	}
	endpoint := x.endpoint()
	body, err := json.Marshal(req)
	if err != nil {
		return RemoteInvoice{}, err
	}
	x.Logger.Info().RawJSON("payload", body).Str("endpoint", endpoint).Msg("creating xendit invoice")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return RemoteInvoice{}, &GatewayCommunicationError{Endpoint: endpoint, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(x.APIKey, "")

	resp, err := x.HTTP.Do(ctx, httpReq)
	if err != nil {
		x.Logger.Error().Err(err).Str("endpoint", endpoint).Msg("xendit api error")
		return RemoteInvoice{}, &GatewayCommunicationError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		x.Logger.Error().Err(err).Str("endpoint", endpoint).Msg("read xendit response")
		return RemoteInvoice{}, &GatewayCommunicationError{Endpoint: endpoint, Err: err}
	}
	invoice, err := parseInvoiceResponse(resp.StatusCode, raw)
	if err != nil {
		x.Logger.Error().Int("status", resp.StatusCode).Str("response", string(raw)).Msg("invalid xendit response")
		return RemoteInvoice{}, err
	}
	x.Logger.Info().Str("remote_id", invoice.ID).Str("response", string(raw)).Msg("xendit invoice created")
	return invoice, nil
}

func (x Xendit) endpoint() string {
	host := strings.TrimRight(strings.TrimSpace(x.BaseURL), "/")
	if host == "" {
		host = DefaultBaseURL
	}
	return host + invoicePath
}

func parseInvoiceResponse(status int, raw []byte) (RemoteInvoice, error) {
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return RemoteInvoice{}, newInvalidResponse(status, raw)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return RemoteInvoice{}, newInvalidResponse(status, raw)
	}
	invoiceURL, _ := fields["invoice_url"].(string)
	if strings.TrimSpace(invoiceURL) == "" {
		return RemoteInvoice{}, newInvalidResponse(status, raw)
	}
	id, _ := fields["id"].(string)
	remoteStatus, _ := fields["status"].(string)
	expiry, _ := fields["expiry_date"].(string)
	return RemoteInvoice{
		ID:         id,
		InvoiceURL: invoiceURL,
		Status:     remoteStatus,
		ExpiryDate: expiry,
		Raw:        fields,
	}, nil
}

// BuildDescription renders "Invoice <serie><nr> | title | ..." using at most
// maxTitles item titles. Results over 255 characters keep their first 252
// characters followed by "...".
func BuildDescription(inv Invoice, items []InvoiceItem, maxTitles int) string {
	if maxTitles <= 0 {
		maxTitles = defaultItemTitles
	}
	var b strings.Builder
	b.WriteString("Invoice ")
	b.WriteString(inv.Serie)
	b.WriteString(inv.Number)
	for i, item := range items {
		if i >= maxTitles {
			break
		}
		b.WriteString(descriptionDivider)
		b.WriteString(item.Title)
	}
	description := []rune(b.String())
	if len(description) > maxDescriptionLen {
		return string(description[:descriptionCutoff]) + "..."
	}
	return string(description)
}
