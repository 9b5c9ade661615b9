package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/billing-xendit/internal/common"
	"github.com/noah-isme/billing-xendit/internal/obs"
)

// Redirector completes a payment from the browser return.
type Redirector interface {
	CompleteFromRedirect(ctx context.Context, invoiceID string) (RedirectResult, error)
}

// Handler exposes the checkout form and the browser return endpoints.
type Handler struct {
	Checkout      *Checkout
	Redirect      Redirector
	PublicBaseURL string
	Logger        zerolog.Logger
}

// Pay renders the auto-submitting Xendit form for the invoice in the URL.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Checkout == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	invoiceID := strings.TrimSpace(chi.URLParam(r, "invoiceId"))
	if invoiceID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invoiceId is required", nil)
		return
	}
	form, _, err := h.Checkout.PaymentForm(r.Context(), invoiceID)
	if err != nil {
		h.writeCheckoutError(w, invoiceID, err)
		return
	}
	common.HTML(w, http.StatusOK, form)
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, invoiceID string, err error) {
	var (
		commErr    *GatewayCommunicationError
		invalidErr *InvalidGatewayResponseError
	)
	switch {
	case errors.Is(err, ErrInvoiceNotFound):
		common.WriteError(w, common.NotFound("INVOICE_NOT_FOUND", "invoice not found", err))
	case errors.Is(err, ErrInvoiceAlreadyPaid):
		common.WriteError(w, common.Conflict("INVOICE_ALREADY_PAID", "invoice already paid", err))
	case errors.As(err, &commErr):
		h.Logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("xendit unreachable")
		common.WriteError(w, common.BadGateway("GATEWAY_UNAVAILABLE", "payment gateway unavailable", err))
	case errors.As(err, &invalidErr):
		h.Logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("xendit rejected invoice")
		common.WriteError(w, common.BadGateway("INVALID_GATEWAY_RESPONSE", "payment gateway rejected the invoice", err))
	default:
		h.Logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("checkout failed")
		common.WriteError(w, err)
	}
}

type redirectResp struct {
	Status      string `json:"status"`
	InvoiceID   string `json:"invoiceId"`
	AlreadyPaid bool   `json:"alreadyPaid,omitempty"`
}

// Return handles the payer coming back from the hosted invoice page.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Redirect == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	invoiceID := strings.TrimSpace(r.URL.Query().Get("bb_invoice_id"))
	if invoiceID == "" {
		obs.CountRedirect(GatewayName, "bad_request")
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "bb_invoice_id is required", nil)
		return
	}
	res, err := h.Redirect.CompleteFromRedirect(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			obs.CountRedirect(GatewayName, "not_found")
			common.WriteError(w, common.NotFound("INVOICE_NOT_FOUND", "invoice not found", err))
			return
		}
		h.Logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("redirect settlement failed")
		obs.CountRedirect(GatewayName, "error")
		common.WriteError(w, err)
		return
	}
	result := "settled"
	if res.AlreadyPaid {
		result = "already_paid"
	}
	obs.CountRedirect(GatewayName, result)

	if base := strings.TrimSpace(h.PublicBaseURL); base != "" {
		http.Redirect(w, r, ThankYouPageURL(base, res.Invoice.Hash), http.StatusSeeOther)
		return
	}
	common.JSON(w, http.StatusOK, redirectResp{Status: InvoiceStatusPaid, InvoiceID: invoiceID, AlreadyPaid: res.AlreadyPaid})
}
