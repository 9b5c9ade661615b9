package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/billing-xendit/internal/common"
	"github.com/noah-isme/billing-xendit/internal/obs"
)

// Reconciler applies a decoded notification.
type Reconciler interface {
	ReconcileNotification(ctx context.Context, n Notification) (Outcome, error)
}

// Webhook handles Xendit invoice callbacks: token check, optional replay guard,
// then reconciliation.
type Webhook struct {
	Engine    Reconciler
	Auth      WebhookAuthenticator
	Replay    ReplayStore
	ReplayTTL time.Duration
	// Logger receives authentication failures and internal faults.
	Logger zerolog.Logger
	// Diagnostics receives raw bodies and is silent unless gateway logging is enabled.
	Diagnostics zerolog.Logger
}

type webhookAck struct {
	Status  string `json:"status"`
	Settled bool   `json:"settled,omitempty"`
}

// Handle answers 200 on success or acknowledgement, 400 for a malformed body, 403 for
// a bad callback token and 500 for internal faults. A notification for an unknown
// invoice is acknowledged with status "ignored".
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.Logger.Error().Interface("panic", rec).Msg("xendit webhook panic")
			obs.CountWebhook(GatewayName, "error")
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		}
	}()
	if h.Engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	if !h.Auth.Verify(r.Header.Get(CallbackTokenHeader)) {
		h.Logger.Warn().Str("ip", common.ClientIP(r)).Msg("xendit webhook rejected: invalid callback token")
		obs.CountWebhook(GatewayName, "unauthorized")
		common.JSONError(w, http.StatusForbidden, "INVALID_CALLBACK_TOKEN", ErrAuthentication.Error(), nil)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	h.Diagnostics.Info().Str("body", string(body)).Msg("xendit webhook received")

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		obs.CountWebhook(GatewayName, "malformed")
		common.JSONError(w, http.StatusBadRequest, "MALFORMED_NOTIFICATION", "invalid json payload", nil)
		return
	}

	ctx := r.Context()
	replayKey := ""
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := "wh:xendit:" + common.Digest(body)
		first, err := h.Replay.Claim(ctx, key, h.ReplayTTL)
		if err != nil {
			h.Logger.Error().Err(err).Msg("xendit webhook replay store")
			obs.CountWebhook(GatewayName, "error")
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay store unavailable", nil)
			return
		}
		if !first {
			obs.CountWebhook(GatewayName, "duplicate")
			common.JSON(w, http.StatusOK, webhookAck{Status: "duplicate"})
			return
		}
		replayKey = key
	}

	outcome, err := h.Engine.ReconcileNotification(ctx, n)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			// Redelivery cannot succeed, so the notification is acknowledged.
			h.Logger.Warn().Err(err).Str("invoice_id", n.ExternalID).Msg("xendit webhook for unknown invoice ignored")
			obs.CountWebhook(GatewayName, "ignored")
			common.JSON(w, http.StatusOK, webhookAck{Status: "ignored"})
			return
		}
		if replayKey != "" {
			if relErr := h.Replay.Release(context.WithoutCancel(ctx), replayKey); relErr != nil {
				h.Logger.Warn().Err(relErr).Msg("release webhook replay key")
			}
		}
		if IsMalformed(err) {
			obs.CountWebhook(GatewayName, "malformed")
			common.JSONError(w, http.StatusBadRequest, "MALFORMED_NOTIFICATION", err.Error(), nil)
			return
		}
		h.Logger.Error().Err(err).Str("invoice_id", n.ExternalID).Msg("xendit webhook processing failed")
		obs.CountWebhook(GatewayName, "error")
		common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_PROCESSING_FAILED", "unable to process notification", nil)
		return
	}
	obs.CountWebhook(GatewayName, string(outcome.Transaction.Status))
	common.JSON(w, http.StatusOK, webhookAck{Status: string(outcome.Transaction.Status), Settled: outcome.Settled})
}
