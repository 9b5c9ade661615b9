package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// InvoiceCreateTotal counts remote invoice creation attempts by outcome.
	InvoiceCreateTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhooks by outcome.
	PaymentWebhookTotal *prometheus.CounterVec
	// SettlementTotal counts settlement attempts by entry path and outcome.
	SettlementTotal *prometheus.CounterVec
	// RedirectTotal counts browser return callbacks by outcome.
	RedirectTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers gateway Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		InvoiceCreateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_invoice_create_total",
			Help:      "Count of remote invoice creation outcomes.",
		}, []string{"provider", "result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"provider", "result"})
		SettlementTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_settlement_total",
			Help:      "Count of invoice settlements by entry path and outcome.",
		}, []string{"path", "result"})
		RedirectTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_redirect_total",
			Help:      "Count of payer return callbacks by outcome.",
		}, []string{"provider", "result"})

		mustRegisterCollector(reg, InvoiceCreateTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoiceCreateTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentWebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentWebhookTotal = v
			}
		})
		mustRegisterCollector(reg, SettlementTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SettlementTotal = v
			}
		})
		mustRegisterCollector(reg, RedirectTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RedirectTotal = v
			}
		})
	})
}

// CountInvoiceCreate increments InvoiceCreateTotal when registered.
func CountInvoiceCreate(provider, result string) {
	if InvoiceCreateTotal != nil {
		InvoiceCreateTotal.WithLabelValues(provider, result).Inc()
	}
}

// CountWebhook increments PaymentWebhookTotal when registered.
func CountWebhook(provider, result string) {
	if PaymentWebhookTotal != nil {
		PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}

// CountSettlement increments SettlementTotal when registered.
func CountSettlement(path, result string) {
	if SettlementTotal != nil {
		SettlementTotal.WithLabelValues(path, result).Inc()
	}
}

// CountRedirect increments RedirectTotal when registered.
func CountRedirect(provider, result string) {
	if RedirectTotal != nil {
		RedirectTotal.WithLabelValues(provider, result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
