package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "textback_webhooks_received_total",
		Help: "Inbound webhook deliveries by provider and outcome.",
	}, []string{"provider", "outcome"})

	CallsBilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "textback_calls_billed_total",
		Help: "Missed-call billing outcomes.",
	}, []string{"status"})

	DebitCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textback_debit_cents_total",
		Help: "Total cents debited from wallets.",
	})

	CreditCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textback_credit_cents_total",
		Help: "Total cents credited to wallets.",
	})

	AlertsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textback_low_balance_alerts_sent_total",
		Help: "Low-balance notifications actually sent after dedup.",
	})

	ReloadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "textback_auto_reload_attempts_total",
		Help: "Auto-reload attempts by outcome.",
	}, []string{"outcome"})

	OperatorAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textback_operator_alerts_total",
		Help: "High-priority alerts raised for manual reconciliation.",
	})
)
