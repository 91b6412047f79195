package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"textback/internal/metrics"
	"textback/internal/money"

	"github.com/sirupsen/logrus"
)

// Notifier fans user-facing and operator-facing alerts out to their
// channels. Users get SMS; operators get a structured log line, a metric,
// and optionally a POST to an ops webhook. Users never see raw internal
// errors through any of these paths.
type Notifier struct {
	messenger     Messenger
	serviceNumber string
	opsWebhookURL string
	client        *http.Client
	logger        *logrus.Logger
}

func NewNotifier(messenger Messenger, serviceNumber, opsWebhookURL string, logger *logrus.Logger) *Notifier {
	return &Notifier{
		messenger:     messenger,
		serviceNumber: serviceNumber,
		opsWebhookURL: opsWebhookURL,
		client:        &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
	}
}

func (n *Notifier) LowBalance(ctx context.Context, userID, notifyNumber string, balanceCents, levelCents int64) {
	body := fmt.Sprintf(
		"Your textback balance has dropped to $%s (below your $%s alert level). Top up to keep replying to missed calls.",
		money.FormatCents(balanceCents), money.FormatCents(levelCents))
	n.sendToUser(ctx, userID, notifyNumber, body, "low balance alert")
	metrics.AlertsSent.Inc()
}

func (n *Notifier) ReloadSucceeded(ctx context.Context, userID, notifyNumber string, amountCents, balanceCents int64) {
	body := fmt.Sprintf("Auto-reload added $%s to your textback wallet. New balance: $%s.",
		money.FormatCents(amountCents), money.FormatCents(balanceCents))
	n.sendToUser(ctx, userID, notifyNumber, body, "auto-reload receipt")
}

func (n *Notifier) ReloadFailed(ctx context.Context, userID, notifyNumber string) {
	body := "We couldn't charge your saved card, so auto-reload has been turned off. Please update your payment method."
	n.sendToUser(ctx, userID, notifyNumber, body, "auto-reload failure notice")
}

func (n *Notifier) PaymentReceived(ctx context.Context, userID, notifyNumber string, creditedCents, balanceCents int64) {
	body := fmt.Sprintf("Payment received. $%s credited to your textback wallet. New balance: $%s.",
		money.FormatCents(creditedCents), money.FormatCents(balanceCents))
	n.sendToUser(ctx, userID, notifyNumber, body, "payment receipt")
}

// OperatorAlert is the high-priority path for service-rendered-but-not-
// charged failures. Distinct from user alerts: it pages the operator and
// must never be silently swallowed.
func (n *Notifier) OperatorAlert(ctx context.Context, userID, reference string, cause error) {
	n.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"reference": reference,
		"error":     cause,
	}).Error("Billing failed after service was rendered; manual reconciliation required")
	metrics.OperatorAlerts.Inc()

	if n.opsWebhookURL == "" {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"severity":  "high",
		"user_id":   userID,
		"reference": reference,
		"error":     cause.Error(),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opsWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.WithError(err).Warn("Failed to deliver operator alert to ops webhook")
		return
	}
	_ = resp.Body.Close()
}

func (n *Notifier) sendToUser(ctx context.Context, userID, notifyNumber, body, kind string) {
	if notifyNumber == "" {
		n.logger.WithField("user_id", userID).Warn("No notify number configured, skipping " + kind)
		return
	}
	if _, err := n.messenger.Send(ctx, n.serviceNumber, notifyNumber, body); err != nil {
		n.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err,
		}).Warn("Failed to send " + kind)
	}
}
