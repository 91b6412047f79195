package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// Charger charges a saved payment method off-session. Any error means
// "not charged": callers must not credit the ledger on error.
type Charger interface {
	Charge(ctx context.Context, customerRef, paymentMethodRef string, amountCents int64, currency string) (string, error)
}

// StripeCharger drives off-session PaymentIntents for auto-reload.
type StripeCharger struct {
	logger *logrus.Logger
}

func NewStripeCharger(secretKey string, logger *logrus.Logger) *StripeCharger {
	stripe.Key = secretKey
	return &StripeCharger{logger: logger}
}

func (c *StripeCharger) Charge(ctx context.Context, customerRef, paymentMethodRef string, amountCents int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(strings.ToLower(currency)),
		Customer:      stripe.String(customerRef),
		PaymentMethod: stripe.String(paymentMethodRef),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to charge saved payment method: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("payment intent %s in status %s", intent.ID, intent.Status)
	}

	c.logger.WithFields(logrus.Fields{
		"payment_intent": intent.ID,
		"amount_cents":   amountCents,
	}).Info("Charged saved payment method")
	return intent.ID, nil
}
