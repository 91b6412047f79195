package services

import (
	"context"
	"database/sql"
	"errors"

	"textback/internal/config"
	"textback/internal/db"
	"textback/internal/models"
	"textback/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaymentEvent is one verified delivery from the payment provider.
type PaymentEvent struct {
	ProviderEventID    string
	ProviderCustomerID string
	AmountCents        int64
	Currency           string
}

type PaymentEventStore interface {
	RecordEvent(ctx context.Context, tx store.Execer, providerEventID, userID, kind string, amountCents int64) error
	GetCustomerByProviderID(ctx context.Context, providerCustomerID string) (models.PaymentCustomer, error)
}

type CreditInTxLedger interface {
	CreditInTx(ctx context.Context, tx *sqlx.Tx, req LedgerRequest) (store.BalanceRow, error)
	BroadcastAfterCredit(userID string, after store.BalanceRow, amountCents int64)
}

type PaymentNotifier interface {
	PaymentReceived(ctx context.Context, userID, notifyNumber string, creditedCents, balanceCents int64)
	ReloadFailed(ctx context.Context, userID, notifyNumber string)
}

type AutoReloadDisabler interface {
	Get(ctx context.Context, userID string) (models.Wallet, error)
	DisableAutoReload(ctx context.Context, userID string) error
}

// PaymentService applies provider payment webhooks to the ledger. The
// event-id claim and the credit share one transaction, so a redelivered
// webhook either replays fully or not at all and can never double-credit.
type PaymentService struct {
	txRunner db.TxRunner
	events   PaymentEventStore
	ledger   CreditInTxLedger
	wallets  AutoReloadDisabler
	contacts ContactDirectory
	notifier PaymentNotifier
	bonuses  []config.BonusTier
	logger   *logrus.Logger
}

func NewPaymentService(txRunner db.TxRunner, events PaymentEventStore, ledger CreditInTxLedger, wallets AutoReloadDisabler, contacts ContactDirectory, notifier PaymentNotifier, bonuses []config.BonusTier, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		txRunner: txRunner,
		events:   events,
		ledger:   ledger,
		wallets:  wallets,
		contacts: contacts,
		notifier: notifier,
		bonuses:  bonuses,
		logger:   logger,
	}
}

// HandlePaymentSucceeded credits the mapped wallet exactly once per
// provider event id, applying the bonus schedule to the paid amount.
func (s *PaymentService) HandlePaymentSucceeded(ctx context.Context, event PaymentEvent) error {
	log := s.logger.WithFields(logrus.Fields{
		"event_id": event.ProviderEventID,
		"customer": event.ProviderCustomerID,
	})
	if event.AmountCents <= 0 {
		return ErrInvalidAmount
	}

	customer, err := s.events.GetCustomerByProviderID(ctx, event.ProviderCustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Payment for unmapped provider customer, ignoring")
			return nil
		}
		return err
	}

	creditCents := CreditWithBonus(event.AmountCents, s.bonuses)
	ref := "payment-" + event.ProviderEventID
	var after store.BalanceRow
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.events.RecordEvent(ctx, tx, event.ProviderEventID, customer.UserID, "payment_succeeded", event.AmountCents); err != nil {
			return err
		}
		row, err := s.ledger.CreditInTx(ctx, tx, LedgerRequest{
			UserID:      customer.UserID,
			AmountCents: creditCents,
			Description: "Wallet top-up",
			ReferenceID: &ref,
		})
		if err != nil {
			return err
		}
		after = row
		return nil
	})
	if errors.Is(err, store.ErrDuplicateEvent) {
		log.Info("Payment event redelivered, already credited")
		return nil
	}
	if err != nil {
		return err
	}

	s.ledger.BroadcastAfterCredit(customer.UserID, after, creditCents)
	notifyNumber := ""
	if user, err := s.contacts.GetByID(ctx, customer.UserID); err == nil {
		notifyNumber = user.NotifyNumber
	}
	s.notifier.PaymentReceived(ctx, customer.UserID, notifyNumber, creditCents, after.BalanceCents)
	log.WithField("credited_cents", creditCents).Info("Payment credited")
	return nil
}

// HandlePaymentFailed records the event and fails safe: if the account
// has auto-reload on, it is switched off so the system does not keep
// charging a broken payment method.
func (s *PaymentService) HandlePaymentFailed(ctx context.Context, event PaymentEvent) error {
	log := s.logger.WithFields(logrus.Fields{
		"event_id": event.ProviderEventID,
		"customer": event.ProviderCustomerID,
	})

	customer, err := s.events.GetCustomerByProviderID(ctx, event.ProviderCustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Payment failure for unmapped provider customer, ignoring")
			return nil
		}
		return err
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.events.RecordEvent(ctx, tx, event.ProviderEventID, customer.UserID, "payment_failed", event.AmountCents)
	})
	if errors.Is(err, store.ErrDuplicateEvent) {
		return nil
	}
	if err != nil {
		return err
	}

	wallet, err := s.wallets.Get(ctx, customer.UserID)
	if err != nil {
		log.WithError(err).Warn("Wallet lookup failed after payment failure")
		return nil
	}
	if wallet.AutoReloadEnabled {
		if err := s.wallets.DisableAutoReload(ctx, customer.UserID); err != nil {
			log.WithError(err).Error("Failed to disable auto-reload after payment failure")
			return nil
		}
		notifyNumber := ""
		if user, err := s.contacts.GetByID(ctx, customer.UserID); err == nil {
			notifyNumber = user.NotifyNumber
		}
		s.notifier.ReloadFailed(ctx, customer.UserID, notifyNumber)
	}
	return nil
}

// CreditWithBonus applies the first bonus tier the amount qualifies for.
// Tiers are checked highest-first; integer cents in, integer cents out.
func CreditWithBonus(amountCents int64, tiers []config.BonusTier) int64 {
	var pct int64
	for _, tier := range tiers {
		if amountCents >= tier.MinCents {
			pct = tier.BonusPercent
			break
		}
	}
	if pct == 0 {
		return amountCents
	}
	bonus := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	return amountCents + bonus
}
