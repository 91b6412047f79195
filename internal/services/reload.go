package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"textback/internal/metrics"
	"textback/internal/models"
	"textback/internal/payments"

	"github.com/sirupsen/logrus"
)

type ReloadWalletStore interface {
	Get(ctx context.Context, userID string) (models.Wallet, error)
	DisableAutoReload(ctx context.Context, userID string) error
}

type ReloadTxnStore interface {
	HasRecentAutoReload(ctx context.Context, userID string, window time.Duration) (bool, error)
}

type CustomerStore interface {
	GetCustomerByUser(ctx context.Context, userID string) (models.PaymentCustomer, error)
}

type CreditLedger interface {
	Credit(ctx context.Context, req LedgerRequest) (int64, error)
}

type ReloadNotifier interface {
	ReloadSucceeded(ctx context.Context, userID, notifyNumber string, amountCents, balanceCents int64)
	ReloadFailed(ctx context.Context, userID, notifyNumber string)
	OperatorAlert(ctx context.Context, userID, reference string, cause error)
}

type ContactDirectory interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
}

// ReloadService tops a wallet up from the saved card when the balance
// dips under the configured threshold. It is invoked as a post-debit hook
// and may fire concurrently for the same user; the recent-credit window
// keeps one dip from producing two charges.
type ReloadService struct {
	wallets   ReloadWalletStore
	txns      ReloadTxnStore
	customers CustomerStore
	ledger    CreditLedger
	charger   payments.Charger
	notifier  ReloadNotifier
	contacts  ContactDirectory
	window    time.Duration
	logger    *logrus.Logger
}

func NewReloadService(wallets ReloadWalletStore, txns ReloadTxnStore, customers CustomerStore, ledger CreditLedger, charger payments.Charger, notifier ReloadNotifier, contacts ContactDirectory, window time.Duration, logger *logrus.Logger) *ReloadService {
	return &ReloadService{
		wallets:   wallets,
		txns:      txns,
		customers: customers,
		ledger:    ledger,
		charger:   charger,
		notifier:  notifier,
		contacts:  contacts,
		window:    window,
		logger:    logger,
	}
}

func (s *ReloadService) MaybeReload(ctx context.Context, userID string) {
	log := s.logger.WithField("user_id", userID)

	wallet, err := s.wallets.Get(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Auto-reload wallet lookup failed")
		return
	}
	if !wallet.AutoReloadEnabled || wallet.AutoReloadAmountCents <= 0 {
		return
	}
	if wallet.BalanceCents >= wallet.AutoReloadThresholdCents {
		return
	}

	recent, err := s.txns.HasRecentAutoReload(ctx, userID, s.window)
	if err != nil {
		log.WithError(err).Warn("Auto-reload recency check failed")
		return
	}
	if recent {
		// Same dip, another invocation already handled it.
		return
	}

	customer, err := s.customers.GetCustomerByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("Auto-reload enabled but no saved payment method")
			return
		}
		log.WithError(err).Warn("Auto-reload customer lookup failed")
		return
	}

	notifyNumber := ""
	if user, err := s.contacts.GetByID(ctx, userID); err == nil {
		notifyNumber = user.NotifyNumber
	}

	chargeID, err := s.charger.Charge(ctx, customer.ProviderCustomerID, customer.PaymentMethodRef, wallet.AutoReloadAmountCents, wallet.Currency)
	if err != nil {
		// Fail safe: a failing card gets auto-reload switched off rather
		// than retried in a loop.
		log.WithError(err).Warn("Auto-reload charge failed, disabling auto-reload")
		if disableErr := s.wallets.DisableAutoReload(ctx, userID); disableErr != nil {
			log.WithError(disableErr).Error("Failed to disable auto-reload after charge failure")
		}
		s.notifier.ReloadFailed(ctx, userID, notifyNumber)
		metrics.ReloadAttempts.WithLabelValues("charge_failed").Inc()
		return
	}

	ref := "reload-" + chargeID
	balance, err := s.ledger.Credit(ctx, LedgerRequest{
		UserID:      userID,
		AmountCents: wallet.AutoReloadAmountCents,
		Description: "Auto reload",
		ReferenceID: &ref,
	})
	if err != nil {
		// The card was charged but the wallet was not credited. This
		// needs a human; it must not be dropped.
		s.notifier.OperatorAlert(ctx, userID, ref, err)
		metrics.ReloadAttempts.WithLabelValues("credit_failed").Inc()
		return
	}

	log.WithFields(logrus.Fields{
		"charge_id":     chargeID,
		"amount_cents":  wallet.AutoReloadAmountCents,
		"balance_cents": balance,
	}).Info("Auto-reload completed")
	s.notifier.ReloadSucceeded(ctx, userID, notifyNumber, wallet.AutoReloadAmountCents, balance)
	metrics.ReloadAttempts.WithLabelValues("succeeded").Inc()
}
