package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"textback/internal/models"
)

type reloadFixture struct {
	svc       *ReloadService
	wallets   *stubWalletStore
	txns      *stubTxnStore
	customers *stubCustomerStore
	ledger    *stubLedger
	charger   *stubCharger
	notifier  *stubNotifier
}

func newReloadFixture() *reloadFixture {
	fixture := &reloadFixture{
		wallets: &stubWalletStore{
			getFn: func(ctx context.Context, userID string) (models.Wallet, error) {
				return models.Wallet{
					UserID:                   userID,
					BalanceCents:             200,
					Currency:                 "USD",
					AutoReloadEnabled:        true,
					AutoReloadThresholdCents: 500,
					AutoReloadAmountCents:    2000,
				}, nil
			},
		},
		txns: &stubTxnStore{},
		customers: &stubCustomerStore{
			getByUserFn: func(ctx context.Context, userID string) (models.PaymentCustomer, error) {
				return models.PaymentCustomer{
					UserID:             userID,
					ProviderCustomerID: "cus_123",
					PaymentMethodRef:   "pm_123",
				}, nil
			},
		},
		ledger:   &stubLedger{},
		charger:  &stubCharger{},
		notifier: &stubNotifier{},
	}
	fixture.ledger.creditFn = func(ctx context.Context, req LedgerRequest) (int64, error) {
		return 200 + req.AmountCents, nil
	}
	contacts := &stubUserDirectory{}
	fixture.svc = NewReloadService(
		fixture.wallets, fixture.txns, fixture.customers, fixture.ledger,
		fixture.charger, fixture.notifier, contacts,
		10*time.Minute, testLogger(),
	)
	return fixture
}

func TestMaybeReloadChargesAndCredits(t *testing.T) {
	fixture := newReloadFixture()
	fixture.svc.MaybeReload(context.Background(), "user-1")
	if fixture.charger.charges != 1 {
		t.Fatalf("expected one charge, got %d", fixture.charger.charges)
	}
	if len(fixture.ledger.credits) != 1 {
		t.Fatalf("expected one credit, got %d", len(fixture.ledger.credits))
	}
	credit := fixture.ledger.credits[0]
	if credit.AmountCents != 2000 {
		t.Fatalf("expected credit of 2000, got %d", credit.AmountCents)
	}
	if credit.ReferenceID == nil || *credit.ReferenceID != "reload-ch-1" {
		t.Fatal("credit must reference the charge id")
	}
	if fixture.notifier.reloadSuccesses != 1 {
		t.Fatal("expected a success notification")
	}
}

func TestMaybeReloadSkipsWhenDisabled(t *testing.T) {
	fixture := newReloadFixture()
	fixture.wallets.getFn = func(ctx context.Context, userID string) (models.Wallet, error) {
		return models.Wallet{UserID: userID, BalanceCents: 200}, nil
	}
	fixture.svc.MaybeReload(context.Background(), "user-1")
	if fixture.charger.charges != 0 {
		t.Fatal("disabled auto-reload must not charge")
	}
}

func TestMaybeReloadSkipsAboveThreshold(t *testing.T) {
	fixture := newReloadFixture()
	fixture.wallets.getFn = func(ctx context.Context, userID string) (models.Wallet, error) {
		return models.Wallet{
			UserID:                   userID,
			BalanceCents:             800,
			AutoReloadEnabled:        true,
			AutoReloadThresholdCents: 500,
			AutoReloadAmountCents:    2000,
		}, nil
	}
	fixture.svc.MaybeReload(context.Background(), "user-1")
	if fixture.charger.charges != 0 {
		t.Fatal("balance above threshold must not charge")
	}
}

func TestMaybeReloadSkipsWithinRecentWindow(t *testing.T) {
	fixture := newReloadFixture()
	fixture.txns.hasRecentFn = func(ctx context.Context, userID string, window time.Duration) (bool, error) {
		return true, nil
	}
	fixture.svc.MaybeReload(context.Background(), "user-1")
	if fixture.charger.charges != 0 {
		t.Fatal("a recent reload credit must suppress another charge")
	}
}

func TestMaybeReloadSkipsWithoutSavedCard(t *testing.T) {
	fixture := newReloadFixture()
	fixture.customers.getByUserFn = func(ctx context.Context, userID string) (models.PaymentCustomer, error) {
		return models.PaymentCustomer{}, sql.ErrNoRows
	}
	fixture.svc.MaybeReload(context.Background(), "user-1")
	if fixture.charger.charges != 0 {
		t.Fatal("no saved payment method, no charge")
	}
}

func TestMaybeReloadChargeFailureDisables(t *testing.T) {
	fixture := newReloadFixture()
	fixture.charger.chargeFn = func(ctx context.Context, customerID, methodRef string, amountCents int64, currency string) (string, error) {
		return "", errors.New("card declined")
	}
	fixture.svc.MaybeReload(context.Background(), "user-1")
	if fixture.wallets.disabled != 1 {
		t.Fatal("a declined charge must disable auto-reload")
	}
	if fixture.notifier.reloadFailures != 1 {
		t.Fatal("expected a failure notification")
	}
	if len(fixture.ledger.credits) != 0 {
		t.Fatal("a failed charge must not credit")
	}
}

func TestMaybeReloadCreditFailurePagesOperator(t *testing.T) {
	fixture := newReloadFixture()
	fixture.ledger.creditFn = func(ctx context.Context, req LedgerRequest) (int64, error) {
		return 0, errors.New("connection reset")
	}
	fixture.svc.MaybeReload(context.Background(), "user-1")
	// The card was charged but the wallet was not credited.
	if len(fixture.notifier.operatorAlerts) != 1 {
		t.Fatal("a charge without a credit must page the operator")
	}
	if fixture.notifier.reloadSuccesses != 0 {
		t.Fatal("no success notification on a failed credit")
	}
}
