package services

import (
	"context"
	"database/sql"
	"testing"

	"textback/internal/config"
	"textback/internal/models"
	"textback/internal/store"
)

var testBonuses = []config.BonusTier{
	{MinCents: 5000, BonusPercent: 20},
	{MinCents: 3000, BonusPercent: 15},
	{MinCents: 1000, BonusPercent: 10},
}

type paymentFixture struct {
	svc      *PaymentService
	events   *stubPaymentEventStore
	ledger   *stubCreditInTxLedger
	wallets  *stubWalletStore
	notifier *stubNotifier
}

func newPaymentFixture() *paymentFixture {
	fixture := &paymentFixture{
		events: &stubPaymentEventStore{
			getCustomerFn: func(ctx context.Context, providerCustomerID string) (models.PaymentCustomer, error) {
				return models.PaymentCustomer{UserID: "user-1", ProviderCustomerID: providerCustomerID}, nil
			},
		},
		ledger:   &stubCreditInTxLedger{},
		wallets:  &stubWalletStore{},
		notifier: &stubNotifier{},
	}
	contacts := &stubUserDirectory{}
	fixture.svc = NewPaymentService(
		stubTxRunner{}, fixture.events, fixture.ledger, fixture.wallets,
		contacts, fixture.notifier, testBonuses, testLogger(),
	)
	return fixture
}

func TestCreditWithBonus(t *testing.T) {
	cases := []struct {
		amount int64
		want   int64
	}{
		{3000, 3450},
		{5000, 6000},
		{1000, 1100},
		{999, 999},
		{4999, 5749},
	}
	for _, tc := range cases {
		if got := CreditWithBonus(tc.amount, testBonuses); got != tc.want {
			t.Fatalf("CreditWithBonus(%d) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func TestHandlePaymentSucceededCreditsWithBonus(t *testing.T) {
	fixture := newPaymentFixture()
	err := fixture.svc.HandlePaymentSucceeded(context.Background(), PaymentEvent{
		ProviderEventID:    "evt_1",
		ProviderCustomerID: "cus_123",
		AmountCents:        3000,
		Currency:           "usd",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixture.ledger.credits) != 1 {
		t.Fatalf("expected one credit, got %d", len(fixture.ledger.credits))
	}
	credit := fixture.ledger.credits[0]
	if credit.AmountCents != 3450 {
		t.Fatalf("a 3000 cent payment with 15%% bonus must credit 3450, got %d", credit.AmountCents)
	}
	if credit.ReferenceID == nil || *credit.ReferenceID != "payment-evt_1" {
		t.Fatal("credit must reference the provider event id")
	}
	if fixture.ledger.broadcasts != 1 {
		t.Fatal("expected a balance broadcast after commit")
	}
	if fixture.notifier.paymentsReceived != 1 {
		t.Fatal("expected a payment notification")
	}
}

func TestHandlePaymentSucceededRedeliveryIsNoOp(t *testing.T) {
	fixture := newPaymentFixture()
	fixture.events.recordFn = func(ctx context.Context, tx store.Execer, providerEventID, userID, kind string, amountCents int64) error {
		return store.ErrDuplicateEvent
	}
	err := fixture.svc.HandlePaymentSucceeded(context.Background(), PaymentEvent{
		ProviderEventID:    "evt_1",
		ProviderCustomerID: "cus_123",
		AmountCents:        3000,
	})
	if err != nil {
		t.Fatalf("redelivery must not error: %v", err)
	}
	if fixture.ledger.broadcasts != 0 {
		t.Fatal("redelivery must not broadcast")
	}
	if fixture.notifier.paymentsReceived != 0 {
		t.Fatal("redelivery must not notify")
	}
}

func TestHandlePaymentSucceededUnknownCustomerIgnored(t *testing.T) {
	fixture := newPaymentFixture()
	fixture.events.getCustomerFn = func(ctx context.Context, providerCustomerID string) (models.PaymentCustomer, error) {
		return models.PaymentCustomer{}, sql.ErrNoRows
	}
	err := fixture.svc.HandlePaymentSucceeded(context.Background(), PaymentEvent{
		ProviderEventID:    "evt_1",
		ProviderCustomerID: "cus_unknown",
		AmountCents:        3000,
	})
	if err != nil {
		t.Fatalf("unknown customer must not error: %v", err)
	}
	if len(fixture.ledger.credits) != 0 {
		t.Fatal("unknown customer must not be credited")
	}
}

func TestHandlePaymentFailedDisablesAutoReload(t *testing.T) {
	fixture := newPaymentFixture()
	fixture.wallets.getFn = func(ctx context.Context, userID string) (models.Wallet, error) {
		return models.Wallet{UserID: userID, AutoReloadEnabled: true}, nil
	}
	err := fixture.svc.HandlePaymentFailed(context.Background(), PaymentEvent{
		ProviderEventID:    "evt_2",
		ProviderCustomerID: "cus_123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.wallets.disabled != 1 {
		t.Fatal("a failed payment must switch auto-reload off")
	}
	if fixture.notifier.reloadFailures != 1 {
		t.Fatal("expected a failure notification")
	}
}

func TestHandlePaymentFailedWithoutAutoReload(t *testing.T) {
	fixture := newPaymentFixture()
	fixture.wallets.getFn = func(ctx context.Context, userID string) (models.Wallet, error) {
		return models.Wallet{UserID: userID}, nil
	}
	err := fixture.svc.HandlePaymentFailed(context.Background(), PaymentEvent{
		ProviderEventID:    "evt_3",
		ProviderCustomerID: "cus_123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.wallets.disabled != 0 || fixture.notifier.reloadFailures != 0 {
		t.Fatal("nothing to disable when auto-reload is already off")
	}
}
