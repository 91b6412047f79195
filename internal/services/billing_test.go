package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"textback/internal/config"
	"textback/internal/models"
	"textback/internal/pricing"
	"textback/internal/store"
)

type billingFixture struct {
	svc      *BillingService
	calls    *stubCallLogStore
	users    *stubUserDirectory
	wallets  *stubWalletStore
	alerts   *stubAlertGuard
	ledger   *stubLedger
	notifier *stubNotifier
	sender   *stubMessenger
	reloader *stubReloader
}

func newBillingFixture() *billingFixture {
	fixture := &billingFixture{
		calls: &stubCallLogStore{},
		users: &stubUserDirectory{
			getByBusinessFn: func(ctx context.Context, businessNumber string) (models.User, error) {
				return models.User{
					ID:             "user-1",
					Username:       "acme",
					BusinessNumber: businessNumber,
					NotifyNumber:   "+15550001111",
					Plan:           "basic",
				}, nil
			},
		},
		wallets: &stubWalletStore{
			getFn: func(ctx context.Context, userID string) (models.Wallet, error) {
				return models.Wallet{UserID: userID, BalanceCents: 10000, Currency: "USD"}, nil
			},
		},
		alerts:   &stubAlertGuard{},
		ledger:   &stubLedger{},
		notifier: &stubNotifier{},
		sender:   &stubMessenger{},
		reloader: &stubReloader{},
	}
	fixture.ledger.debitFn = func(ctx context.Context, req LedgerRequest) (int64, error) {
		return 10000 - req.AmountCents, nil
	}
	calculator := pricing.NewCalculator(config.Pricing{
		BasicBaseCents:        50,
		ProBaseCents:          75,
		FollowUpCents:         10,
		RepeatCallerCents:     5,
		TwoWayCents:           15,
		VIPPriorityCents:      25,
		StandardPriorityCents: 10,
		TranscriptionCents:    20,
	})
	fixture.svc = NewBillingService(
		fixture.calls, fixture.users, fixture.wallets, fixture.alerts,
		fixture.ledger, calculator, fixture.sender,
		&stubTranscriber{}, &stubResponder{},
		fixture.notifier, fixture.reloader,
		BillingPolicy{
			MinBalanceCents:  100,
			AlertLevelsCents: []int64{1000, 500},
			AlertCooldown:    24 * time.Hour,
			ServiceNumber:    "+15550000000",
		},
		testLogger(),
	)
	return fixture
}

func testEvent() CallEvent {
	return CallEvent{
		ProviderCallID: "CA100",
		CallerNumber:   "+15557654321",
		CalledNumber:   "+15551234567",
	}
}

func TestProcessMissedCallHappyPath(t *testing.T) {
	fixture := newBillingFixture()
	if err := fixture.svc.ProcessMissedCall(context.Background(), testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixture.sender.sent) != 1 || fixture.sender.sent[0] != "+15557654321" {
		t.Fatalf("expected one reply to caller, got %v", fixture.sender.sent)
	}
	if len(fixture.ledger.debits) != 1 {
		t.Fatalf("expected one debit, got %d", len(fixture.ledger.debits))
	}
	debit := fixture.ledger.debits[0]
	if debit.AmountCents != 50 {
		t.Fatalf("expected base cost 50, got %d", debit.AmountCents)
	}
	if debit.ReferenceID == nil || *debit.ReferenceID != "CA100" {
		t.Fatal("debit must reference the provider call id")
	}
	if len(fixture.calls.outcomes) != 1 {
		t.Fatalf("expected one outcome write, got %d", len(fixture.calls.outcomes))
	}
	outcome := fixture.calls.outcomes[0]
	if outcome.DeliveryStatus != models.DeliverySent || outcome.BillingStatus != models.BillingCharged {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.TotalCents != 50 {
		t.Fatalf("expected total 50, got %d", outcome.TotalCents)
	}
	if len(fixture.reloader.triggered) != 1 {
		t.Fatal("expected reload hook to run after billing")
	}
}

func TestProcessMissedCallDuplicateIsNoOp(t *testing.T) {
	fixture := newBillingFixture()
	fixture.calls.insertFn = func(ctx context.Context, input store.CallLogInput) error {
		return store.ErrDuplicateCall
	}
	if err := fixture.svc.ProcessMissedCall(context.Background(), testEvent()); err != nil {
		t.Fatalf("duplicate delivery must not error: %v", err)
	}
	if len(fixture.ledger.debits) != 0 {
		t.Fatal("duplicate delivery must not debit")
	}
	if len(fixture.sender.sent) != 0 {
		t.Fatal("duplicate delivery must not send")
	}
	if len(fixture.calls.outcomes) != 0 {
		t.Fatal("duplicate delivery must not rewrite the outcome")
	}
}

func TestProcessMissedCallUnknownNumberSkips(t *testing.T) {
	fixture := newBillingFixture()
	fixture.users.getByBusinessFn = func(ctx context.Context, businessNumber string) (models.User, error) {
		return models.User{}, sql.ErrNoRows
	}
	if err := fixture.svc.ProcessMissedCall(context.Background(), testEvent()); err != nil {
		t.Fatalf("unknown number must not error: %v", err)
	}
	if len(fixture.ledger.debits) != 0 || len(fixture.sender.sent) != 0 {
		t.Fatal("unknown number must neither send nor debit")
	}
	if len(fixture.calls.outcomes) != 1 || fixture.calls.outcomes[0].BillingStatus != models.BillingSkipped {
		t.Fatalf("expected skipped outcome, got %+v", fixture.calls.outcomes)
	}
}

func TestProcessMissedCallBelowFloorSkipsDelivery(t *testing.T) {
	fixture := newBillingFixture()
	fixture.wallets.getFn = func(ctx context.Context, userID string) (models.Wallet, error) {
		return models.Wallet{UserID: userID, BalanceCents: 40, Currency: "USD"}, nil
	}
	if err := fixture.svc.ProcessMissedCall(context.Background(), testEvent()); err != nil {
		t.Fatalf("below-floor skip must not error: %v", err)
	}
	if len(fixture.sender.sent) != 0 {
		t.Fatal("no delivery may be attempted below the balance floor")
	}
	if len(fixture.ledger.debits) != 0 {
		t.Fatal("no debit may happen below the balance floor")
	}
	outcome := fixture.calls.outcomes[0]
	if outcome.DeliveryStatus != models.DeliverySkipped || outcome.BillingStatus != models.BillingSkipped {
		t.Fatalf("expected skipped outcome, got %+v", outcome)
	}
	if !outcome.OwnerNotified {
		t.Fatal("owner must be alerted when balance is below every level")
	}
	if len(fixture.notifier.lowBalances) == 0 {
		t.Fatal("expected a low-balance notification")
	}
	if len(fixture.reloader.triggered) != 1 {
		t.Fatal("reload hook must still run on a skipped call")
	}
}

func TestProcessMissedCallDeliveryFailureStillDebits(t *testing.T) {
	fixture := newBillingFixture()
	fixture.sender.sendFn = func(ctx context.Context, from, to, body string) (string, error) {
		return "", errors.New("gateway timeout")
	}
	if err := fixture.svc.ProcessMissedCall(context.Background(), testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixture.ledger.debits) != 1 || fixture.ledger.debits[0].AmountCents != 50 {
		t.Fatal("failed delivery must still debit the full amount")
	}
	outcome := fixture.calls.outcomes[0]
	if outcome.DeliveryStatus != models.DeliveryFailed {
		t.Fatalf("expected failed delivery status, got %q", outcome.DeliveryStatus)
	}
	if outcome.BillingStatus != models.BillingCharged {
		t.Fatalf("expected charged billing status, got %q", outcome.BillingStatus)
	}
}

func TestProcessMissedCallInsufficientAtDebit(t *testing.T) {
	fixture := newBillingFixture()
	fixture.ledger.debitFn = func(ctx context.Context, req LedgerRequest) (int64, error) {
		return 0, &InsufficientBalanceError{RequiredCents: req.AmountCents, AvailableCents: 30}
	}
	if err := fixture.svc.ProcessMissedCall(context.Background(), testEvent()); err != nil {
		t.Fatalf("insufficient balance is an expected outcome, got error: %v", err)
	}
	outcome := fixture.calls.outcomes[0]
	if outcome.BillingStatus != models.BillingInsufficient {
		t.Fatalf("expected insufficient billing status, got %q", outcome.BillingStatus)
	}
	if len(fixture.notifier.operatorAlerts) != 0 {
		t.Fatal("insufficient balance must not page the operator")
	}
	if len(fixture.notifier.lowBalances) == 0 {
		t.Fatal("expected a low-balance notification after a drained wallet")
	}
}

func TestProcessMissedCallDebitErrorPagesOperator(t *testing.T) {
	fixture := newBillingFixture()
	fixture.ledger.debitFn = func(ctx context.Context, req LedgerRequest) (int64, error) {
		return 0, errors.New("connection reset")
	}
	if err := fixture.svc.ProcessMissedCall(context.Background(), testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outcome := fixture.calls.outcomes[0]
	if outcome.BillingStatus != models.BillingError {
		t.Fatalf("expected error billing status, got %q", outcome.BillingStatus)
	}
	if len(fixture.notifier.operatorAlerts) != 1 {
		t.Fatal("an unexpected debit failure must page the operator")
	}
}

func TestProcessMissedCallPricesEnabledFeatures(t *testing.T) {
	fixture := newBillingFixture()
	fixture.users.getByBusinessFn = func(ctx context.Context, businessNumber string) (models.User, error) {
		return models.User{
			ID:                   "user-1",
			Username:             "acme",
			BusinessNumber:       businessNumber,
			NotifyNumber:         "+15550001111",
			Plan:                 "pro",
			FollowUpEnabled:      true,
			RepeatCallerEnabled:  true,
			TwoWayEnabled:        true,
			VIPPriorityEnabled:   true,
			TranscriptionEnabled: true,
		}, nil
	}
	fixture.users.isVIPFn = func(ctx context.Context, userID, callerNumber string) (bool, error) {
		return true, nil
	}
	fixture.calls.hasPriorFn = func(ctx context.Context, userID, callerNumber, excludeProviderCallID string) (bool, error) {
		return true, nil
	}
	event := testEvent()
	event.RecordingURL = "https://recordings.example.com/CA100"
	if err := fixture.svc.ProcessMissedCall(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// pro base 75 + follow-up 10 + repeat 5 + two-way 15 + vip 25 + transcription 20
	want := int64(75 + 10 + 5 + 15 + 25 + 20)
	if fixture.ledger.debits[0].AmountCents != want {
		t.Fatalf("expected debit %d, got %d", want, fixture.ledger.debits[0].AmountCents)
	}
	outcome := fixture.calls.outcomes[0]
	if !outcome.VIPCaller || outcome.TotalCents != want {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestSweepAlertsRespectsGuard(t *testing.T) {
	fixture := newBillingFixture()
	fixture.alerts.markFn = func(ctx context.Context, userID string, levelCents int64, cooldown time.Duration) (bool, error) {
		return false, nil
	}
	fixture.ledger.debitFn = func(ctx context.Context, req LedgerRequest) (int64, error) {
		return 400, nil
	}
	if err := fixture.svc.ProcessMissedCall(context.Background(), testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Balance 400 is under both levels, so both are checked against the
	// guard, but a losing guard means no notification goes out.
	if len(fixture.alerts.marked) != 2 {
		t.Fatalf("expected both alert levels checked, got %v", fixture.alerts.marked)
	}
	if len(fixture.notifier.lowBalances) != 0 {
		t.Fatal("guard said not due; no notification may be sent")
	}
	if fixture.calls.outcomes[0].OwnerNotified {
		t.Fatal("owner_notified must be false when the guard suppressed the alert")
	}
}

func TestSweepAlertsSkipsLevelsAboveBalance(t *testing.T) {
	fixture := newBillingFixture()
	fixture.ledger.debitFn = func(ctx context.Context, req LedgerRequest) (int64, error) {
		return 700, nil
	}
	if err := fixture.svc.ProcessMissedCall(context.Background(), testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Balance 700 crosses the 1000 level but not the 500 level.
	if len(fixture.alerts.marked) != 1 || fixture.alerts.marked[0] != 1000 {
		t.Fatalf("expected only the 1000 level checked, got %v", fixture.alerts.marked)
	}
	if len(fixture.notifier.lowBalances) != 1 || fixture.notifier.lowBalances[0] != 1000 {
		t.Fatalf("expected one alert at level 1000, got %v", fixture.notifier.lowBalances)
	}
}
