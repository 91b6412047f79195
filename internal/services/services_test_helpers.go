package services

import (
	"context"
	"io"
	"time"

	"textback/internal/enrich"
	"textback/internal/models"
	"textback/internal/store"
	"textback/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type stubTxRunner struct {
	err error
}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if s.err != nil {
		return s.err
	}
	return fn(nil)
}

type stubWalletStore struct {
	getFn     func(ctx context.Context, userID string) (models.Wallet, error)
	debitFn   func(ctx context.Context, tx store.Getter, userID string, amountCents int64) (store.BalanceRow, error)
	creditFn  func(ctx context.Context, tx store.Getter, userID string, amountCents int64) (store.BalanceRow, error)
	disableFn func(ctx context.Context, userID string) error
	disabled  int
}

func (s *stubWalletStore) Get(ctx context.Context, userID string) (models.Wallet, error) {
	if s.getFn == nil {
		return models.Wallet{UserID: userID, Currency: "USD"}, nil
	}
	return s.getFn(ctx, userID)
}

func (s *stubWalletStore) DebitConditional(ctx context.Context, tx store.Getter, userID string, amountCents int64) (store.BalanceRow, error) {
	return s.debitFn(ctx, tx, userID, amountCents)
}

func (s *stubWalletStore) Credit(ctx context.Context, tx store.Getter, userID string, amountCents int64) (store.BalanceRow, error) {
	return s.creditFn(ctx, tx, userID, amountCents)
}

func (s *stubWalletStore) DisableAutoReload(ctx context.Context, userID string) error {
	s.disabled++
	if s.disableFn == nil {
		return nil
	}
	return s.disableFn(ctx, userID)
}

type stubTxnStore struct {
	insertFn    func(ctx context.Context, tx store.Execer, input store.WalletTxnInput) error
	hasRecentFn func(ctx context.Context, userID string, window time.Duration) (bool, error)
	inserted    []store.WalletTxnInput
}

func (s *stubTxnStore) Insert(ctx context.Context, tx store.Execer, input store.WalletTxnInput) error {
	s.inserted = append(s.inserted, input)
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, input)
}

func (s *stubTxnStore) HasRecentAutoReload(ctx context.Context, userID string, window time.Duration) (bool, error) {
	if s.hasRecentFn == nil {
		return false, nil
	}
	return s.hasRecentFn(ctx, userID, window)
}

type stubHub struct {
	updates []websocket.WalletUpdate
}

func (s *stubHub) BroadcastWallet(userID string, update websocket.WalletUpdate) {
	s.updates = append(s.updates, update)
}

type stubCallLogStore struct {
	insertFn   func(ctx context.Context, input store.CallLogInput) error
	hasPriorFn func(ctx context.Context, userID, callerNumber, excludeProviderCallID string) (bool, error)
	outcomes   []store.CallOutcome
}

func (s *stubCallLogStore) Insert(ctx context.Context, input store.CallLogInput) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, input)
}

func (s *stubCallLogStore) UpdateOutcome(ctx context.Context, providerCallID string, outcome store.CallOutcome) error {
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *stubCallLogStore) HasPriorCall(ctx context.Context, userID, callerNumber, excludeProviderCallID string) (bool, error) {
	if s.hasPriorFn == nil {
		return false, nil
	}
	return s.hasPriorFn(ctx, userID, callerNumber, excludeProviderCallID)
}

type stubUserDirectory struct {
	getByBusinessFn func(ctx context.Context, businessNumber string) (models.User, error)
	isVIPFn         func(ctx context.Context, userID, callerNumber string) (bool, error)
	getByIDFn       func(ctx context.Context, userID string) (models.User, error)
}

func (s *stubUserDirectory) GetByBusinessNumber(ctx context.Context, businessNumber string) (models.User, error) {
	return s.getByBusinessFn(ctx, businessNumber)
}

func (s *stubUserDirectory) IsVIPCaller(ctx context.Context, userID, callerNumber string) (bool, error) {
	if s.isVIPFn == nil {
		return false, nil
	}
	return s.isVIPFn(ctx, userID, callerNumber)
}

func (s *stubUserDirectory) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubAlertGuard struct {
	markFn func(ctx context.Context, userID string, levelCents int64, cooldown time.Duration) (bool, error)
	marked []int64
}

func (s *stubAlertGuard) MarkIfDue(ctx context.Context, userID string, levelCents int64, cooldown time.Duration) (bool, error) {
	s.marked = append(s.marked, levelCents)
	if s.markFn == nil {
		return true, nil
	}
	return s.markFn(ctx, userID, levelCents, cooldown)
}

type stubLedger struct {
	debitFn  func(ctx context.Context, req LedgerRequest) (int64, error)
	creditFn func(ctx context.Context, req LedgerRequest) (int64, error)
	debits   []LedgerRequest
	credits  []LedgerRequest
}

func (s *stubLedger) Debit(ctx context.Context, req LedgerRequest) (int64, error) {
	s.debits = append(s.debits, req)
	if s.debitFn == nil {
		return 0, nil
	}
	return s.debitFn(ctx, req)
}

func (s *stubLedger) Credit(ctx context.Context, req LedgerRequest) (int64, error) {
	s.credits = append(s.credits, req)
	if s.creditFn == nil {
		return 0, nil
	}
	return s.creditFn(ctx, req)
}

type stubCreditInTxLedger struct {
	creditInTxFn func(ctx context.Context, tx *sqlx.Tx, req LedgerRequest) (store.BalanceRow, error)
	credits      []LedgerRequest
	broadcasts   int
}

func (s *stubCreditInTxLedger) CreditInTx(ctx context.Context, tx *sqlx.Tx, req LedgerRequest) (store.BalanceRow, error) {
	s.credits = append(s.credits, req)
	if s.creditInTxFn == nil {
		return store.BalanceRow{BalanceCents: req.AmountCents, Currency: "USD"}, nil
	}
	return s.creditInTxFn(ctx, tx, req)
}

func (s *stubCreditInTxLedger) BroadcastAfterCredit(userID string, after store.BalanceRow, amountCents int64) {
	s.broadcasts++
}

type stubNotifier struct {
	lowBalances      []int64
	operatorAlerts   []string
	reloadFailures   int
	reloadSuccesses  int
	paymentsReceived int
}

func (s *stubNotifier) LowBalance(ctx context.Context, userID, notifyNumber string, balanceCents, levelCents int64) {
	s.lowBalances = append(s.lowBalances, levelCents)
}

func (s *stubNotifier) OperatorAlert(ctx context.Context, userID, reference string, cause error) {
	s.operatorAlerts = append(s.operatorAlerts, reference)
}

func (s *stubNotifier) ReloadFailed(ctx context.Context, userID, notifyNumber string) {
	s.reloadFailures++
}

func (s *stubNotifier) ReloadSucceeded(ctx context.Context, userID, notifyNumber string, amountCents, balanceCents int64) {
	s.reloadSuccesses++
}

func (s *stubNotifier) PaymentReceived(ctx context.Context, userID, notifyNumber string, creditedCents, balanceCents int64) {
	s.paymentsReceived++
}

type stubMessenger struct {
	sendFn func(ctx context.Context, from, to, body string) (string, error)
	sent   []string
}

func (s *stubMessenger) Send(ctx context.Context, from, to, body string) (string, error) {
	s.sent = append(s.sent, to)
	if s.sendFn == nil {
		return "msg-1", nil
	}
	return s.sendFn(ctx, from, to, body)
}

type stubTranscriber struct {
	transcribeFn func(ctx context.Context, recordingURL string) (string, error)
}

func (s *stubTranscriber) Transcribe(ctx context.Context, recordingURL string) (string, error) {
	if s.transcribeFn == nil {
		return "", enrich.ErrUnavailable
	}
	return s.transcribeFn(ctx, recordingURL)
}

type stubResponder struct {
	composeFn func(ctx context.Context, req enrich.ComposeRequest) (string, error)
}

func (s *stubResponder) Compose(ctx context.Context, req enrich.ComposeRequest) (string, error) {
	if s.composeFn == nil {
		return "", enrich.ErrUnavailable
	}
	return s.composeFn(ctx, req)
}

type stubCharger struct {
	chargeFn func(ctx context.Context, customerID, methodRef string, amountCents int64, currency string) (string, error)
	charges  int
}

func (s *stubCharger) Charge(ctx context.Context, customerID, methodRef string, amountCents int64, currency string) (string, error) {
	s.charges++
	if s.chargeFn == nil {
		return "ch-1", nil
	}
	return s.chargeFn(ctx, customerID, methodRef, amountCents, currency)
}

type stubReloader struct {
	triggered []string
}

func (s *stubReloader) MaybeReload(ctx context.Context, userID string) {
	s.triggered = append(s.triggered, userID)
}

type stubPaymentEventStore struct {
	recordFn      func(ctx context.Context, tx store.Execer, providerEventID, userID, kind string, amountCents int64) error
	getCustomerFn func(ctx context.Context, providerCustomerID string) (models.PaymentCustomer, error)
	recorded      []string
}

func (s *stubPaymentEventStore) RecordEvent(ctx context.Context, tx store.Execer, providerEventID, userID, kind string, amountCents int64) error {
	s.recorded = append(s.recorded, providerEventID)
	if s.recordFn == nil {
		return nil
	}
	return s.recordFn(ctx, tx, providerEventID, userID, kind, amountCents)
}

func (s *stubPaymentEventStore) GetCustomerByProviderID(ctx context.Context, providerCustomerID string) (models.PaymentCustomer, error) {
	return s.getCustomerFn(ctx, providerCustomerID)
}

type stubCustomerStore struct {
	getByUserFn func(ctx context.Context, userID string) (models.PaymentCustomer, error)
}

func (s *stubCustomerStore) GetCustomerByUser(ctx context.Context, userID string) (models.PaymentCustomer, error) {
	return s.getByUserFn(ctx, userID)
}
