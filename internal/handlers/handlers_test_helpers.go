package handlers

import (
	"context"

	"textback/internal/config"
	"textback/internal/models"
	"textback/internal/services"
	"textback/internal/store"
	"textback/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type stubBilling struct {
	processFn func(ctx context.Context, event services.CallEvent) error
}

func (s *stubBilling) ProcessMissedCall(ctx context.Context, event services.CallEvent) error {
	if s.processFn == nil {
		return nil
	}
	return s.processFn(ctx, event)
}

type stubPayments struct {
	succeededFn func(ctx context.Context, event services.PaymentEvent) error
	failedFn    func(ctx context.Context, event services.PaymentEvent) error
}

func (s *stubPayments) HandlePaymentSucceeded(ctx context.Context, event services.PaymentEvent) error {
	if s.succeededFn == nil {
		return nil
	}
	return s.succeededFn(ctx, event)
}

func (s *stubPayments) HandlePaymentFailed(ctx context.Context, event services.PaymentEvent) error {
	if s.failedFn == nil {
		return nil
	}
	return s.failedFn(ctx, event)
}

func newWebhookHandler(cfg config.Config, billing BillingProcessor, payments PaymentProcessor) *Handler {
	return New(nil, cfg, nil, nil, nil, nil, nil, billing, payments, websocket.NewHub())
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

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, id, username, email, passwordHash, businessNumber, notifyNumber string) error
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
	created      int
}

func (s *stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash, businessNumber, notifyNumber string) error {
	s.created++
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash, businessNumber, notifyNumber)
}

func (s *stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getByEmailFn(ctx, email)
}

func (s *stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	return s.getByIDFn(ctx, userID)
}

func (s *stubUserStore) UpdateFeatures(ctx context.Context, userID string, update store.FeatureUpdate) error {
	return nil
}

func (s *stubUserStore) AddVIPCaller(ctx context.Context, userID, callerNumber string) error {
	return nil
}

type stubCustomerStore struct {
	upsertFn func(ctx context.Context, userID, providerCustomerID, paymentMethodRef string) error
	upserted int
}

func (s *stubCustomerStore) UpsertCustomer(ctx context.Context, userID, providerCustomerID, paymentMethodRef string) error {
	s.upserted++
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, userID, providerCustomerID, paymentMethodRef)
}

type stubWalletStore struct {
	summaryFn func(ctx context.Context, userID string) (store.WalletSummary, error)
	created   int
}

func (s *stubWalletStore) Create(ctx context.Context, tx store.Execer, userID, currency string) error {
	s.created++
	return nil
}

func (s *stubWalletStore) Get(ctx context.Context, userID string) (models.Wallet, error) {
	return models.Wallet{UserID: userID, Currency: "USD"}, nil
}

func (s *stubWalletStore) Summary(ctx context.Context, userID string) (store.WalletSummary, error) {
	if s.summaryFn == nil {
		return store.WalletSummary{UserID: userID, Currency: "USD"}, nil
	}
	return s.summaryFn(ctx, userID)
}

func (s *stubWalletStore) SetAutoReload(ctx context.Context, userID string, enabled bool, thresholdCents, amountCents int64) error {
	return nil
}
