package handlers

import (
	"context"
	"time"

	"textback/internal/models"
	"textback/internal/services"
	"textback/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash, businessNumber, notifyNumber string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	UpdateFeatures(ctx context.Context, userID string, update store.FeatureUpdate) error
	AddVIPCaller(ctx context.Context, userID, callerNumber string) error
}

type WalletStore interface {
	Create(ctx context.Context, tx store.Execer, userID, currency string) error
	Get(ctx context.Context, userID string) (models.Wallet, error)
	Summary(ctx context.Context, userID string) (store.WalletSummary, error)
	SetAutoReload(ctx context.Context, userID string, enabled bool, thresholdCents, amountCents int64) error
}

type WalletTxnStore interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.WalletTransaction, error)
}

type CallLogStore interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.CallLog, error)
}

type PaymentCustomerStore interface {
	UpsertCustomer(ctx context.Context, userID, providerCustomerID, paymentMethodRef string) error
}

type BillingProcessor interface {
	ProcessMissedCall(ctx context.Context, event services.CallEvent) error
}

type PaymentProcessor interface {
	HandlePaymentSucceeded(ctx context.Context, event services.PaymentEvent) error
	HandlePaymentFailed(ctx context.Context, event services.PaymentEvent) error
}

// webhookTimeout bounds background processing detached from the request.
const webhookTimeout = 30 * time.Second
