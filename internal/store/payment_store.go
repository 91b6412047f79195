package store

import (
	"context"
	"errors"

	"textback/internal/db"
	"textback/internal/models"
)

var ErrDuplicateEvent = errors.New("payment event already processed")

type PaymentStore struct {
	db DB
}

func NewPaymentStore(db DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// RecordEvent claims a provider event id inside the caller's transaction.
// The unique constraint makes the claim-plus-credit exactly-once: a
// redelivered webhook fails here and the whole transaction rolls back.
func (s *PaymentStore) RecordEvent(ctx context.Context, tx Execer, providerEventID, userID, kind string, amountCents int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_events (provider_event_id, user_id, kind, amount_cents)
		VALUES ($1, $2, $3, $4)
	`, providerEventID, userID, kind, amountCents)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (s *PaymentStore) UpsertCustomer(ctx context.Context, userID, providerCustomerID, paymentMethodRef string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_customers (user_id, provider_customer_id, payment_method_ref)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET provider_customer_id = EXCLUDED.provider_customer_id,
		    payment_method_ref = EXCLUDED.payment_method_ref
	`, userID, providerCustomerID, paymentMethodRef)
	return err
}

func (s *PaymentStore) GetCustomerByProviderID(ctx context.Context, providerCustomerID string) (models.PaymentCustomer, error) {
	var row models.PaymentCustomer
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, provider_customer_id, payment_method_ref, created_at
		FROM payment_customers
		WHERE provider_customer_id = $1
	`, providerCustomerID)
	if err != nil {
		return models.PaymentCustomer{}, err
	}
	return row, nil
}

func (s *PaymentStore) GetCustomerByUser(ctx context.Context, userID string) (models.PaymentCustomer, error) {
	var row models.PaymentCustomer
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, provider_customer_id, payment_method_ref, created_at
		FROM payment_customers
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.PaymentCustomer{}, err
	}
	return row, nil
}
