package store

import (
	"context"
	"time"

	"textback/internal/models"
)

type WalletTxnStore struct {
	db DB
}

func NewWalletTxnStore(db DB) *WalletTxnStore {
	return &WalletTxnStore{db: db}
}

type WalletTxnInput struct {
	ID                string
	UserID            string
	Type              string
	AmountCents       int64
	Description       string
	ReferenceID       *string
	BalanceAfterCents int64
}

func (s *WalletTxnStore) Insert(ctx context.Context, tx Execer, input WalletTxnInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, user_id, type, amount_cents, description, reference_id, balance_after_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, input.ID, input.UserID, input.Type, input.AmountCents, input.Description, input.ReferenceID, input.BalanceAfterCents)
	return err
}

func (s *WalletTxnStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, amount_cents, description, reference_id, balance_after_cents, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HasRecentAutoReload reports whether an auto-reload credit landed within
// the window. Guards the reload coordinator against double-firing on the
// same balance dip.
func (s *WalletTxnStore) HasRecentAutoReload(ctx context.Context, userID string, window time.Duration) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM wallet_transactions
			WHERE user_id = $1 AND type = 'CREDIT'
			  AND reference_id LIKE 'reload-%'
			  AND created_at > $2
		)
	`, userID, time.Now().Add(-window).UTC())
	return exists, err
}
