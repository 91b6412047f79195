package store

import (
	"context"

	"textback/internal/models"
)

type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

func (s *WalletStore) Create(ctx context.Context, tx Execer, userID, currency string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance_cents, currency)
		VALUES ($1, 0, $2)
	`, userID, currency)
	return err
}

func (s *WalletStore) Get(ctx context.Context, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, balance_cents, currency, auto_reload_enabled,
		       auto_reload_threshold_cents, auto_reload_amount_cents, created_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

// BalanceRow is the post-mutation snapshot returned by debit and credit.
type BalanceRow struct {
	BalanceCents int64  `db:"balance_cents"`
	Currency     string `db:"currency"`
}

// DebitConditional decrements the balance only when the guard holds. The
// balance check and the mutation are one statement so two concurrent
// debits can never both pass the check and overdraw the wallet. Returns
// sql.ErrNoRows when the guard fails or the wallet does not exist.
func (s *WalletStore) DebitConditional(ctx context.Context, tx Getter, userID string, amountCents int64) (BalanceRow, error) {
	var row BalanceRow
	err := tx.GetContext(ctx, &row, `
		UPDATE wallets
		SET balance_cents = balance_cents - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance_cents >= $1
		RETURNING balance_cents, currency
	`, amountCents, userID)
	if err != nil {
		return BalanceRow{}, err
	}
	return row, nil
}

// Credit increments the balance unconditionally. Returns sql.ErrNoRows
// only when the wallet row is missing, which is a provisioning bug.
func (s *WalletStore) Credit(ctx context.Context, tx Getter, userID string, amountCents int64) (BalanceRow, error) {
	var row BalanceRow
	err := tx.GetContext(ctx, &row, `
		UPDATE wallets
		SET balance_cents = balance_cents + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING balance_cents, currency
	`, amountCents, userID)
	if err != nil {
		return BalanceRow{}, err
	}
	return row, nil
}

func (s *WalletStore) SetAutoReload(ctx context.Context, userID string, enabled bool, thresholdCents, amountCents int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE wallets
		SET auto_reload_enabled = $1, auto_reload_threshold_cents = $2,
		    auto_reload_amount_cents = $3, updated_at = NOW()
		WHERE user_id = $4
	`, enabled, thresholdCents, amountCents, userID)
	return err
}

func (s *WalletStore) DisableAutoReload(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE wallets
		SET auto_reload_enabled = FALSE, updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	return err
}

type WalletSummary struct {
	UserID            string `db:"user_id"`
	BalanceCents      int64  `db:"balance_cents"`
	Currency          string `db:"currency"`
	ReplayedCents     int64  `db:"replayed_cents"`
	DifferenceCents   int64  `db:"difference_cents"`
	AutoReloadEnabled bool   `db:"auto_reload_enabled"`
}

// Summary cross-checks the stored balance against the transaction history
// replayed from zero.
func (s *WalletStore) Summary(ctx context.Context, userID string) (WalletSummary, error) {
	var row WalletSummary
	err := s.db.GetContext(ctx, &row, `
		SELECT w.user_id,
		       w.balance_cents,
		       w.currency,
		       w.auto_reload_enabled,
		       COALESCE(SUM(CASE WHEN t.type = 'DEBIT' THEN -t.amount_cents ELSE t.amount_cents END), 0) AS replayed_cents,
		       (w.balance_cents - COALESCE(SUM(CASE WHEN t.type = 'DEBIT' THEN -t.amount_cents ELSE t.amount_cents END), 0)) AS difference_cents
		FROM wallets w
		LEFT JOIN wallet_transactions t ON t.user_id = w.user_id
		WHERE w.user_id = $1
		GROUP BY w.user_id, w.balance_cents, w.currency, w.auto_reload_enabled
	`, userID)
	if err != nil {
		return WalletSummary{}, err
	}
	return row, nil
}
