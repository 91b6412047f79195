package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"textback/internal/db"
	"textback/internal/metrics"
	"textback/internal/models"
	"textback/internal/money"
	"textback/internal/store"
	"textback/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrWalletNotFound = errors.New("wallet not found")
)

// InsufficientBalanceError is an expected business outcome, not a fault.
// It is a distinct type so callers can tell "user needs to add funds"
// apart from "the system has a bug" without string matching.
type InsufficientBalanceError struct {
	RequiredCents  int64
	AvailableCents int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %s, have %s",
		money.FormatCents(e.RequiredCents), money.FormatCents(e.AvailableCents))
}

type WalletStore interface {
	Get(ctx context.Context, userID string) (models.Wallet, error)
	DebitConditional(ctx context.Context, tx store.Getter, userID string, amountCents int64) (store.BalanceRow, error)
	Credit(ctx context.Context, tx store.Getter, userID string, amountCents int64) (store.BalanceRow, error)
}

type WalletTxnStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.WalletTxnInput) error
}

type WalletHub interface {
	BroadcastWallet(userID string, update websocket.WalletUpdate)
}

// LedgerService owns all wallet balance mutation. Nothing else in the
// system updates a balance.
type LedgerService struct {
	txRunner db.TxRunner
	wallets  WalletStore
	txns     WalletTxnStore
	hub      WalletHub
	logger   *logrus.Logger
}

func NewLedgerService(txRunner db.TxRunner, wallets WalletStore, txns WalletTxnStore, hub WalletHub, logger *logrus.Logger) *LedgerService {
	return &LedgerService{
		txRunner: txRunner,
		wallets:  wallets,
		txns:     txns,
		hub:      hub,
		logger:   logger,
	}
}

type LedgerRequest struct {
	UserID      string
	AmountCents int64
	Description string
	ReferenceID *string
}

// Debit atomically decrements the wallet and appends the audit row in one
// transaction. The guard lives in the UPDATE's WHERE clause: there is no
// read-check-write window, so concurrent debits cannot overdraw.
func (s *LedgerService) Debit(ctx context.Context, req LedgerRequest) (int64, error) {
	if req.AmountCents <= 0 {
		return 0, ErrInvalidAmount
	}
	var after store.BalanceRow
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.wallets.DebitConditional(ctx, tx, req.UserID, req.AmountCents)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Guard failed: either no wallet or not enough funds.
				// Re-read for the caller's diagnostics.
				wallet, getErr := s.wallets.Get(ctx, req.UserID)
				if getErr != nil {
					if errors.Is(getErr, sql.ErrNoRows) {
						return ErrWalletNotFound
					}
					return getErr
				}
				return &InsufficientBalanceError{
					RequiredCents:  req.AmountCents,
					AvailableCents: wallet.BalanceCents,
				}
			}
			return err
		}
		after = row
		return s.txns.Insert(ctx, tx, store.WalletTxnInput{
			ID:                uuid.NewString(),
			UserID:            req.UserID,
			Type:              models.TxnDebit,
			AmountCents:       req.AmountCents,
			Description:       req.Description,
			ReferenceID:       req.ReferenceID,
			BalanceAfterCents: row.BalanceCents,
		})
	})
	if err != nil {
		return 0, err
	}
	metrics.DebitCents.Add(float64(req.AmountCents))
	s.hub.BroadcastWallet(req.UserID, websocket.WalletUpdate{
		BalanceCents: after.BalanceCents,
		Balance:      money.FormatCents(after.BalanceCents),
		Currency:     after.Currency,
		Reason:       "debit",
	})
	return after.BalanceCents, nil
}

// Credit atomically increments the wallet and appends the audit row.
// Fails only when the wallet row is missing, which means provisioning is
// broken and must not be papered over with a retry.
func (s *LedgerService) Credit(ctx context.Context, req LedgerRequest) (int64, error) {
	if req.AmountCents <= 0 {
		return 0, ErrInvalidAmount
	}
	var after store.BalanceRow
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.creditInTx(ctx, tx, req)
		if err != nil {
			return err
		}
		after = row
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.CreditCents.Add(float64(req.AmountCents))
	s.hub.BroadcastWallet(req.UserID, websocket.WalletUpdate{
		BalanceCents: after.BalanceCents,
		Balance:      money.FormatCents(after.BalanceCents),
		Currency:     after.Currency,
		Reason:       "credit",
	})
	return after.BalanceCents, nil
}

// CreditInTx applies a credit inside a transaction the caller already
// owns, for workflows that must couple the credit with another atomic
// claim (the payment webhook's exactly-once event insert).
func (s *LedgerService) CreditInTx(ctx context.Context, tx *sqlx.Tx, req LedgerRequest) (store.BalanceRow, error) {
	if req.AmountCents <= 0 {
		return store.BalanceRow{}, ErrInvalidAmount
	}
	return s.creditInTx(ctx, tx, req)
}

func (s *LedgerService) creditInTx(ctx context.Context, tx *sqlx.Tx, req LedgerRequest) (store.BalanceRow, error) {
	row, err := s.wallets.Credit(ctx, tx, req.UserID, req.AmountCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.BalanceRow{}, ErrWalletNotFound
		}
		return store.BalanceRow{}, err
	}
	if err := s.txns.Insert(ctx, tx, store.WalletTxnInput{
		ID:                uuid.NewString(),
		UserID:            req.UserID,
		Type:              models.TxnCredit,
		AmountCents:       req.AmountCents,
		Description:       req.Description,
		ReferenceID:       req.ReferenceID,
		BalanceAfterCents: row.BalanceCents,
	}); err != nil {
		return store.BalanceRow{}, err
	}
	return row, nil
}

// BroadcastAfterCredit publishes a balance update for credits applied via
// CreditInTx once the caller's transaction has committed.
func (s *LedgerService) BroadcastAfterCredit(userID string, after store.BalanceRow, amountCents int64) {
	metrics.CreditCents.Add(float64(amountCents))
	s.hub.BroadcastWallet(userID, websocket.WalletUpdate{
		BalanceCents: after.BalanceCents,
		Balance:      money.FormatCents(after.BalanceCents),
		Currency:     after.Currency,
		Reason:       "credit",
	})
}
