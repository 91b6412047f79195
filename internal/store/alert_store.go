package store

import (
	"context"
	"time"

	"textback/internal/db"
)

type AlertStore struct {
	db DB
}

func NewAlertStore(db DB) *AlertStore {
	return &AlertStore{db: db}
}

// MarkIfDue decides, atomically against concurrent callers, whether a
// low-balance notification for (user, level) should be sent now.
//
// Update-first: refresh an existing row only if it is staler than the
// cooldown; a hit means this caller owns the resend. Otherwise try to
// insert a fresh row; the unique constraint makes exactly one concurrent
// inserter the winner, and losers read the conflict as "someone else
// already sent it". No SELECT FOR UPDATE, no application lock.
func (s *AlertStore) MarkIfDue(ctx context.Context, userID string, levelCents int64, cooldown time.Duration) (bool, error) {
	staleBefore := time.Now().Add(-cooldown).UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE low_balance_alerts
		SET last_sent_at = NOW()
		WHERE user_id = $1 AND level_cents = $2 AND last_sent_at < $3
	`, userID, levelCents, staleBefore)
	if err != nil {
		return false, err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if updated > 0 {
		return true, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO low_balance_alerts (user_id, level_cents, last_sent_at)
		VALUES ($1, $2, NOW())
	`, userID, levelCents)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
