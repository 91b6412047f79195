package store

import (
	"context"
	"errors"

	"textback/internal/db"
	"textback/internal/models"
)

var ErrDuplicateCall = errors.New("call already processed")

type CallLogStore struct {
	db DB
}

func NewCallLogStore(db DB) *CallLogStore {
	return &CallLogStore{db: db}
}

type CallLogInput struct {
	ID             string
	ProviderCallID string
	CallerNumber   string
	CalledNumber   string
	HasVoicemail   bool
}

// Insert claims the call event. The unique constraint on provider_call_id
// is the dedup mechanism: of N concurrent deliveries of the same retried
// webhook, exactly one insert succeeds and the rest get ErrDuplicateCall.
func (s *CallLogStore) Insert(ctx context.Context, input CallLogInput) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (id, provider_call_id, caller_number, called_number, has_voicemail, delivery_status, billing_status)
		VALUES ($1, $2, $3, $4, $5, 'pending', 'pending')
	`, input.ID, input.ProviderCallID, input.CallerNumber, input.CalledNumber, input.HasVoicemail)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateCall
		}
		return err
	}
	return nil
}

type CallOutcome struct {
	UserID             *string
	VIPCaller          bool
	Transcript         *string
	ReplyBody          *string
	BaseCents          int64
	FollowUpCents      int64
	RepeatCallerCents  int64
	TwoWayCents        int64
	PriorityCents      int64
	TranscriptionCents int64
	TotalCents         int64
	DeliveryStatus     string
	BillingStatus      string
	OwnerNotified      bool
}

// UpdateOutcome records the full priced and billed result of the call.
// Written unconditionally, including on partial failure, because this row
// is the audit trail for dispute resolution.
func (s *CallLogStore) UpdateOutcome(ctx context.Context, providerCallID string, outcome CallOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE call_logs
		SET user_id = $1, vip_caller = $2, transcript = $3, reply_body = $4,
		    base_cents = $5, follow_up_cents = $6, repeat_caller_cents = $7,
		    two_way_cents = $8, priority_cents = $9, transcription_cents = $10,
		    total_cents = $11, delivery_status = $12, billing_status = $13,
		    owner_notified = $14, updated_at = NOW()
		WHERE provider_call_id = $15
	`, outcome.UserID, outcome.VIPCaller, outcome.Transcript, outcome.ReplyBody,
		outcome.BaseCents, outcome.FollowUpCents, outcome.RepeatCallerCents,
		outcome.TwoWayCents, outcome.PriorityCents, outcome.TranscriptionCents,
		outcome.TotalCents, outcome.DeliveryStatus, outcome.BillingStatus,
		outcome.OwnerNotified, providerCallID)
	return err
}

// HasPriorCall reports whether this caller has called the user before,
// excluding the call being processed.
func (s *CallLogStore) HasPriorCall(ctx context.Context, userID, callerNumber, excludeProviderCallID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM call_logs
			WHERE user_id = $1 AND caller_number = $2 AND provider_call_id != $3
		)
	`, userID, callerNumber, excludeProviderCallID)
	return exists, err
}

func (s *CallLogStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.CallLog, error) {
	var rows []models.CallLog
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, provider_call_id, user_id, caller_number, called_number, vip_caller,
		       has_voicemail, transcript, reply_body, base_cents, follow_up_cents,
		       repeat_caller_cents, two_way_cents, priority_cents, transcription_cents,
		       total_cents, delivery_status, billing_status, owner_notified, created_at
		FROM call_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
