package store

import (
	"context"

	"textback/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, id, username, email, passwordHash, businessNumber, notifyNumber string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, business_number, notify_number)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, username, email, passwordHash, businessNumber, notifyNumber)
	return err
}

const userColumns = `
	id, username, email, password_hash, business_number, notify_number, plan,
	follow_up_enabled, repeat_caller_enabled, two_way_enabled,
	vip_priority_enabled, transcription_enabled, created_at
`

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, userID)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

// GetByBusinessNumber resolves the account that owns an inbound called
// number. Every missed-call event is attributed through this lookup.
func (s *UserStore) GetByBusinessNumber(ctx context.Context, businessNumber string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT `+userColumns+`
		FROM users
		WHERE business_number = $1
	`, businessNumber)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) IsVIPCaller(ctx context.Context, userID, callerNumber string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM vip_callers
			WHERE user_id = $1 AND caller_number = $2
		)
	`, userID, callerNumber)
	return exists, err
}

func (s *UserStore) AddVIPCaller(ctx context.Context, userID, callerNumber string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vip_callers (user_id, caller_number)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, callerNumber)
	return err
}

type FeatureUpdate struct {
	Plan                 string
	FollowUpEnabled      bool
	RepeatCallerEnabled  bool
	TwoWayEnabled        bool
	VIPPriorityEnabled   bool
	TranscriptionEnabled bool
}

func (s *UserStore) UpdateFeatures(ctx context.Context, userID string, update FeatureUpdate) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET plan = $1, follow_up_enabled = $2, repeat_caller_enabled = $3,
		    two_way_enabled = $4, vip_priority_enabled = $5,
		    transcription_enabled = $6, updated_at = NOW()
		WHERE id = $7
	`, update.Plan, update.FollowUpEnabled, update.RepeatCallerEnabled,
		update.TwoWayEnabled, update.VIPPriorityEnabled,
		update.TranscriptionEnabled, userID)
	return err
}
