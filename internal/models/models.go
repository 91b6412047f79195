package models

import "time"

type User struct {
	ID                   string    `db:"id" json:"id"`
	Username             string    `db:"username" json:"username"`
	Email                string    `db:"email" json:"email"`
	PasswordHash         string    `db:"password_hash" json:"-"`
	BusinessNumber       string    `db:"business_number" json:"business_number"`
	NotifyNumber         string    `db:"notify_number" json:"notify_number"`
	Plan                 string    `db:"plan" json:"plan"`
	FollowUpEnabled      bool      `db:"follow_up_enabled" json:"follow_up_enabled"`
	RepeatCallerEnabled  bool      `db:"repeat_caller_enabled" json:"repeat_caller_enabled"`
	TwoWayEnabled        bool      `db:"two_way_enabled" json:"two_way_enabled"`
	VIPPriorityEnabled   bool      `db:"vip_priority_enabled" json:"vip_priority_enabled"`
	TranscriptionEnabled bool      `db:"transcription_enabled" json:"transcription_enabled"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

type Wallet struct {
	UserID                   string    `db:"user_id" json:"user_id"`
	BalanceCents             int64     `db:"balance_cents" json:"balance_cents"`
	Currency                 string    `db:"currency" json:"currency"`
	AutoReloadEnabled        bool      `db:"auto_reload_enabled" json:"auto_reload_enabled"`
	AutoReloadThresholdCents int64     `db:"auto_reload_threshold_cents" json:"auto_reload_threshold_cents"`
	AutoReloadAmountCents    int64     `db:"auto_reload_amount_cents" json:"auto_reload_amount_cents"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
}

const (
	TxnDebit  = "DEBIT"
	TxnCredit = "CREDIT"
)

type WalletTransaction struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	Type              string    `db:"type" json:"type"`
	AmountCents       int64     `db:"amount_cents" json:"amount_cents"`
	Description       string    `db:"description" json:"description"`
	ReferenceID       *string   `db:"reference_id" json:"reference_id,omitempty"`
	BalanceAfterCents int64     `db:"balance_after_cents" json:"balance_after_cents"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"

	BillingCharged      = "charged"
	BillingInsufficient = "insufficient_balance"
	BillingError        = "error"
	BillingSkipped      = "skipped"
)

type CallLog struct {
	ID                 string    `db:"id" json:"id"`
	ProviderCallID     string    `db:"provider_call_id" json:"provider_call_id"`
	UserID             *string   `db:"user_id" json:"user_id,omitempty"`
	CallerNumber       string    `db:"caller_number" json:"caller_number"`
	CalledNumber       string    `db:"called_number" json:"called_number"`
	VIPCaller          bool      `db:"vip_caller" json:"vip_caller"`
	HasVoicemail       bool      `db:"has_voicemail" json:"has_voicemail"`
	Transcript         *string   `db:"transcript" json:"transcript,omitempty"`
	ReplyBody          *string   `db:"reply_body" json:"reply_body,omitempty"`
	BaseCents          int64     `db:"base_cents" json:"base_cents"`
	FollowUpCents      int64     `db:"follow_up_cents" json:"follow_up_cents"`
	RepeatCallerCents  int64     `db:"repeat_caller_cents" json:"repeat_caller_cents"`
	TwoWayCents        int64     `db:"two_way_cents" json:"two_way_cents"`
	PriorityCents      int64     `db:"priority_cents" json:"priority_cents"`
	TranscriptionCents int64     `db:"transcription_cents" json:"transcription_cents"`
	TotalCents         int64     `db:"total_cents" json:"total_cents"`
	DeliveryStatus     string    `db:"delivery_status" json:"delivery_status"`
	BillingStatus      string    `db:"billing_status" json:"billing_status"`
	OwnerNotified      bool      `db:"owner_notified" json:"owner_notified"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

type PaymentCustomer struct {
	UserID             string    `db:"user_id" json:"user_id"`
	ProviderCustomerID string    `db:"provider_customer_id" json:"provider_customer_id"`
	PaymentMethodRef   string    `db:"payment_method_ref" json:"payment_method_ref"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
