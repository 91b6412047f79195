package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"textback/internal/enrich"
	"textback/internal/metrics"
	"textback/internal/models"
	"textback/internal/notify"
	"textback/internal/pricing"
	"textback/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CallEvent is one authenticated missed-call webhook delivery.
type CallEvent struct {
	ProviderCallID string
	CallerNumber   string
	CalledNumber   string
	RecordingURL   string
}

type CallLogStore interface {
	Insert(ctx context.Context, input store.CallLogInput) error
	UpdateOutcome(ctx context.Context, providerCallID string, outcome store.CallOutcome) error
	HasPriorCall(ctx context.Context, userID, callerNumber, excludeProviderCallID string) (bool, error)
}

type UserDirectory interface {
	GetByBusinessNumber(ctx context.Context, businessNumber string) (models.User, error)
	IsVIPCaller(ctx context.Context, userID, callerNumber string) (bool, error)
}

type WalletReader interface {
	Get(ctx context.Context, userID string) (models.Wallet, error)
}

type AlertGuard interface {
	MarkIfDue(ctx context.Context, userID string, levelCents int64, cooldown time.Duration) (bool, error)
}

type Ledger interface {
	Debit(ctx context.Context, req LedgerRequest) (int64, error)
}

type UserNotifier interface {
	LowBalance(ctx context.Context, userID, notifyNumber string, balanceCents, levelCents int64)
	OperatorAlert(ctx context.Context, userID, reference string, cause error)
}

type Reloader interface {
	MaybeReload(ctx context.Context, userID string)
}

type BillingPolicy struct {
	MinBalanceCents  int64
	AlertLevelsCents []int64
	AlertCooldown    time.Duration
	ServiceNumber    string
}

// BillingService runs the end-to-end missed-call workflow: dedup, price,
// attempt delivery, debit, audit, alert. Invocations are concurrent with
// each other; all contention is resolved by the stores' atomic writes.
type BillingService struct {
	calls       CallLogStore
	users       UserDirectory
	wallets     WalletReader
	alerts      AlertGuard
	ledger      Ledger
	pricer      pricing.Calculator
	messenger   notify.Messenger
	transcriber enrich.Transcriber
	responder   enrich.Responder
	notifier    UserNotifier
	reloader    Reloader
	policy      BillingPolicy
	logger      *logrus.Logger
}

func NewBillingService(calls CallLogStore, users UserDirectory, wallets WalletReader, alerts AlertGuard, ledger Ledger, pricer pricing.Calculator, messenger notify.Messenger, transcriber enrich.Transcriber, responder enrich.Responder, notifier UserNotifier, reloader Reloader, policy BillingPolicy, logger *logrus.Logger) *BillingService {
	return &BillingService{
		calls:       calls,
		users:       users,
		wallets:     wallets,
		alerts:      alerts,
		ledger:      ledger,
		pricer:      pricer,
		messenger:   messenger,
		transcriber: transcriber,
		responder:   responder,
		notifier:    notifier,
		reloader:    reloader,
		policy:      policy,
		logger:      logger,
	}
}

// ProcessMissedCall handles one delivery of a missed-call event. Safe to
// call concurrently with retried deliveries of the same event: the call
// log's unique constraint admits exactly one.
func (s *BillingService) ProcessMissedCall(ctx context.Context, event CallEvent) error {
	log := s.logger.WithFields(logrus.Fields{
		"call_id": event.ProviderCallID,
		"caller":  event.CallerNumber,
		"called":  event.CalledNumber,
	})

	hasVoicemail := event.RecordingURL != ""
	err := s.calls.Insert(ctx, store.CallLogInput{
		ID:             uuid.NewString(),
		ProviderCallID: event.ProviderCallID,
		CallerNumber:   event.CallerNumber,
		CalledNumber:   event.CalledNumber,
		HasVoicemail:   hasVoicemail,
	})
	if errors.Is(err, store.ErrDuplicateCall) {
		log.Info("Duplicate call delivery, already handled")
		metrics.WebhooksReceived.WithLabelValues("telephony", "duplicate").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	user, err := s.users.GetByBusinessNumber(ctx, event.CalledNumber)
	if err != nil {
		_ = s.calls.UpdateOutcome(ctx, event.ProviderCallID, store.CallOutcome{
			DeliveryStatus: models.DeliverySkipped,
			BillingStatus:  models.BillingSkipped,
		})
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("No account owns the called number")
			return nil
		}
		return err
	}
	log = log.WithField("user_id", user.ID)

	wallet, err := s.wallets.Get(ctx, user.ID)
	if err != nil {
		_ = s.calls.UpdateOutcome(ctx, event.ProviderCallID, store.CallOutcome{
			UserID:         &user.ID,
			DeliveryStatus: models.DeliverySkipped,
			BillingStatus:  models.BillingError,
		})
		s.notifier.OperatorAlert(ctx, user.ID, event.ProviderCallID, err)
		return err
	}

	if wallet.BalanceCents < s.policy.MinBalanceCents {
		// Below the floor: abort before incurring any delivery cost.
		log.WithField("balance_cents", wallet.BalanceCents).Info("Balance below floor, skipping delivery")
		notified := s.sweepAlerts(ctx, user, wallet.BalanceCents)
		_ = s.calls.UpdateOutcome(ctx, event.ProviderCallID, store.CallOutcome{
			UserID:         &user.ID,
			DeliveryStatus: models.DeliverySkipped,
			BillingStatus:  models.BillingSkipped,
			OwnerNotified:  notified,
		})
		metrics.CallsBilled.WithLabelValues(models.BillingSkipped).Inc()
		s.triggerReload(ctx, user.ID)
		return nil
	}

	vip := false
	if user.VIPPriorityEnabled {
		vip, err = s.users.IsVIPCaller(ctx, user.ID, event.CallerNumber)
		if err != nil {
			log.WithError(err).Warn("VIP lookup failed, treating caller as standard")
			vip = false
		}
	}
	prior := false
	if user.RepeatCallerEnabled {
		prior, err = s.calls.HasPriorCall(ctx, user.ID, event.CallerNumber, event.ProviderCallID)
		if err != nil {
			log.WithError(err).Warn("Prior-call lookup failed, treating caller as new")
			prior = false
		}
	}

	transcript := ""
	if hasVoicemail && user.TranscriptionEnabled && s.transcriber != nil {
		// Nonessential enrichment: a failure means no transcript, never
		// an aborted workflow.
		transcript, _ = s.transcriber.Transcribe(ctx, event.RecordingURL)
	}

	reply := ""
	if s.responder != nil {
		reply, err = s.responder.Compose(ctx, enrich.ComposeRequest{
			BusinessName: user.Username,
			CallerNumber: event.CallerNumber,
			Transcript:   transcript,
			TwoWay:       user.TwoWayEnabled,
		})
		if err != nil {
			reply = ""
		}
	}
	if reply == "" {
		reply = enrich.FallbackReply(user.Username)
	}

	cost := s.pricer.Compute(pricing.Plan(user.Plan), pricing.Features{
		FollowUp:      user.FollowUpEnabled,
		RepeatCaller:  user.RepeatCallerEnabled,
		TwoWay:        user.TwoWayEnabled,
		VIPPriority:   user.VIPPriorityEnabled,
		Transcription: user.TranscriptionEnabled,
	}, pricing.CallContext{
		VIPCaller:    vip,
		PriorHistory: prior,
		HasVoicemail: hasVoicemail,
	})

	// Delivery completes before the ledger transaction begins. An open
	// transaction must never span an unbounded-latency network call.
	deliveryStatus := models.DeliverySent
	if _, err := s.messenger.Send(ctx, s.policy.ServiceNumber, event.CallerNumber, reply); err != nil {
		deliveryStatus = models.DeliveryFailed
		log.WithError(err).Warn("Delivery failed, billing proceeds")
	}

	// Billing-on-attempt: the upstream provider charged us the moment
	// delivery was attempted, so a failed send does not waive the debit.
	ref := event.ProviderCallID
	billingStatus := models.BillingCharged
	balanceAfter := wallet.BalanceCents
	newBalance, debitErr := s.ledger.Debit(ctx, LedgerRequest{
		UserID:      user.ID,
		AmountCents: cost.TotalCents(),
		Description: "Missed call text-back to " + event.CallerNumber,
		ReferenceID: &ref,
	})
	var insufficient *InsufficientBalanceError
	switch {
	case debitErr == nil:
		balanceAfter = newBalance
	case errors.As(debitErr, &insufficient):
		// The floor check above is stale by now; a concurrent drain in
		// the meantime is an expected outcome, not a bug.
		billingStatus = models.BillingInsufficient
		balanceAfter = insufficient.AvailableCents
		log.WithField("balance_cents", balanceAfter).Info("Wallet drained between floor check and debit")
	default:
		// Service was rendered but the charge failed for an unexpected
		// reason. Page the operator; never swallow this.
		billingStatus = models.BillingError
		s.notifier.OperatorAlert(ctx, user.ID, event.ProviderCallID, debitErr)
	}

	notified := s.sweepAlerts(ctx, user, balanceAfter)

	outcome := store.CallOutcome{
		UserID:             &user.ID,
		VIPCaller:          vip,
		BaseCents:          cost.BaseCents,
		FollowUpCents:      cost.FollowUpCents,
		RepeatCallerCents:  cost.RepeatCallerCents,
		TwoWayCents:        cost.TwoWayCents,
		PriorityCents:      cost.PriorityCents,
		TranscriptionCents: cost.TranscriptionCents,
		TotalCents:         cost.TotalCents(),
		DeliveryStatus:     deliveryStatus,
		BillingStatus:      billingStatus,
		OwnerNotified:      notified,
	}
	if transcript != "" {
		outcome.Transcript = &transcript
	}
	outcome.ReplyBody = &reply
	// The audit row is written unconditionally, including on partial
	// failure: it is the only record for dispute resolution.
	if err := s.calls.UpdateOutcome(ctx, event.ProviderCallID, outcome); err != nil {
		log.WithError(err).Error("Failed to record call outcome")
	}
	metrics.CallsBilled.WithLabelValues(billingStatus).Inc()

	s.triggerReload(ctx, user.ID)
	return nil
}

// sweepAlerts runs the alert guard for every configured level at or above
// the current balance and fires notifications where it wins. Returns true
// when at least one notification went out.
func (s *BillingService) sweepAlerts(ctx context.Context, user models.User, balanceCents int64) bool {
	notified := false
	for _, level := range s.policy.AlertLevelsCents {
		if balanceCents > level {
			continue
		}
		due, err := s.alerts.MarkIfDue(ctx, user.ID, level, s.policy.AlertCooldown)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", user.ID).Warn("Alert guard failed")
			continue
		}
		if due {
			s.notifier.LowBalance(ctx, user.ID, user.NotifyNumber, balanceCents, level)
			notified = true
		}
	}
	return notified
}

func (s *BillingService) triggerReload(ctx context.Context, userID string) {
	if s.reloader == nil {
		return
	}
	s.reloader.MaybeReload(ctx, userID)
}
