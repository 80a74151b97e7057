package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/satchel/internal/payments/domain"
	"github.com/voltmesh/satchel/pkg/observability"
)

// SettlementOutcome is the result of one settlement attempt.
type SettlementOutcome string

const (
	// OutcomeDuplicate means an activity already exists for the request id.
	OutcomeDuplicate SettlementOutcome = "duplicate"
	// OutcomeAbandoned means the processing lock was held by a concurrent
	// attempt; this invocation did nothing.
	OutcomeAbandoned SettlementOutcome = "abandoned"
	// OutcomeRejected means validation or a resource check failed before
	// any funds moved.
	OutcomeRejected SettlementOutcome = "rejected"
	// OutcomeSettled means the wallet confirmed the payment.
	OutcomeSettled SettlementOutcome = "settled"
	// OutcomeFailed means the wallet call failed after approval.
	OutcomeFailed SettlementOutcome = "failed"
)

// Executor drives wallet payments to a terminal activity state and reports
// outcomes to the original requester. The approval response is sent before
// the wallet call resolves so the counterparty never times out waiting for
// settlement; the final result follows through the same notifier.
type Executor struct {
	activities    domain.ActivityRepository
	statuses      domain.PaymentStatusRepository
	subscriptions domain.SubscriptionRepository
	writer        *ActivityWriter
	normalizer    *Normalizer
	matcher       *ToleranceMatcher
	validator     *Validator
	locks         *LockManager
	notifier      domain.Notifier
	events        Notifications
	preferred     string
	logger        *slog.Logger
	now           func() time.Time
}

// ExecutorDeps bundles the executor's collaborators.
type ExecutorDeps struct {
	Activities    domain.ActivityRepository
	Statuses      domain.PaymentStatusRepository
	Subscriptions domain.SubscriptionRepository
	Writer        *ActivityWriter
	Normalizer    *Normalizer
	Matcher       *ToleranceMatcher
	Validator     *Validator
	Locks         *LockManager
	Notifier      domain.Notifier
	Events        Notifications
	// PreferredCurrency is the user's display currency; empty disables
	// display conversion.
	PreferredCurrency string
	Logger            *slog.Logger
	// Now is a clock override for tests.
	Now func() time.Time
}

// NewExecutor creates a settlement executor.
func NewExecutor(deps ExecutorDeps) *Executor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Executor{
		activities:    deps.Activities,
		statuses:      deps.Statuses,
		subscriptions: deps.Subscriptions,
		writer:        deps.Writer,
		normalizer:    deps.Normalizer,
		matcher:       deps.Matcher,
		validator:     deps.Validator,
		locks:         deps.Locks,
		notifier:      deps.Notifier,
		events:        deps.Events,
		preferred:     deps.PreferredCurrency,
		logger:        deps.Logger,
		now:           deps.Now,
	}
}

// ExecutePayment settles a one-off payment request that the user approved.
func (e *Executor) ExecutePayment(ctx context.Context, req *domain.PendingRequest, wallet domain.Wallet) (SettlementOutcome, error) {
	ctx = observability.WithRequestID(ctx, req.ID)

	duplicate, err := e.activities.HasRequestID(ctx, req.ID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("check request dedup: %w", err)
	}
	if duplicate {
		e.logger.Info("duplicate payment request ignored", "request_id", req.ID)
		return OutcomeDuplicate, nil
	}

	meta := req.Payment
	if wallet == nil {
		return e.reject(ctx, req, domain.ActivityTypePayment, nil, "no wallet linked")
	}

	money, err := e.normalizer.Normalize(meta.AmountMsat, UnitMillisat)
	if err != nil {
		return OutcomeFailed, err
	}

	activity, err := e.beginSettlement(ctx, req, domain.ActivityTypePayment, money, meta.Invoice, nil)
	if err != nil {
		return OutcomeFailed, err
	}

	if err := e.notifier.Approved(ctx, req, nil); err != nil {
		e.logger.Warn("approval notification failed", "request_id", req.ID, "error", err)
	}

	return e.settle(ctx, req, activity, wallet, meta.Invoice, meta.AmountMsat, nil)
}

// ExecuteSubscriptionPayment settles a recurring payment request against
// stored subscription state. Concurrent attempts for the same subscription
// are serialized by the lock manager; a lock timeout means a concurrent
// holder is completing the work and this invocation is abandoned.
func (e *Executor) ExecuteSubscriptionPayment(ctx context.Context, req *domain.PendingRequest, wallet domain.Wallet) (SettlementOutcome, error) {
	meta := req.Recurring
	ctx = observability.WithRequestID(ctx, req.ID)
	ctx = observability.WithSubscriptionID(ctx, meta.SubscriptionID.String())

	duplicate, err := e.activities.HasRequestID(ctx, req.ID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("check request dedup: %w", err)
	}
	if duplicate {
		e.logger.Info("duplicate subscription payment ignored", "request_id", req.ID)
		return OutcomeDuplicate, nil
	}

	outcome := OutcomeFailed
	err = e.locks.WithLock(ctx, meta.SubscriptionID, func(ctx context.Context) error {
		// Re-check under the lock: the concurrent holder may have already
		// settled this exact delivery.
		duplicate, err := e.activities.HasRequestID(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("check request dedup: %w", err)
		}
		if duplicate {
			outcome = OutcomeDuplicate
			return nil
		}

		declared := domain.Money{Amount: meta.Amount, Currency: meta.Currency}
		sub, err := e.validator.Validate(ctx, meta.SubscriptionID, declared, e.now())
		if err != nil {
			var rej *domain.RejectionError
			if errors.As(err, &rej) {
				outcome, err = e.reject(ctx, req, domain.ActivityTypeSubscriptionPayment, &meta.SubscriptionID, rej.Reason)
				return err
			}
			return err
		}

		if !e.matcher.Matches(ctx, meta.AmountMsat, declared) {
			outcome, err = e.reject(ctx, req, domain.ActivityTypeSubscriptionPayment, &meta.SubscriptionID,
				"invoice amount does not match subscribed amount")
			return err
		}

		if wallet == nil {
			outcome, err = e.reject(ctx, req, domain.ActivityTypeSubscriptionPayment, &meta.SubscriptionID, "no wallet linked")
			return err
		}

		needSats := int64(math.Ceil(float64(meta.AmountMsat) / 1000))
		if balance, balErr := wallet.GetBalance(ctx); balErr == nil && balance < needSats {
			outcome, err = e.reject(ctx, req, domain.ActivityTypeSubscriptionPayment, &meta.SubscriptionID, "insufficient balance")
			return err
		}

		money, err := e.normalizer.Normalize(meta.AmountMsat, UnitMillisat)
		if err != nil {
			return err
		}

		activity, err := e.beginSettlement(ctx, req, domain.ActivityTypeSubscriptionPayment, money, meta.Invoice, &meta.SubscriptionID)
		if err != nil {
			return err
		}

		if err := e.notifier.Approved(ctx, req, nil); err != nil {
			e.logger.Warn("approval notification failed", "request_id", req.ID, "error", err)
		}

		outcome, err = e.settle(ctx, req, activity, wallet, meta.Invoice, meta.AmountMsat, sub)
		return err
	})
	if errors.Is(err, domain.ErrLockTimeout) {
		e.logger.Info("subscription settlement abandoned, concurrent attempt in flight",
			"subscription_id", meta.SubscriptionID,
		)
		return OutcomeAbandoned, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}
	return outcome, nil
}

// beginSettlement writes the pending ledger entry and the started log
// record. This is the APPROVED -> SETTLING transition.
func (e *Executor) beginSettlement(ctx context.Context, req *domain.PendingRequest, typ domain.ActivityType, money domain.Money, invoice string, subscriptionID *uuid.UUID) (*domain.Activity, error) {
	converted := e.normalizer.ConvertForDisplay(ctx, money, e.preferred)
	convertedCurrency := ""
	if converted != nil {
		convertedCurrency = e.preferred
	}

	full := func() *domain.Activity {
		return &domain.Activity{
			ID:                uuid.New(),
			Type:              typ,
			ServiceKey:        req.ServiceKey,
			ServiceName:       req.ServiceName,
			Detail:            "payment in progress",
			Date:              e.now(),
			Amount:            money.Amount,
			Currency:          money.Currency,
			ConvertedAmount:   converted,
			ConvertedCurrency: convertedCurrency,
			RequestID:         req.ID,
			SubscriptionID:    subscriptionID,
			Status:            domain.ActivityPending,
			Invoice:           invoice,
		}
	}
	minimal := func() *domain.Activity {
		return &domain.Activity{
			ID:             uuid.New(),
			Type:           typ,
			ServiceKey:     req.ServiceKey,
			Date:           e.now(),
			Amount:         money.Amount,
			Currency:       money.Currency,
			RequestID:      req.ID,
			SubscriptionID: subscriptionID,
			Status:         domain.ActivityPending,
			Invoice:        invoice,
		}
	}
	bare := func() *domain.Activity {
		return &domain.Activity{
			ID:        uuid.New(),
			Type:      typ,
			Date:      e.now(),
			RequestID: req.ID,
			Status:    domain.ActivityPending,
			Invoice:   invoice,
		}
	}

	activity, err := e.writer.Write(ctx, full, minimal, bare)
	if err != nil {
		return nil, err
	}

	if err := e.statuses.Append(ctx, domain.PaymentStatusEntry{
		Invoice:    invoice,
		ActionType: domain.PaymentStarted,
		CreatedAt:  e.now(),
	}); err != nil {
		e.logger.Error("failed to append started entry", "invoice", invoice, "error", err)
	}

	return activity, nil
}

// settle performs the wallet call and writes the terminal state. Only one
// of the executor and the monitor ever performs the terminal write for a
// given activity; the executor does so when the wallet returns within this
// invocation.
func (e *Executor) settle(ctx context.Context, req *domain.PendingRequest, activity *domain.Activity, wallet domain.Wallet, invoice string, amountMsat int64, sub *domain.Subscription) (SettlementOutcome, error) {
	settlementID, err := wallet.SendPayment(ctx, invoice, amountMsat)
	if err != nil {
		e.logger.Error("payment failed", "request_id", req.ID, "error", err)
		e.finishActivity(ctx, activity.ID, domain.ActivityNegative, "payment failed: "+err.Error())
		e.appendStatus(ctx, invoice, domain.PaymentFailed)
		e.notifySettled(ctx, req, domain.SettlementResult{Settled: false, Detail: "payment failed"})
		return OutcomeFailed, nil
	}

	e.finishActivity(ctx, activity.ID, domain.ActivityPositive, "payment completed")
	e.appendStatus(ctx, invoice, domain.PaymentCompleted)

	if sub != nil {
		paidAt := e.now()
		var next *time.Time
		if cal, calErr := sub.Calendar(); calErr == nil {
			if n := cal.NextAfter(paidAt); !n.IsZero() {
				next = &n
			}
		}
		if err := e.subscriptions.UpdateLastPayment(ctx, sub.ID, paidAt, next); err != nil {
			e.logger.Error("failed to advance subscription",
				"subscription_id", sub.ID,
				"error", err,
			)
		}
	}

	e.notifySettled(ctx, req, domain.SettlementResult{
		Settled:      true,
		SettlementID: settlementID,
		Detail:       "payment completed",
	})
	return OutcomeSettled, nil
}

// reject writes a terminal negative activity and tells the requester why.
func (e *Executor) reject(ctx context.Context, req *domain.PendingRequest, typ domain.ActivityType, subscriptionID *uuid.UUID, reason string) (SettlementOutcome, error) {
	full := func() *domain.Activity {
		return &domain.Activity{
			ID:             uuid.New(),
			Type:           typ,
			ServiceKey:     req.ServiceKey,
			ServiceName:    req.ServiceName,
			Detail:         reason,
			Date:           e.now(),
			RequestID:      req.ID,
			SubscriptionID: subscriptionID,
			Status:         domain.ActivityNegative,
		}
	}
	bare := func() *domain.Activity {
		return &domain.Activity{
			ID:        uuid.New(),
			Type:      typ,
			Detail:    reason,
			Date:      e.now(),
			RequestID: req.ID,
			Status:    domain.ActivityNegative,
		}
	}
	if _, err := e.writer.Write(ctx, full, bare); err != nil {
		e.logger.Error("failed to record rejection", "request_id", req.ID, "error", err)
	}

	if err := e.notifier.Declined(ctx, req, reason); err != nil {
		e.logger.Warn("decline notification failed", "request_id", req.ID, "error", err)
	}
	return OutcomeRejected, nil
}

func (e *Executor) finishActivity(ctx context.Context, id uuid.UUID, status domain.ActivityStatus, detail string) {
	if err := e.activities.UpdateStatus(ctx, id, status, detail); err != nil {
		e.logger.Error("failed to finish activity", "activity_id", id, "error", err)
		return
	}
	e.events.activityUpdated(ctx, id, status, detail)
}

func (e *Executor) appendStatus(ctx context.Context, invoice string, action domain.PaymentActionType) {
	if err := e.statuses.Append(ctx, domain.PaymentStatusEntry{
		Invoice:    invoice,
		ActionType: action,
		CreatedAt:  e.now(),
	}); err != nil {
		e.logger.Error("failed to append payment status", "invoice", invoice, "error", err)
	}
}

func (e *Executor) notifySettled(ctx context.Context, req *domain.PendingRequest, result domain.SettlementResult) {
	if err := e.notifier.Settled(ctx, req, result); err != nil {
		e.logger.Warn("settlement notification failed", "request_id", req.ID, "error", err)
	}
}
