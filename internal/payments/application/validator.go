package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// Validator gates recurring payments against stored subscription state.
// It is read-only; the caller advances the last payment date only after a
// confirmed charge.
type Validator struct {
	subscriptions domain.SubscriptionRepository
}

// NewValidator creates a subscription validator.
func NewValidator(subscriptions domain.SubscriptionRepository) *Validator {
	return &Validator{subscriptions: subscriptions}
}

// Validate loads the subscription and checks that the declared terms match
// exactly and that the payment is due. Declared-vs-subscription comparison
// is exact equality after normalization; tolerance applies only to the
// invoice-vs-declared comparison.
func (v *Validator) Validate(ctx context.Context, subscriptionID uuid.UUID, declared domain.Money, now time.Time) (*domain.Subscription, error) {
	sub, err := v.subscriptions.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscription %s: %w", subscriptionID, err)
	}
	if sub == nil {
		return nil, domain.NewRejection("subscription not found", domain.ErrSubscriptionNotFound)
	}

	if sub.Status != domain.SubscriptionActive {
		return nil, domain.NewRejection(
			fmt.Sprintf("subscription is %s", sub.Status),
			domain.ErrSubscriptionInactive,
		)
	}
	if sub.ExhaustedAt(now) {
		return nil, domain.NewRejection("subscription has expired", domain.ErrSubscriptionInactive)
	}

	if declared.Amount != sub.Amount || !domain.SameCurrency(declared.Currency, sub.Currency) {
		return nil, domain.NewRejection(
			fmt.Sprintf("declared %g %s does not match subscribed %g %s",
				declared.Amount, declared.Currency, sub.Amount, sub.Currency),
			domain.ErrAmountMismatch,
		)
	}

	next, err := sub.NextOccurrence()
	if err != nil {
		return nil, fmt.Errorf("compute next occurrence: %w", err)
	}
	if next.IsZero() {
		return nil, domain.NewRejection("no further payments scheduled", domain.ErrSubscriptionInactive)
	}
	if now.Before(next) {
		return nil, domain.NewRejection(
			fmt.Sprintf("payment not due until %s", next.Format(time.RFC3339)),
			domain.ErrNotDue,
		)
	}

	return sub, nil
}
