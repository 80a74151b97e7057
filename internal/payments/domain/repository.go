package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityRepository persists ledger entries.
type ActivityRepository interface {
	Add(ctx context.Context, activity *Activity) error
	FindByID(ctx context.Context, id uuid.UUID) (*Activity, error)
	// FindPendingWithInvoice returns activities awaiting settlement that
	// carry an invoice, for the monitor to pick up.
	FindPendingWithInvoice(ctx context.Context) ([]*Activity, error)
	// UpdateStatus moves an activity to a terminal status. Implementations
	// must refuse to rewrite an activity that is already terminal.
	UpdateStatus(ctx context.Context, id uuid.UUID, status ActivityStatus, detail string) error
	HasRequestID(ctx context.Context, requestID string) (bool, error)
}

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository interface {
	Add(ctx context.Context, subscription *Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// UpdateLastPayment advances the last payment date and payment count
	// after a confirmed charge.
	UpdateLastPayment(ctx context.Context, id uuid.UUID, paidAt time.Time, next *time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status SubscriptionStatus) error
}

// PaymentStatusRepository is the append-only settlement history log.
type PaymentStatusRepository interface {
	Append(ctx context.Context, entry PaymentStatusEntry) error
	// ListByInvoice returns entries for the invoice, oldest first.
	ListByInvoice(ctx context.Context, invoice string) ([]PaymentStatusEntry, error)
}

// ProcessingLockRepository is the per-subscription advisory lock primitive.
// TryAcquire is a conditional insert: false means another settlement
// attempt currently holds the lock.
type ProcessingLockRepository interface {
	TryAcquire(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
	Release(ctx context.Context, subscriptionID uuid.UUID) error
}

// RequestMarkerRepository records that a request id has been resolved, so
// re-delivery of the same protocol event is dropped after resolution.
type RequestMarkerRepository interface {
	MarkResolved(ctx context.Context, requestID string, approved bool) error
	IsResolved(ctx context.Context, requestID string) (bool, error)
}
