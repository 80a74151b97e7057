package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for UI-refresh notifications. The core emits these
// fire-and-forget; it does not depend on subscribers existing.
const (
	RoutingActivityAdded             = "activity.added"
	RoutingActivityUpdated           = "activity.updated"
	RoutingSubscriptionStatusChanged = "subscription.status_changed"
)

// ActivityAddedEvent announces a newly persisted ledger entry.
type ActivityAddedEvent struct {
	ActivityID uuid.UUID      `json:"activity_id"`
	Type       ActivityType   `json:"type"`
	Status     ActivityStatus `json:"status"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ActivityUpdatedEvent announces a terminal status transition.
type ActivityUpdatedEvent struct {
	ActivityID uuid.UUID      `json:"activity_id"`
	Status     ActivityStatus `json:"status"`
	Detail     string         `json:"detail"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// SubscriptionStatusChangedEvent announces a subscription lifecycle change.
type SubscriptionStatusChangedEvent struct {
	SubscriptionID uuid.UUID          `json:"subscription_id"`
	Status         SubscriptionStatus `json:"status"`
	OccurredAt     time.Time          `json:"occurred_at"`
}
