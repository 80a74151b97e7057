package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityStatus represents the outcome state of a ledger entry.
type ActivityStatus string

const (
	ActivityNeutral  ActivityStatus = "neutral"
	ActivityPending  ActivityStatus = "pending"
	ActivityPositive ActivityStatus = "positive"
	ActivityNegative ActivityStatus = "negative"
)

// IsTerminal reports whether the status permits no further transition.
func (s ActivityStatus) IsTerminal() bool {
	return s == ActivityPositive || s == ActivityNegative
}

// ActivityType classifies ledger entries.
type ActivityType string

const (
	ActivityTypeAuth                ActivityType = "auth"
	ActivityTypePayment             ActivityType = "payment"
	ActivityTypeSubscriptionCreated ActivityType = "subscription_created"
	ActivityTypeSubscriptionPayment ActivityType = "subscription_payment"
	ActivityTypeTicketApproved      ActivityType = "ticket_approved"
	ActivityTypeTicketDenied        ActivityType = "ticket_denied"
)

// Activity is an append-only audit/ledger entry. Status is monotone: once
// terminal it is never revisited.
type Activity struct {
	ID                uuid.UUID
	Type              ActivityType
	ServiceKey        string
	ServiceName       string
	Detail            string
	Date              time.Time
	Amount            float64
	Currency          string
	ConvertedAmount   *float64
	ConvertedCurrency string
	RequestID         string
	SubscriptionID    *uuid.UUID
	Status            ActivityStatus
	Invoice           string
}

// CanTransitionTo reports whether the status change is allowed: only a
// pending activity may move, and only to a terminal status.
func (a *Activity) CanTransitionTo(next ActivityStatus) bool {
	return a.Status == ActivityPending && next.IsTerminal()
}
