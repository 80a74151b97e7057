package domain

import "time"

// PaymentActionType marks a step in a payment's settlement history.
type PaymentActionType string

const (
	PaymentStarted   PaymentActionType = "started"
	PaymentCompleted PaymentActionType = "completed"
	PaymentFailed    PaymentActionType = "failed"
)

// PaymentStatusEntry is an append-only log record keyed by invoice string.
// The settlement monitor uses it to measure how long a payment has been
// outstanding after a restart.
type PaymentStatusEntry struct {
	Invoice    string
	ActionType PaymentActionType
	CreatedAt  time.Time
}
