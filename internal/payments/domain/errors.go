package domain

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrAmountMismatch       = errors.New("amount does not match subscription")
	ErrNotDue               = errors.New("payment is not due yet")
	ErrNoWalletAvailable    = errors.New("no wallet available")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrLockTimeout          = errors.New("could not acquire processing lock")
	ErrActivityNotFound     = errors.New("activity not found")
	ErrActivityTerminal     = errors.New("activity already in terminal state")
	ErrRequestNotFound      = errors.New("request not found")
	ErrRequestResolved      = errors.New("request already resolved")
	ErrPermissionDenied     = errors.New("permission not granted")
)

// RejectionError is a validation rejection surfaced to the counterparty
// with a specific human-readable reason. It is never retried.
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *RejectionError) Unwrap() error { return e.Err }

// NewRejection wraps a sentinel error with a counterparty-facing reason.
func NewRejection(reason string, err error) *RejectionError {
	return &RejectionError{Reason: reason, Err: err}
}

// RejectionReason extracts the human-readable reason from an error,
// falling back to the error text.
func RejectionReason(err error) string {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
