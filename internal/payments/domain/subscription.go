package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription is a recurring payment authorization granted to a service.
// It is never deleted, only status-transitioned.
type Subscription struct {
	ID              uuid.UUID
	ServiceKey      string
	ServiceName     string
	Amount          float64
	Currency        string
	Recurrence      string // serialized recurrence rule
	MaxPayments     *int
	Until           *time.Time
	FirstPaymentDue time.Time
	Status          SubscriptionStatus
	LastPaymentDate *time.Time
	NextPaymentDate *time.Time
	PaymentCount    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Calendar parses the subscription's serialized recurrence rule.
func (s *Subscription) Calendar() (*Calendar, error) {
	return ParseCalendar(s.Recurrence, s.FirstPaymentDue)
}

// NextOccurrence computes when the next payment becomes due: the first
// payment due date while no payment has been made, otherwise the calendar
// occurrence strictly after the last payment date.
func (s *Subscription) NextOccurrence() (time.Time, error) {
	if s.LastPaymentDate == nil {
		return s.FirstPaymentDue, nil
	}
	cal, err := s.Calendar()
	if err != nil {
		return time.Time{}, err
	}
	return cal.NextAfter(*s.LastPaymentDate), nil
}

// ExhaustedAt reports whether the subscription has run out at the given
// time, either past its end date or past its maximum payment count.
func (s *Subscription) ExhaustedAt(now time.Time) bool {
	if s.Until != nil && now.After(*s.Until) {
		return true
	}
	if s.MaxPayments != nil && s.PaymentCount >= *s.MaxPayments {
		return true
	}
	return false
}
