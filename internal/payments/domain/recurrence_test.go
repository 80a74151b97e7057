package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCalendar_InvalidRule(t *testing.T) {
	_, err := ParseCalendar("NOT-A-RULE", time.Now())
	require.Error(t, err)
}

func TestNextAfter_Monthly(t *testing.T) {
	firstDue := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	cal, err := ParseCalendar("FREQ=MONTHLY", firstDue)
	require.NoError(t, err)

	next := cal.NextAfter(firstDue)
	require.Equal(t, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), next)

	next = cal.NextAfter(next)
	require.Equal(t, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), next)
}

func TestNextAfter_CountExhausted(t *testing.T) {
	firstDue := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	cal, err := ParseCalendar("FREQ=MONTHLY;COUNT=2", firstDue)
	require.NoError(t, err)

	// Occurrences are Jan 15 and Feb 15; nothing follows.
	next := cal.NextAfter(time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC))
	require.True(t, next.IsZero())
}

func TestNextOccurrence_FirstPayment(t *testing.T) {
	firstDue := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	sub := &Subscription{
		Recurrence:      "FREQ=WEEKLY",
		FirstPaymentDue: firstDue,
	}

	next, err := sub.NextOccurrence()
	require.NoError(t, err)
	require.Equal(t, firstDue, next)
}

func TestNextOccurrence_AfterLastPayment(t *testing.T) {
	firstDue := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	last := firstDue
	sub := &Subscription{
		Recurrence:      "FREQ=WEEKLY",
		FirstPaymentDue: firstDue,
		LastPaymentDate: &last,
	}

	next, err := sub.NextOccurrence()
	require.NoError(t, err)
	require.Equal(t, firstDue.AddDate(0, 0, 7), next)
}

func TestExhaustedAt(t *testing.T) {
	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	max := 12

	sub := &Subscription{Until: &until, MaxPayments: &max, PaymentCount: 3}
	require.False(t, sub.ExhaustedAt(until.Add(-time.Hour)))
	require.True(t, sub.ExhaustedAt(until.Add(time.Hour)))

	sub = &Subscription{MaxPayments: &max, PaymentCount: 12}
	require.True(t, sub.ExhaustedAt(time.Now()))
}
