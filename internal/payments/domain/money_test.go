package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameCurrency(t *testing.T) {
	require.True(t, SameCurrency("SATS", "sats"))
	require.True(t, SameCurrency("sat", "SATS"))
	require.True(t, SameCurrency("usd", "USD"))
	require.False(t, SameCurrency("SATS", "USD"))
}

func TestMoneyIsSats(t *testing.T) {
	require.True(t, Money{Currency: "sats"}.IsSats())
	require.True(t, Money{Currency: "SAT"}.IsSats())
	require.False(t, Money{Currency: "EUR"}.IsSats())
}

func TestActivityStatusTransitions(t *testing.T) {
	a := &Activity{Status: ActivityPending}
	require.True(t, a.CanTransitionTo(ActivityPositive))
	require.True(t, a.CanTransitionTo(ActivityNegative))
	require.False(t, a.CanTransitionTo(ActivityNeutral))

	a.Status = ActivityPositive
	require.False(t, a.CanTransitionTo(ActivityNegative))
}

func TestRejectionReason(t *testing.T) {
	err := NewRejection("payment not due", ErrNotDue)
	require.Equal(t, "payment not due", RejectionReason(err))
	require.ErrorIs(t, err, ErrNotDue)
	require.Equal(t, "boom", RejectionReason(errorString("boom")))
}

type errorString string

func (e errorString) Error() string { return string(e) }

func TestPermissionMatches(t *testing.T) {
	one := 1
	alsoOne := 1
	four := 4

	require.True(t, Permission{Capability: "get_public_key"}.Matches(Permission{Capability: "get_public_key"}))
	require.False(t, Permission{Capability: "get_public_key"}.Matches(Permission{Capability: "sign_event"}))
	require.True(t, Permission{Capability: "sign_event", EventKind: &one}.Matches(Permission{Capability: "sign_event", EventKind: &alsoOne}))
	require.False(t, Permission{Capability: "sign_event", EventKind: &one}.Matches(Permission{Capability: "sign_event", EventKind: &four}))
	require.False(t, Permission{Capability: "sign_event"}.Matches(Permission{Capability: "sign_event", EventKind: &one}))
	require.False(t, Permission{Capability: "sign_event", EventKind: &one}.Matches(Permission{Capability: "sign_event"}))
}
