package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

func TestMatches_ExactSatsAmount(t *testing.T) {
	m := NewToleranceMatcher(DefaultToleranceConfig(), nil, nil)
	ok := m.Matches(context.Background(), 1_000_000, domain.Money{Amount: 1000, Currency: "sats"})
	require.True(t, ok)
}

func TestMatches_SmallBandBoundary(t *testing.T) {
	m := NewToleranceMatcher(DefaultToleranceConfig(), nil, nil)

	// 10,000,000 msat gets the 1% band: up to 100,000 msat of drift.
	ok := m.Matches(context.Background(), 10_000_000, domain.Money{Amount: 10_100, Currency: "sats"})
	require.True(t, ok)

	ok = m.Matches(context.Background(), 10_000_000, domain.Money{Amount: 10_101, Currency: "sats"})
	require.False(t, ok)
}

func TestMatches_LargeBandAboveBoundary(t *testing.T) {
	m := NewToleranceMatcher(DefaultToleranceConfig(), nil, nil)

	// 20,000,000 msat gets the 0.5% band: up to 100,000 msat of drift.
	ok := m.Matches(context.Background(), 20_000_000, domain.Money{Amount: 20_100, Currency: "sats"})
	require.True(t, ok)

	ok = m.Matches(context.Background(), 20_000_000, domain.Money{Amount: 20_101, Currency: "sats"})
	require.False(t, ok)
}

func TestMatches_JustAboveBoundaryUsesTightBand(t *testing.T) {
	m := NewToleranceMatcher(DefaultToleranceConfig(), nil, nil)

	// 10,000,001 msat is above the boundary; 0.6% drift exceeds 0.5%.
	ok := m.Matches(context.Background(), 10_000_001, domain.Money{Amount: 10_060, Currency: "sats"})
	require.False(t, ok)
}

func TestMatches_FiatDeclaredConverts(t *testing.T) {
	// 1 fiat unit buys 1000 sats.
	m := NewToleranceMatcher(DefaultToleranceConfig(), fakeRates{rate: 1000}, nil)
	ok := m.Matches(context.Background(), 10_000_000, domain.Money{Amount: 10, Currency: "USD"})
	require.True(t, ok)
}

func TestMatches_ConversionFailureRejects(t *testing.T) {
	m := NewToleranceMatcher(DefaultToleranceConfig(), fakeRates{err: errors.New("rates down")}, nil)
	ok := m.Matches(context.Background(), 10_000_000, domain.Money{Amount: 10, Currency: "USD"})
	require.False(t, ok)
}

func TestMatches_FiatWithoutRateServiceRejects(t *testing.T) {
	m := NewToleranceMatcher(DefaultToleranceConfig(), nil, nil)
	ok := m.Matches(context.Background(), 10_000_000, domain.Money{Amount: 10, Currency: "USD"})
	require.False(t, ok)
}
