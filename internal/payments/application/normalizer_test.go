package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

func TestNormalize_Millisats(t *testing.T) {
	n := NewNormalizer(nil, nil)
	money, err := n.Normalize(21_000, UnitMillisat)
	require.NoError(t, err)
	require.Equal(t, domain.Money{Amount: 21, Currency: domain.CurrencySats}, money)
}

func TestNormalize_FiatMinorUnits(t *testing.T) {
	n := NewNormalizer(nil, nil)
	money, err := n.Normalize(1250, "usd")
	require.NoError(t, err)
	require.Equal(t, domain.Money{Amount: 12.5, Currency: "USD"}, money)
}

func TestNormalize_MissingUnit(t *testing.T) {
	n := NewNormalizer(nil, nil)
	_, err := n.Normalize(100, "")
	require.Error(t, err)
}

func TestConvertForDisplay_SameCurrencySkipped(t *testing.T) {
	n := NewNormalizer(fakeRates{rate: 2}, nil)
	got := n.ConvertForDisplay(context.Background(), domain.Money{Amount: 10, Currency: "sats"}, "SATS")
	require.Nil(t, got)
}

func TestConvertForDisplay_Converts(t *testing.T) {
	n := NewNormalizer(fakeRates{rate: 0.5}, nil)
	got := n.ConvertForDisplay(context.Background(), domain.Money{Amount: 10, Currency: "SATS"}, "EUR")
	require.NotNil(t, got)
	require.InDelta(t, 5, *got, 1e-9)
}

func TestConvertForDisplay_FailureIsSilent(t *testing.T) {
	n := NewNormalizer(fakeRates{err: errors.New("rates down")}, nil)
	got := n.ConvertForDisplay(context.Background(), domain.Money{Amount: 10, Currency: "SATS"}, "EUR")
	require.Nil(t, got)
}

func TestConvertForDisplay_NoRateService(t *testing.T) {
	n := NewNormalizer(nil, nil)
	got := n.ConvertForDisplay(context.Background(), domain.Money{Amount: 10, Currency: "SATS"}, "EUR")
	require.Nil(t, got)
}
