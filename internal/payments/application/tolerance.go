package application

import (
	"context"
	"log/slog"
	"math"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// ToleranceConfig holds the tolerance bands for invoice-vs-declared amount
// comparison. The thresholds are empirical; keep them configurable.
type ToleranceConfig struct {
	// SmallBand applies to invoices at or below BandBoundaryMsat. Rounding
	// error from rate conversion is proportionally larger at small
	// amounts, so small payments need a wider band.
	SmallBand float64
	// LargeBand applies above the boundary, keeping overcharge meaningful
	// amounts tight.
	LargeBand float64
	// BandBoundaryMsat separates the two bands.
	BandBoundaryMsat int64
}

// DefaultToleranceConfig returns the standard bands: 1% up to 10M msat,
// 0.5% above.
func DefaultToleranceConfig() ToleranceConfig {
	return ToleranceConfig{
		SmallBand:        0.01,
		LargeBand:        0.005,
		BandBoundaryMsat: 10_000_000,
	}
}

// ToleranceMatcher compares a payable invoice's embedded amount against a
// request's declared amount within a percentage tolerance band.
type ToleranceMatcher struct {
	config ToleranceConfig
	rates  domain.RateService
	logger *slog.Logger
}

// NewToleranceMatcher creates a matcher.
func NewToleranceMatcher(config ToleranceConfig, rates domain.RateService, logger *slog.Logger) *ToleranceMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToleranceMatcher{config: config, rates: rates, logger: logger}
}

// Matches reports whether the invoice amount agrees with the declared
// amount within tolerance. Fiat declared amounts are converted to
// millisatoshis first; any conversion failure rejects, since the matcher
// never approves on uncertain data.
func (m *ToleranceMatcher) Matches(ctx context.Context, invoiceMsat int64, declared domain.Money) bool {
	declaredMsat, ok := m.declaredMsat(ctx, declared)
	if !ok {
		return false
	}

	band := m.config.SmallBand
	if invoiceMsat > m.config.BandBoundaryMsat {
		band = m.config.LargeBand
	}

	diff := math.Abs(float64(invoiceMsat) - declaredMsat)
	return diff <= float64(invoiceMsat)*band
}

func (m *ToleranceMatcher) declaredMsat(ctx context.Context, declared domain.Money) (float64, bool) {
	if declared.IsSats() {
		return declared.Amount * 1000, true
	}
	if m.rates == nil {
		return 0, false
	}

	sats, err := m.rates.ConvertAmount(ctx, declared.Amount, declared.Currency, domain.CurrencySats)
	if err != nil {
		m.logger.Warn("declared amount conversion failed",
			"currency", declared.Currency,
			"error", err,
		)
		return 0, false
	}
	return sats * 1000, true
}
