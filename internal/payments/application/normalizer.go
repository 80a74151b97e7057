// Package application implements the payment request reconciliation
// engine: validation, locking, settlement, monitoring, and dispatch.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// AmountUnit tags the protocol-level representation of a raw amount.
type AmountUnit string

const (
	// UnitMillisat marks Lightning millisatoshi amounts.
	UnitMillisat AmountUnit = "msat"
)

// Normalizer converts protocol-level amounts into the canonical storage
// unit and produces display conversions in the user's preferred currency.
type Normalizer struct {
	rates  domain.RateService
	logger *slog.Logger
}

// NewNormalizer creates a currency normalizer.
func NewNormalizer(rates domain.RateService, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{rates: rates, logger: logger}
}

// Normalize converts a raw protocol amount to the canonical unit:
// millisatoshis become satoshis under code SATS, fiat minor units become
// major units under the uppercased ISO code.
func (n *Normalizer) Normalize(raw int64, unit AmountUnit) (domain.Money, error) {
	if unit == "" {
		return domain.Money{}, fmt.Errorf("missing amount unit")
	}
	if strings.EqualFold(string(unit), string(UnitMillisat)) {
		return domain.Money{Amount: float64(raw) / 1000, Currency: domain.CurrencySats}, nil
	}
	return domain.Money{Amount: float64(raw) / 100, Currency: strings.ToUpper(string(unit))}, nil
}

// ConvertForDisplay converts a canonical amount into the preferred display
// currency. Returns nil when the currencies already match (case-insensitive,
// sats-aliasing) or when conversion fails: a missing display amount never
// fails a payment.
func (n *Normalizer) ConvertForDisplay(ctx context.Context, m domain.Money, preferred string) *float64 {
	if preferred == "" || domain.SameCurrency(m.Currency, preferred) {
		return nil
	}
	if n.rates == nil {
		return nil
	}

	converted, err := n.rates.ConvertAmount(ctx, m.Amount, m.Currency, preferred)
	if err != nil {
		n.logger.Warn("display conversion failed",
			"from", m.Currency,
			"to", preferred,
			"error", err,
		)
		return nil
	}
	return &converted
}
