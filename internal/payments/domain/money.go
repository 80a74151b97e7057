package domain

import "strings"

// CurrencySats is the canonical code for Lightning-denominated amounts.
const CurrencySats = "SATS"

// Money is a canonical amount/currency pair: satoshis for Lightning
// amounts, major-unit fiat otherwise.
type Money struct {
	Amount   float64
	Currency string
}

// IsSats reports whether the currency is the satoshi unit, accepting any
// casing ("sats" and "SATS" name the same currency).
func (m Money) IsSats() bool {
	return IsSatsCode(m.Currency)
}

// IsSatsCode reports whether code names the satoshi unit.
func IsSatsCode(code string) bool {
	return strings.EqualFold(code, CurrencySats) || strings.EqualFold(code, "sat")
}

// SameCurrency compares currency codes case-insensitively, treating all
// spellings of the satoshi unit as equal.
func SameCurrency(a, b string) bool {
	if IsSatsCode(a) && IsSatsCode(b) {
		return true
	}
	return strings.EqualFold(a, b)
}
