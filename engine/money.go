/*
money.go - Currency arithmetic helpers

PURPOSE:
  All monetary values in the system are decimal.Decimal rounded to two
  fractional digits. This file is the single place that defines the
  rounding rule so every component (pricing, ledger, codec) agrees.

ROUNDING RULE:
  Half-up at the 2nd decimal, applied at EVERY aggregation step, not only
  at the end. This matches the precision of the encoded at-rest values:
  a stored amount can never carry more precision than what Round2 yields.

WHY decimal.Decimal:
  Currency math on float64 drifts (0.1 + 0.2 != 0.3). decimal.Decimal is
  exact for the add/sub/mul this system performs.
*/
package engine

import "github.com/shopspring/decimal"

// Round2 rounds a currency value to 2 fractional digits, half-up.
//
// decimal's Round is half-away-from-zero; amounts in this system are
// non-negative (deltas may be negative but are differences of rounded
// values), so half-away and half-up agree everywhere the rule matters.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ClampZero returns d, floored at zero. Used by the ledger to guard
// against drift pushing a project total negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
