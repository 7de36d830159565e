/*
calculator.go - Requirement amount derivation

PURPOSE:
  ComputeAmount is the single place a requirement's monetary amount is
  derived from its pricing mode. Every create and update goes through it
  before anything is written, so validation failures never leave partial
  state behind.

RULES:
  fixed:     amount = explicit amount (required, >= 0)
  hourly:    explicit amount wins when supplied; otherwise
             amount = Round2(estimated_hours x hourly_rate), both
             operands required and >= 0 - no silent defaulting
  milestone: non-empty milestone list required; every milestone needs a
             title and amount >= 0; amount = Round2(sum of Round2'd
             milestone amounts)

ROUNDING:
  Half-up to 2 decimals at each aggregation step (engine.Round2), so the
  derived amount always matches the precision of the encoded value.
*/
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lumencrm/ledger-engine/engine"
)

// AmountInput carries the pricing fields of a create/update request.
type AmountInput struct {
	Pricing        PricingType
	EstimatedHours *decimal.Decimal
	HourlyRate     *decimal.Decimal
	ExplicitAmount *decimal.Decimal
	Milestones     []Milestone
}

// ComputeAmount derives the requirement amount for the given input.
// It errors rather than defaulting on missing or negative operands.
func ComputeAmount(in AmountInput) (decimal.Decimal, error) {
	switch in.Pricing {
	case PricingFixed:
		return computeFixed(in)
	case PricingHourly:
		return computeHourly(in)
	case PricingMilestone:
		return ComputeMilestoneSum(in.Milestones)
	default:
		return decimal.Zero, &engine.ValidationError{
			Field:   "pricing_type",
			Message: fmt.Sprintf("unknown pricing type %q", in.Pricing),
		}
	}
}

func computeFixed(in AmountInput) (decimal.Decimal, error) {
	if in.ExplicitAmount == nil {
		return decimal.Zero, &engine.ValidationError{Field: "amount", Message: "required for fixed pricing"}
	}
	if in.ExplicitAmount.IsNegative() {
		return decimal.Zero, &engine.ValidationError{Field: "amount", Message: "must not be negative"}
	}
	return engine.Round2(*in.ExplicitAmount), nil
}

func computeHourly(in AmountInput) (decimal.Decimal, error) {
	// An explicit amount overrides the derived hours x rate.
	if in.ExplicitAmount != nil {
		if in.ExplicitAmount.IsNegative() {
			return decimal.Zero, &engine.ValidationError{Field: "amount", Message: "must not be negative"}
		}
		return engine.Round2(*in.ExplicitAmount), nil
	}

	if in.EstimatedHours == nil {
		return decimal.Zero, &engine.ValidationError{Field: "estimated_hours", Message: "required when no explicit amount is given"}
	}
	if in.EstimatedHours.IsNegative() {
		return decimal.Zero, &engine.ValidationError{Field: "estimated_hours", Message: "must not be negative"}
	}
	if in.HourlyRate == nil {
		return decimal.Zero, &engine.ValidationError{Field: "hourly_rate", Message: "required when no explicit amount is given"}
	}
	if in.HourlyRate.IsNegative() {
		return decimal.Zero, &engine.ValidationError{Field: "hourly_rate", Message: "must not be negative"}
	}

	return engine.Round2(in.EstimatedHours.Mul(*in.HourlyRate)), nil
}

// ComputeMilestoneSum validates a milestone set and returns its rounded sum.
// Exposed separately because the ledger reconciliation pass reuses it.
func ComputeMilestoneSum(milestones []Milestone) (decimal.Decimal, error) {
	if len(milestones) == 0 {
		return decimal.Zero, &engine.ValidationError{Field: "milestones", Message: "at least one milestone is required"}
	}

	sum := decimal.Zero
	for i, m := range milestones {
		if m.Title == "" {
			return decimal.Zero, &engine.ValidationError{
				Field:   fmt.Sprintf("milestones[%d].title", i),
				Message: "required",
			}
		}
		if m.Amount.IsNegative() {
			return decimal.Zero, &engine.ValidationError{
				Field:   fmt.Sprintf("milestones[%d].amount", i),
				Message: "must not be negative",
			}
		}
		// Round each step, not only the end, to match stored precision.
		sum = engine.Round2(sum.Add(engine.Round2(m.Amount)))
	}
	return sum, nil
}
