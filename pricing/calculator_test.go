package pricing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumencrm/ledger-engine/engine"
	"github.com/lumencrm/ledger-engine/pricing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func ms(title, amount string) pricing.Milestone {
	return pricing.Milestone{Title: title, Amount: dec(amount)}
}

// =============================================================================
// FIXED PRICING
// =============================================================================

func TestComputeAmount_Fixed(t *testing.T) {
	got, err := pricing.ComputeAmount(pricing.AmountInput{
		Pricing:        pricing.PricingFixed,
		ExplicitAmount: decp("1200.50"),
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1200.50")))
}

func TestComputeAmount_Fixed_MissingAmount(t *testing.T) {
	_, err := pricing.ComputeAmount(pricing.AmountInput{Pricing: pricing.PricingFixed})
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestComputeAmount_Fixed_NegativeAmount(t *testing.T) {
	_, err := pricing.ComputeAmount(pricing.AmountInput{
		Pricing:        pricing.PricingFixed,
		ExplicitAmount: decp("-1"),
	})
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

// =============================================================================
// HOURLY PRICING
// =============================================================================

func TestComputeAmount_Hourly_Derived(t *testing.T) {
	// GIVEN: 10 hours at 50/h, no explicit amount
	// THEN: amount == 500.00
	got, err := pricing.ComputeAmount(pricing.AmountInput{
		Pricing:        pricing.PricingHourly,
		EstimatedHours: decp("10"),
		HourlyRate:     decp("50"),
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("500")), "got %s", got)
}

func TestComputeAmount_Hourly_ExplicitWins(t *testing.T) {
	got, err := pricing.ComputeAmount(pricing.AmountInput{
		Pricing:        pricing.PricingHourly,
		EstimatedHours: decp("10"),
		HourlyRate:     decp("50"),
		ExplicitAmount: decp("450"),
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("450")))
}

func TestComputeAmount_Hourly_DerivedRounds(t *testing.T) {
	// 7.5 hours x 33.333/h = 249.9975 -> rounds half-up to 250.00
	got, err := pricing.ComputeAmount(pricing.AmountInput{
		Pricing:        pricing.PricingHourly,
		EstimatedHours: decp("7.5"),
		HourlyRate:     decp("33.333"),
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("250.00")), "got %s", got)
}

func TestComputeAmount_Hourly_MissingOperands(t *testing.T) {
	cases := []pricing.AmountInput{
		{Pricing: pricing.PricingHourly},
		{Pricing: pricing.PricingHourly, EstimatedHours: decp("10")},
		{Pricing: pricing.PricingHourly, HourlyRate: decp("50")},
		{Pricing: pricing.PricingHourly, EstimatedHours: decp("-1"), HourlyRate: decp("50")},
		{Pricing: pricing.PricingHourly, EstimatedHours: decp("10"), HourlyRate: decp("-50")},
	}
	for i, in := range cases {
		_, err := pricing.ComputeAmount(in)
		assert.True(t, errors.Is(err, engine.ErrValidation), "case %d", i)
	}
}

// =============================================================================
// MILESTONE PRICING
// =============================================================================

func TestComputeAmount_Milestone_Sum(t *testing.T) {
	// GIVEN: milestones 100 and 250.005
	// THEN: 250.005 rounds half-up to 250.01, total 350.01
	got, err := pricing.ComputeAmount(pricing.AmountInput{
		Pricing:    pricing.PricingMilestone,
		Milestones: []pricing.Milestone{ms("design", "100"), ms("build", "250.005")},
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("350.01")), "got %s", got)
}

func TestComputeAmount_Milestone_EmptyListRejected(t *testing.T) {
	_, err := pricing.ComputeAmount(pricing.AmountInput{Pricing: pricing.PricingMilestone})
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestComputeAmount_Milestone_UntitledRejected(t *testing.T) {
	_, err := pricing.ComputeAmount(pricing.AmountInput{
		Pricing:    pricing.PricingMilestone,
		Milestones: []pricing.Milestone{ms("", "100")},
	})
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestComputeAmount_Milestone_NegativeRejected(t *testing.T) {
	_, err := pricing.ComputeAmount(pricing.AmountInput{
		Pricing:    pricing.PricingMilestone,
		Milestones: []pricing.Milestone{ms("design", "100"), ms("build", "-5")},
	})
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestComputeAmount_UnknownPricingType(t *testing.T) {
	_, err := pricing.ComputeAmount(pricing.AmountInput{Pricing: "subscription"})
	assert.True(t, errors.Is(err, engine.ErrValidation))
}
