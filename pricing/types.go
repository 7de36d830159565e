/*
Package pricing defines priced scope items (requirements) and the rules
that derive a requirement's monetary amount from its pricing mode.

KEY CONCEPTS:
  - Requirement: A priced scope item on a project (initial work or addon)
  - Milestone:   A named, independently priced sub-deliverable; exists
                 only under a milestone-priced requirement
  - PricingType: hourly | fixed | milestone

INVARIANTS:
  1. milestone pricing: Amount == Round2(sum of milestone amounts) and
     the milestone list is non-empty.
  2. hourly/fixed pricing: the milestone list is empty; Amount is either
     explicit or derived from EstimatedHours x HourlyRate.
  3. Milestones are owned wholesale by their requirement: any change to
     the set replaces all rows (delete-all-then-insert).

SEE ALSO:
  - calculator.go: ComputeAmount, the only place amounts are derived
  - ledger/service.go: Folds amount changes into the project total
*/
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRICING MODES
// =============================================================================

type PricingType string

const (
	PricingHourly    PricingType = "hourly"
	PricingFixed     PricingType = "fixed"
	PricingMilestone PricingType = "milestone"
)

func (p PricingType) Valid() bool {
	switch p {
	case PricingHourly, PricingFixed, PricingMilestone:
		return true
	}
	return false
}

type RequirementType string

const (
	RequirementInitial RequirementType = "initial"
	RequirementAddon   RequirementType = "addon"
)

func (t RequirementType) Valid() bool {
	switch t {
	case RequirementInitial, RequirementAddon:
		return true
	}
	return false
}

// =============================================================================
// REQUIREMENT / MILESTONE
// =============================================================================

// Milestone is a sub-deliverable of a milestone-priced requirement.
// Amount is encrypted at rest; in memory it is a plain decimal.
type Milestone struct {
	ID            string
	RequirementID string
	Title         string
	DueDate       *time.Time
	Amount        decimal.Decimal
}

// Requirement is a priced scope item. Amount and HourlyRate are encrypted
// at rest (the store seals them through the codec); domain code always
// works with decoded decimals. A nil pointer means "no value set" - it is
// NOT zero, and callers must check before doing arithmetic.
type Requirement struct {
	ID        string
	ProjectID string

	Type    RequirementType
	Pricing PricingType

	EstimatedHours *decimal.Decimal
	HourlyRate     *decimal.Decimal
	Amount         *decimal.Decimal

	// Milestones is non-empty iff Pricing == PricingMilestone.
	Milestones []Milestone

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time // soft delete; nil means live
}

// Deleted reports whether the requirement has been soft-deleted.
func (r Requirement) Deleted() bool { return r.DeletedAt != nil }
