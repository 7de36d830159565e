/*
service.go - Requirement lifecycle orchestration

PURPOSE:
  Ties the pieces together: a requirement create/update/delete goes
  through the pricing calculator to obtain the new amount, then the
  delta applier folds (new - old) into the project's encrypted total,
  all inside one store transaction. Milestone sets are replaced
  wholesale on every change.

DELTAS:
  create:      +new_amount
  update:      Round2(new_amount - old_amount), no-op when unchanged
  soft-delete: -old_amount, only if not already deleted

MODE SWITCHES:
  Switching away from milestone pricing drops the milestone rows
  (UpdateRequirement writes an empty set); switching into milestone
  pricing requires at least one milestone (calculator enforces it).

ALL-OR-NOTHING:
  Validation runs before any write. Inside WithTx, a failure in either
  the requirement write or the total update rolls both back, so no
  partial state is ever visible.
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumencrm/ledger-engine/codec"
	"github.com/lumencrm/ledger-engine/engine"
	"github.com/lumencrm/ledger-engine/pricing"
)

// =============================================================================
// INPUTS
// =============================================================================

// MilestoneInput is one milestone in a create/update request.
type MilestoneInput struct {
	Title   string
	DueDate *time.Time
	Amount  decimal.Decimal
}

// RequirementInput carries the writable fields of a requirement.
type RequirementInput struct {
	Type           pricing.RequirementType
	Pricing        pricing.PricingType
	EstimatedHours *decimal.Decimal
	HourlyRate     *decimal.Decimal
	Amount         *decimal.Decimal // explicit amount, optional for hourly
	Milestones     []MilestoneInput
}

func (in RequirementInput) amountInput(milestones []pricing.Milestone) pricing.AmountInput {
	return pricing.AmountInput{
		Pricing:        in.Pricing,
		EstimatedHours: in.EstimatedHours,
		HourlyRate:     in.HourlyRate,
		ExplicitAmount: in.Amount,
		Milestones:     milestones,
	}
}

// validateTypes rejects enum values outside the known sets before any
// pricing math or write happens. The calculator re-checks the pricing
// type on dispatch; the requirement type is only checked here.
func (in RequirementInput) validateTypes() error {
	if !in.Type.Valid() {
		return &engine.ValidationError{Field: "requirement_type", Message: "unknown requirement type " + string(in.Type)}
	}
	if !in.Pricing.Valid() {
		return &engine.ValidationError{Field: "pricing_type", Message: "unknown pricing type " + string(in.Pricing)}
	}
	return nil
}

// =============================================================================
// SERVICE
// =============================================================================

// RequirementService orchestrates requirement writes and ledger deltas.
type RequirementService struct {
	Store Store
	Codec *codec.Codec
	Now   func() time.Time
}

func NewRequirementService(store Store, c *codec.Codec) *RequirementService {
	return &RequirementService{Store: store, Codec: c, Now: time.Now}
}

// Create validates, prices, and persists a new requirement, folding its
// amount into the project total.
func (s *RequirementService) Create(ctx context.Context, projectID string, in RequirementInput) (pricing.Requirement, error) {
	if err := in.validateTypes(); err != nil {
		return pricing.Requirement{}, err
	}
	milestones := buildMilestones(in)
	amount, err := pricing.ComputeAmount(in.amountInput(milestones))
	if err != nil {
		return pricing.Requirement{}, err
	}

	now := s.now()
	r := pricing.Requirement{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		Type:           in.Type,
		Pricing:        in.Pricing,
		EstimatedHours: in.EstimatedHours,
		HourlyRate:     in.HourlyRate,
		Amount:         &amount,
		Milestones:     milestones,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i := range r.Milestones {
		r.Milestones[i].RequirementID = r.ID
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.InsertRequirement(ctx, r); err != nil {
			return engine.WrapStorage("ledger: insert requirement", err)
		}
		return NewDeltaApplier(tx, s.Codec).ApplyDelta(ctx, projectID, amount)
	})
	if err != nil {
		return pricing.Requirement{}, err
	}
	return r, nil
}

// Update re-prices an existing requirement, replaces its milestone set
// wholesale, and folds (new - old) into the project total.
func (s *RequirementService) Update(ctx context.Context, id string, in RequirementInput) (pricing.Requirement, error) {
	if err := in.validateTypes(); err != nil {
		return pricing.Requirement{}, err
	}
	milestones := buildMilestones(in)
	newAmount, err := pricing.ComputeAmount(in.amountInput(milestones))
	if err != nil {
		return pricing.Requirement{}, err
	}

	// The old amount and the delta derived from it must be read under the
	// same transaction that writes the new state. A read taken before the
	// transaction can interleave with a concurrent update of the same
	// requirement, and both writers would fold their full delta into the
	// total, drifting it away from the sum of live amounts.
	var next pricing.Requirement
	err = s.Store.WithTx(ctx, func(tx Store) error {
		old, err := tx.Requirement(ctx, id)
		if err != nil {
			return engine.WrapStorage("ledger: load requirement", err)
		}
		if old.Deleted() {
			return engine.ErrNotFound
		}

		// A nil stored amount means "no amount set"; after the explicit
		// check it contributes zero to the delta.
		oldAmount := decimal.Zero
		if old.Amount != nil {
			oldAmount = *old.Amount
		}
		delta := engine.Round2(newAmount.Sub(oldAmount))

		next = old
		next.Type = in.Type
		next.Pricing = in.Pricing
		next.EstimatedHours = in.EstimatedHours
		next.HourlyRate = in.HourlyRate
		next.Amount = &newAmount
		next.Milestones = milestones
		next.UpdatedAt = s.now()
		for i := range next.Milestones {
			next.Milestones[i].RequirementID = next.ID
		}

		if err := tx.UpdateRequirement(ctx, next); err != nil {
			return engine.WrapStorage("ledger: update requirement", err)
		}
		return NewDeltaApplier(tx, s.Codec).ApplyDelta(ctx, next.ProjectID, delta)
	})
	if err != nil {
		return pricing.Requirement{}, err
	}
	return next, nil
}

// Delete soft-deletes a requirement and folds -old_amount into the total.
// Deleting an already-deleted requirement is a no-op.
func (s *RequirementService) Delete(ctx context.Context, id string) error {
	// As with Update, the amount being subtracted is read under the same
	// transaction that marks the row deleted, so a concurrent writer
	// cannot slip in between the read and the write.
	return s.Store.WithTx(ctx, func(tx Store) error {
		old, err := tx.Requirement(ctx, id)
		if err != nil {
			return engine.WrapStorage("ledger: load requirement", err)
		}
		if old.Deleted() {
			return nil
		}

		oldAmount := decimal.Zero
		if old.Amount != nil {
			oldAmount = *old.Amount
		}

		if err := tx.SoftDeleteRequirement(ctx, id, s.now()); err != nil {
			return engine.WrapStorage("ledger: soft-delete requirement", err)
		}
		return NewDeltaApplier(tx, s.Codec).ApplyDelta(ctx, old.ProjectID, oldAmount.Neg())
	})
}

// Get loads one requirement.
func (s *RequirementService) Get(ctx context.Context, id string) (pricing.Requirement, error) {
	r, err := s.Store.Requirement(ctx, id)
	return r, engine.WrapStorage("ledger: load requirement", err)
}

// List returns the live requirements of a project.
func (s *RequirementService) List(ctx context.Context, projectID string) ([]pricing.Requirement, error) {
	rs, err := s.Store.LiveRequirements(ctx, projectID)
	return rs, engine.WrapStorage("ledger: list requirements", err)
}

// ProjectTotal decodes the current project total (nil = never written).
func (s *RequirementService) ProjectTotal(ctx context.Context, projectID string) (*decimal.Decimal, error) {
	return NewDeltaApplier(s.Store, s.Codec).Total(ctx, projectID)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileReport describes one reconciliation pass over a project.
type ReconcileReport struct {
	ProjectID string
	Stored    *decimal.Decimal // nil when no total had been written
	Computed  decimal.Decimal
	Repaired  bool
}

// Reconcile recomputes the project total from a full scan of live
// requirements and repairs the stored value if it drifted. Incremental
// delta maintenance is the normal path; this is the safety net for lost
// deltas (crash between compute and write) and corrupted totals.
func (s *RequirementService) Reconcile(ctx context.Context, projectID string) (ReconcileReport, error) {
	report := ReconcileReport{ProjectID: projectID}

	live, err := s.Store.LiveRequirements(ctx, projectID)
	if err != nil {
		return report, engine.WrapStorage("ledger: list requirements", err)
	}

	computed := decimal.Zero
	for _, r := range live {
		if r.Amount == nil {
			continue // no amount set; contributes nothing
		}
		computed = engine.Round2(computed.Add(*r.Amount))
	}
	report.Computed = computed

	err = s.Store.UpdateTotal(ctx, projectID, func(current string) (string, error) {
		// Decode leniently here: a corrupt stored total is exactly what
		// reconciliation exists to repair.
		report.Stored = s.Codec.Decode(current)
		if report.Stored != nil && report.Stored.Equal(computed) {
			return current, nil // in sync, keep the same bytes
		}
		report.Repaired = true
		return s.Codec.Encode(computed)
	})
	if err != nil {
		return report, engine.WrapStorage("ledger: write reconciled total", err)
	}
	return report, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func buildMilestones(in RequirementInput) []pricing.Milestone {
	if in.Pricing != pricing.PricingMilestone {
		return nil // switching away from milestone pricing drops the rows
	}
	out := make([]pricing.Milestone, len(in.Milestones))
	for i, m := range in.Milestones {
		out[i] = pricing.Milestone{
			ID:      uuid.NewString(),
			Title:   m.Title,
			DueDate: m.DueDate,
			Amount:  m.Amount,
		}
	}
	return out
}

func (s *RequirementService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
