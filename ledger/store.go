/*
store.go - Persistence contracts for requirements and the project total

PURPOSE:
  Defines the interface between the financial ledger and the database.
  Implementations: store/sqlite (production) and store/memory (tests/dev).

ATOMICITY CONTRACT:
  Every requirement lifecycle operation touches two things: the
  requirement rows (including wholesale milestone replacement) and the
  project's encrypted running total. WithTx gives the service a single
  transaction boundary around both - either everything lands or nothing
  does.

  UpdateTotal is the atomic read-modify-write primitive for the total.
  The amount is encrypted, so it cannot be incremented in SQL; instead
  the store holds the row for the duration of the callback (sqlite: an
  immediate transaction, memory: a mutex) so concurrent deltas cannot
  lose each other.

OWNERSHIP:
  The encrypted total is mutated ONLY through UpdateTotal. No other
  pathway writes it.
*/
package ledger

import (
	"context"
	"time"

	"github.com/lumencrm/ledger-engine/pricing"
)

// =============================================================================
// REQUIREMENTS
// =============================================================================

// RequirementStore persists requirements and their milestone sets.
// Milestones are owned wholesale: InsertRequirement and UpdateRequirement
// write the full set carried on the Requirement, replacing whatever was
// there (delete-all-then-insert).
type RequirementStore interface {
	InsertRequirement(ctx context.Context, r pricing.Requirement) error

	// UpdateRequirement rewrites the requirement row and replaces its
	// milestone set with r.Milestones.
	UpdateRequirement(ctx context.Context, r pricing.Requirement) error

	// SoftDeleteRequirement marks the requirement deleted at the given
	// time. The row and its milestones remain readable via Requirement.
	SoftDeleteRequirement(ctx context.Context, id string, at time.Time) error

	// Requirement loads one requirement with its milestones, decoded.
	// Returns engine.ErrNotFound if no row exists.
	Requirement(ctx context.Context, id string) (pricing.Requirement, error)

	// LiveRequirements returns all non-deleted requirements for a project.
	LiveRequirements(ctx context.Context, projectID string) ([]pricing.Requirement, error)
}

// =============================================================================
// PROJECT TOTAL
// =============================================================================

// TotalStore persists the single encrypted scalar per project.
type TotalStore interface {
	// Total returns the encoded total, "" when none has been written yet.
	Total(ctx context.Context, projectID string) (string, error)

	// UpdateTotal atomically replaces the encoded total with the result
	// of update(current). The row is held for the duration of the call;
	// update returning an error aborts with nothing written.
	UpdateTotal(ctx context.Context, projectID string, update func(current string) (string, error)) error
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is the full persistence contract for the financial ledger.
type Store interface {
	RequirementStore
	TotalStore

	// WithTx executes fn within one transaction. The Store passed to fn
	// is transaction-scoped; fn returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
