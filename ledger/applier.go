/*
applier.go - Folding signed deltas into the encrypted project total

PURPOSE:
  The project's monetary value is a single encrypted scalar maintained
  incrementally: every requirement create/update/delete folds its signed
  delta into the total. This file is the ONLY writer of that scalar.

FLOW (inside the store's atomic boundary):
  1. Read the current encoded total (missing/null counts as 0)
  2. next = Round2(current + delta), clamped at 0
  3. Encode and write back

CLAMPING:
  The clamp at zero is a defensive guard against drift, not a substitute
  for correctness. If deltas were ever lost, Reconcile (service.go)
  repairs the total from a full scan.

DECODE FAILURES:
  A present-but-undecodable total is corruption, not "zero". ApplyDelta
  refuses to fold into it and surfaces engine.ErrDecode so the operator
  reconciles instead of silently compounding the damage.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lumencrm/ledger-engine/codec"
	"github.com/lumencrm/ledger-engine/engine"
)

// DeltaApplier folds signed deltas into a project's encrypted total.
type DeltaApplier struct {
	Totals TotalStore
	Codec  *codec.Codec
}

func NewDeltaApplier(totals TotalStore, c *codec.Codec) *DeltaApplier {
	return &DeltaApplier{Totals: totals, Codec: c}
}

// ApplyDelta folds delta into the project total. A zero delta is a no-op
// that provably leaves the stored bytes untouched (the store is never
// called, so not even the nonce changes).
func (a *DeltaApplier) ApplyDelta(ctx context.Context, projectID string, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}

	err := a.Totals.UpdateTotal(ctx, projectID, func(current string) (string, error) {
		cur, err := a.Codec.DecodeStrict(current)
		if err != nil {
			return "", err // corrupted total, never merge into arithmetic
		}
		base := decimal.Zero
		if cur != nil {
			base = *cur
		}

		next := engine.ClampZero(engine.Round2(base.Add(delta)))
		return a.Codec.Encode(next)
	})
	return engine.WrapStorage("ledger: apply delta", err)
}

// Total reads and decodes the current project total. Returns nil when no
// total has been written yet; engine.ErrDecode when the stored value is
// present but corrupt.
func (a *DeltaApplier) Total(ctx context.Context, projectID string) (*decimal.Decimal, error) {
	encoded, err := a.Totals.Total(ctx, projectID)
	if err != nil {
		return nil, engine.WrapStorage("ledger: read total", err)
	}
	return a.Codec.DecodeStrict(encoded)
}
