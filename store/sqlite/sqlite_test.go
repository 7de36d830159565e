package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumencrm/ledger-engine/codec"
	"github.com/lumencrm/ledger-engine/engine"
	"github.com/lumencrm/ledger-engine/ledger"
	"github.com/lumencrm/ledger-engine/pricing"
	"github.com/lumencrm/ledger-engine/store/sqlite"
	"github.com/lumencrm/ledger-engine/worktime"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:", codec.NewRandom())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixedRequirement(projectID, amount string) pricing.Requirement {
	a := dec(amount)
	now := time.Now().UTC()
	return pricing.Requirement{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      pricing.RequirementInitial,
		Pricing:   pricing.PricingFixed,
		Amount:    &a,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// WORK EVENTS
// =============================================================================

func TestSqlite_AppendAndReplay(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	started := base
	next := worktime.MemberState{Status: worktime.StatusStarted, StartedAt: &started}

	ev := worktime.Event{
		ID: uuid.NewString(), ProjectID: "proj-1", UserID: "user-1",
		Type: worktime.EventStart, OccurredAt: base, Note: "kickoff",
	}
	require.NoError(t, st.Append(ctx, ev, worktime.StatusNotStarted, next))

	events, err := st.Events(ctx, "proj-1", "user-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, worktime.EventStart, events[0].Type)
	assert.Equal(t, "kickoff", events[0].Note)
	assert.True(t, events[0].OccurredAt.Equal(base))

	state, found, err := st.MemberState(ctx, "proj-1", "user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, worktime.StatusStarted, state.Status)
	require.NotNil(t, state.StartedAt)
	assert.True(t, state.StartedAt.Equal(base))
}

func TestSqlite_AppendCASRejectsStaleStatus(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	base := time.Now().UTC()
	require.NoError(t, st.Append(ctx,
		worktime.Event{ID: uuid.NewString(), ProjectID: "p", UserID: "u", Type: worktime.EventStart, OccurredAt: base},
		worktime.StatusNotStarted,
		worktime.MemberState{Status: worktime.StatusStarted, StartedAt: &base}))

	// Expecting not_started again is stale now.
	err := st.Append(ctx,
		worktime.Event{ID: uuid.NewString(), ProjectID: "p", UserID: "u", Type: worktime.EventStart, OccurredAt: base},
		worktime.StatusNotStarted,
		worktime.MemberState{Status: worktime.StatusStarted})
	assert.True(t, errors.Is(err, engine.ErrConcurrentModification))

	events, _ := st.Events(ctx, "p", "u")
	assert.Len(t, events, 1, "rejected append must write nothing")
}

func TestSqlite_EventOrderTieBreakIsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	at := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	first := worktime.Event{ID: "ev-a", ProjectID: "p", UserID: "u", Type: worktime.EventStart, OccurredAt: at}
	second := worktime.Event{ID: "ev-b", ProjectID: "p", UserID: "u", Type: worktime.EventHold, OccurredAt: at}

	require.NoError(t, st.Append(ctx, first, worktime.StatusNotStarted,
		worktime.MemberState{Status: worktime.StatusStarted, StartedAt: &at}))
	require.NoError(t, st.Append(ctx, second, worktime.StatusStarted,
		worktime.MemberState{Status: worktime.StatusOnHold, StartedAt: &at}))

	events, err := st.Events(ctx, "p", "u")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-a", events[0].ID)
	assert.Equal(t, "ev-b", events[1].ID)
}

func TestSqlite_AddMemberIsIdempotentNotStarted(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.AddMember(ctx, "proj-1", "user-1"))
	require.NoError(t, st.AddMember(ctx, "proj-1", "user-1"))
	require.NoError(t, st.AddMember(ctx, "proj-1", "user-2"))

	members, err := st.Members(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.Equal(t, worktime.StatusNotStarted, m.State.Status)
	}
}

// =============================================================================
// REQUIREMENTS
// =============================================================================

func TestSqlite_RequirementRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	hours := dec("10")
	rate := dec("50")
	amount := dec("500")
	now := time.Now().UTC()
	r := pricing.Requirement{
		ID:             uuid.NewString(),
		ProjectID:      "proj-1",
		Type:           pricing.RequirementAddon,
		Pricing:        pricing.PricingHourly,
		EstimatedHours: &hours,
		HourlyRate:     &rate,
		Amount:         &amount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, st.InsertRequirement(ctx, r))

	got, err := st.Requirement(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, pricing.PricingHourly, got.Pricing)
	require.NotNil(t, got.EstimatedHours)
	assert.True(t, got.EstimatedHours.Equal(hours))
	require.NotNil(t, got.HourlyRate)
	assert.True(t, got.HourlyRate.Equal(rate))
	require.NotNil(t, got.Amount)
	assert.True(t, got.Amount.Equal(amount))
	assert.False(t, got.Deleted())
}

func TestSqlite_MilestonesReplacedWholesale(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	r := fixedRequirement("proj-1", "300")
	r.Pricing = pricing.PricingMilestone
	r.Milestones = []pricing.Milestone{
		{ID: uuid.NewString(), RequirementID: r.ID, Title: "design", Amount: dec("100")},
		{ID: uuid.NewString(), RequirementID: r.ID, Title: "build", Amount: dec("200")},
	}
	require.NoError(t, st.InsertRequirement(ctx, r))

	r.Milestones = []pricing.Milestone{
		{ID: uuid.NewString(), RequirementID: r.ID, Title: "launch", Amount: dec("250")},
	}
	require.NoError(t, st.UpdateRequirement(ctx, r))

	got, err := st.Requirement(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Milestones, 1)
	assert.Equal(t, "launch", got.Milestones[0].Title)
	assert.True(t, got.Milestones[0].Amount.Equal(dec("250")))
}

func TestSqlite_SoftDeleteHidesFromLive(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	r := fixedRequirement("proj-1", "500")
	require.NoError(t, st.InsertRequirement(ctx, r))
	require.NoError(t, st.SoftDeleteRequirement(ctx, r.ID, time.Now().UTC()))

	live, err := st.LiveRequirements(ctx, "proj-1")
	require.NoError(t, err)
	assert.Empty(t, live)

	got, err := st.Requirement(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())

	// Second delete finds no live row.
	err = st.SoftDeleteRequirement(ctx, r.ID, time.Now().UTC())
	assert.True(t, errors.Is(err, engine.ErrNotFound))
}

func TestSqlite_RequirementNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Requirement(context.Background(), "nope")
	assert.True(t, errors.Is(err, engine.ErrNotFound))
}

// =============================================================================
// TOTALS AND TRANSACTIONS
// =============================================================================

func TestSqlite_UpdateTotalReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.UpdateTotal(ctx, "proj-1", func(current string) (string, error) {
		assert.Empty(t, current, "fresh project has no total")
		return "encoded-1", nil
	}))

	got, err := st.Total(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "encoded-1", got)

	require.NoError(t, st.UpdateTotal(ctx, "proj-1", func(current string) (string, error) {
		assert.Equal(t, "encoded-1", current)
		return "encoded-2", nil
	}))

	got, _ = st.Total(ctx, "proj-1")
	assert.Equal(t, "encoded-2", got)
}

func TestSqlite_UpdateTotalCallbackErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	boom := errors.New("boom")
	err := st.UpdateTotal(ctx, "proj-1", func(string) (string, error) {
		return "", boom
	})
	assert.True(t, errors.Is(err, boom))

	got, _ := st.Total(ctx, "proj-1")
	assert.Empty(t, got)
}

func TestSqlite_WithTxRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	boom := errors.New("boom")
	r := fixedRequirement("proj-1", "500")

	err := st.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.InsertRequirement(ctx, r); err != nil {
			return err
		}
		if err := tx.UpdateTotal(ctx, "proj-1", func(string) (string, error) {
			return "encoded", nil
		}); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	_, err = st.Requirement(ctx, r.ID)
	assert.True(t, errors.Is(err, engine.ErrNotFound))
	total, _ := st.Total(ctx, "proj-1")
	assert.Empty(t, total)
}
