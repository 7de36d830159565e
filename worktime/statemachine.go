/*
statemachine.go - Work-status transitions and the Tracker

PURPOSE:
  Validates and applies start/hold/resume/end transitions for one
  (project, user). A legal event is appended to the log together with
  the recomputed cached state; an illegal one is rejected with
  InvalidTransitionError and nothing changes.

TRANSITION TABLE:
  not_started -> start
  start       -> hold | end
  hold        -> resume (status becomes start) | end
  end         -> (terminal)

  Re-assignment after end would require a new membership record; the
  tracker never reopens an ended state.

CONCURRENCY:
  Apply reads the cached status, validates, then appends with a CAS on
  that same status (see EventStore.Append). Two concurrent Applies for
  one key cannot both win: the loser gets ErrConcurrentModification
  from the store and the log stays consistent with the table.

SIDE EFFECTS:
  None beyond the append + cached-state update. Notification fan-out
  belongs to the caller, not to this component.
*/
package worktime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lumencrm/ledger-engine/engine"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

var transitions = map[Status][]EventType{
	StatusNotStarted: {EventStart},
	StatusStarted:    {EventHold, EventEnd},
	StatusOnHold:     {EventResume, EventEnd},
	StatusEnded:      {},
}

// CanApply reports whether event is legal from the given status.
func CanApply(current Status, event EventType) bool {
	for _, allowed := range transitions[current] {
		if allowed == event {
			return true
		}
	}
	return false
}

// AllowedEvents returns the event types legal from the given status.
func AllowedEvents(current Status) []EventType {
	out := make([]EventType, len(transitions[current]))
	copy(out, transitions[current])
	return out
}

// nextStatus maps an applied event to the resulting cached status.
// resume folds back into start; every other event maps to itself.
func nextStatus(event EventType) Status {
	if event == EventResume {
		return StatusStarted
	}
	return Status(event)
}

// =============================================================================
// TRACKER
// =============================================================================

// Clock abstracts "now" so transitions are testable at fixed instants.
type Clock func() time.Time

// Tracker applies work-status changes against an EventStore.
type Tracker struct {
	Store EventStore
	Now   Clock // defaults to time.Now
}

func NewTracker(store EventStore) *Tracker {
	return &Tracker{Store: store, Now: time.Now}
}

// Apply validates and applies one work-status event for (project, user).
//
// Flow:
//  1. Read the cached status; a member with no prior state is not_started.
//  2. Reject with InvalidTransitionError if the event is not in the table.
//  3. Append the event with occurred_at = now and the recomputed state,
//     CAS-guarded on the status read in step 1.
//
// The note is only persisted onto the cached state for end events
// (done_notes); for every event type it is kept on the log entry itself.
func (t *Tracker) Apply(ctx context.Context, projectID, userID string, event EventType, note string) (MemberState, error) {
	state, found, err := t.Store.MemberState(ctx, projectID, userID)
	if err != nil {
		return MemberState{}, engine.WrapStorage("worktime: read member state", err)
	}
	if !found {
		state = NewMemberState()
	}

	if !CanApply(state.Status, event) {
		return MemberState{}, &engine.InvalidTransitionError{
			Event:   string(event),
			Current: string(state.Status),
		}
	}

	now := t.now()
	ev := Event{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		UserID:     userID,
		Type:       event,
		OccurredAt: now,
		Note:       note,
	}

	next := state
	next.Status = nextStatus(event)
	switch event {
	case EventStart:
		next.StartedAt = &now
	case EventEnd:
		next.EndedAt = &now
		next.DoneNotes = note
	}

	if err := t.Store.Append(ctx, ev, state.Status, next); err != nil {
		return MemberState{}, engine.WrapStorage("worktime: append event", err)
	}
	return next, nil
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}
