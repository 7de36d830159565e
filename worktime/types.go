/*
Package worktime implements per-team-member work-session tracking.

PURPOSE:
  Each (project, member) pair carries an append-only log of work events
  (start / hold / resume / end). The log is the source of truth; the
  cached member status is a derived view updated only as a side effect
  of a successful append. Durations are always computed by replaying
  the log, never stored as a live-updating counter.

KEY CONCEPTS IN THIS FILE (types.go):
  - Event:       One immutable status-change record
  - EventType:   start | hold | resume | end
  - Status:      Cached view: not_started | start | hold | end
  - MemberState: Status plus started/ended timestamps and done notes
  - EventStore:  Append-only persistence with a CAS on the cached status

CRITICAL INVARIANTS:
  1. APPEND-ONLY: Events are never edited or deleted.
  2. The event-type sequence for a key is always accepted by the
     transition table (enforced by Tracker, re-checked by the store).
  3. MemberState is never written except through a successful append.

SEE ALSO:
  - statemachine.go: Transition table and Tracker.Apply
  - aggregate.go:    Duration totals and day breakdown from the log
*/
package worktime

import (
	"context"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

type EventType string

const (
	EventStart  EventType = "start"
	EventHold   EventType = "hold"
	EventResume EventType = "resume"
	EventEnd    EventType = "end"
)

// Event is one immutable work-status change for one member on one project.
// Ordering key is OccurredAt; the store breaks ties by insertion order.
type Event struct {
	ID         string
	ProjectID  string
	UserID     string
	Type       EventType
	OccurredAt time.Time
	Note       string
}

// =============================================================================
// CACHED MEMBER STATE
// =============================================================================

// Status is the cached work status derived from the event log.
// Note that resume maps back to StatusStarted; it never appears here.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusStarted    Status = "start"
	StatusOnHold     Status = "hold"
	StatusEnded      Status = "end"
)

// MemberState is the cached view owned by the project-membership record.
// It is mutated only as a side effect of a successful Event append.
type MemberState struct {
	Status    Status
	StartedAt *time.Time
	EndedAt   *time.Time
	DoneNotes string
}

// NewMemberState is the implicit state of a member with no events yet.
func NewMemberState() MemberState {
	return MemberState{Status: StatusNotStarted}
}

// Member is a project-team membership with its cached work state.
type Member struct {
	ProjectID string
	UserID    string
	State     MemberState
}

// =============================================================================
// PERSISTENCE CONTRACTS
// =============================================================================

// EventStore persists the per-(project,user) event log and the cached state.
//
// Append is the ONLY write path for events and state, and it is a CAS:
// the store must verify, inside its own transaction boundary, that the
// cached status still equals prev before writing. If it doesn't, a
// concurrent Apply won the race and the store returns
// engine.ErrConcurrentModification.
type EventStore interface {
	// Append writes ev and updates the cached state to next, iff the
	// current cached status equals prev. All-or-nothing.
	Append(ctx context.Context, ev Event, prev Status, next MemberState) error

	// Events returns the full ordered log for one (project, user).
	Events(ctx context.Context, projectID, userID string) ([]Event, error)

	// MemberState returns the cached state. found is false when the user
	// has no membership record for the project.
	MemberState(ctx context.Context, projectID, userID string) (MemberState, bool, error)
}

// MembershipStore manages project-team membership records.
type MembershipStore interface {
	// AddMember creates a membership with the implicit not_started state.
	// Adding an existing member is a no-op.
	AddMember(ctx context.Context, projectID, userID string) error

	// Members returns all memberships for a project with cached states.
	Members(ctx context.Context, projectID string) ([]Member, error)
}
