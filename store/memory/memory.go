/*
Package memory provides an in-memory store implementation (tests/dev).

Implements worktime.EventStore, worktime.MembershipStore and ledger.Store
behind one mutex. WithTx simulates a transaction with snapshot + restore:
the callback writes directly, and an error rolls the whole store back to
the snapshot, mirroring how the SQLite store rolls back its sql.Tx.
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lumencrm/ledger-engine/engine"
	"github.com/lumencrm/ledger-engine/ledger"
	"github.com/lumencrm/ledger-engine/pricing"
	"github.com/lumencrm/ledger-engine/worktime"
)

type memberKey struct {
	ProjectID string
	UserID    string
}

// Store is the in-memory implementation of every persistence contract.
type Store struct {
	mu sync.RWMutex

	events  map[memberKey][]worktime.Event
	members map[memberKey]worktime.MemberState

	requirements map[string]pricing.Requirement
	totals       map[string]string
}

var (
	_ worktime.EventStore      = (*Store)(nil)
	_ worktime.MembershipStore = (*Store)(nil)
	_ ledger.Store             = (*Store)(nil)
	_ ledger.Store             = (*txView)(nil)
)

func New() *Store {
	return &Store{
		events:       make(map[memberKey][]worktime.Event),
		members:      make(map[memberKey]worktime.MemberState),
		requirements: make(map[string]pricing.Requirement),
		totals:       make(map[string]string),
	}
}

// =============================================================================
// WORK EVENTS (worktime.EventStore)
// =============================================================================

// Append writes the event and cached state iff the current cached status
// still equals prev. A member with no record counts as not_started.
func (s *Store) Append(_ context.Context, ev worktime.Event, prev worktime.Status, next worktime.MemberState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(ev, prev, next)
}

func (s *Store) appendLocked(ev worktime.Event, prev worktime.Status, next worktime.MemberState) error {
	k := memberKey{ProjectID: ev.ProjectID, UserID: ev.UserID}
	cur, ok := s.members[k]
	if !ok {
		cur = worktime.NewMemberState()
	}
	if cur.Status != prev {
		return engine.ErrConcurrentModification
	}
	s.events[k] = append(s.events[k], ev)
	s.members[k] = next
	return nil
}

func (s *Store) Events(_ context.Context, projectID, userID string) ([]worktime.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := memberKey{ProjectID: projectID, UserID: userID}
	out := make([]worktime.Event, len(s.events[k]))
	copy(out, s.events[k])
	// Insertion order is the tie-break; stable sort preserves it.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (s *Store) MemberState(_ context.Context, projectID, userID string) (worktime.MemberState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.members[memberKey{ProjectID: projectID, UserID: userID}]
	return state, ok, nil
}

// =============================================================================
// MEMBERSHIPS (worktime.MembershipStore)
// =============================================================================

func (s *Store) AddMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memberKey{ProjectID: projectID, UserID: userID}
	if _, ok := s.members[k]; !ok {
		s.members[k] = worktime.NewMemberState()
	}
	return nil
}

func (s *Store) Members(_ context.Context, projectID string) ([]worktime.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []worktime.Member
	for k, state := range s.members {
		if k.ProjectID == projectID {
			out = append(out, worktime.Member{ProjectID: k.ProjectID, UserID: k.UserID, State: state})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// =============================================================================
// REQUIREMENTS (ledger.RequirementStore)
// =============================================================================

func (s *Store) InsertRequirement(_ context.Context, r pricing.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertRequirementLocked(r)
}

func (s *Store) insertRequirementLocked(r pricing.Requirement) error {
	s.requirements[r.ID] = cloneRequirement(r)
	return nil
}

func (s *Store) UpdateRequirement(_ context.Context, r pricing.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRequirementLocked(r)
}

func (s *Store) updateRequirementLocked(r pricing.Requirement) error {
	if _, ok := s.requirements[r.ID]; !ok {
		return engine.ErrNotFound
	}
	// Milestone replacement is implicit: the stored value is the clone.
	s.requirements[r.ID] = cloneRequirement(r)
	return nil
}

func (s *Store) SoftDeleteRequirement(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.softDeleteRequirementLocked(id, at)
}

func (s *Store) softDeleteRequirementLocked(id string, at time.Time) error {
	r, ok := s.requirements[id]
	if !ok {
		return engine.ErrNotFound
	}
	r.DeletedAt = &at
	s.requirements[id] = r
	return nil
}

func (s *Store) Requirement(_ context.Context, id string) (pricing.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requirements[id]
	if !ok {
		return pricing.Requirement{}, engine.ErrNotFound
	}
	return cloneRequirement(r), nil
}

func (s *Store) LiveRequirements(_ context.Context, projectID string) ([]pricing.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []pricing.Requirement
	for _, r := range s.requirements {
		if r.ProjectID == projectID && !r.Deleted() {
			out = append(out, cloneRequirement(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// PROJECT TOTALS (ledger.TotalStore)
// =============================================================================

func (s *Store) Total(_ context.Context, projectID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals[projectID], nil
}

func (s *Store) UpdateTotal(_ context.Context, projectID string, update func(current string) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTotalLocked(projectID, update)
}

func (s *Store) updateTotalLocked(projectID string, update func(current string) (string, error)) error {
	next, err := update(s.totals[projectID])
	if err != nil {
		return err
	}
	s.totals[projectID] = next
	return nil
}

// =============================================================================
// TRANSACTIONS (ledger.Store)
// =============================================================================

// WithTx executes fn with snapshot + rollback-on-error semantics.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	if err := fn(&txView{parent: s}); err != nil {
		s.restoreLocked(snap)
		return err
	}
	return nil
}

type snapshot struct {
	requirements map[string]pricing.Requirement
	totals       map[string]string
}

func (s *Store) snapshotLocked() snapshot {
	reqs := make(map[string]pricing.Requirement, len(s.requirements))
	for id, r := range s.requirements {
		reqs[id] = cloneRequirement(r)
	}
	totals := make(map[string]string, len(s.totals))
	for id, v := range s.totals {
		totals[id] = v
	}
	return snapshot{requirements: reqs, totals: totals}
}

func (s *Store) restoreLocked(snap snapshot) {
	s.requirements = snap.requirements
	s.totals = snap.totals
}

// txView routes ledger.Store calls to the locked variants; the parent
// mutex is already held for the whole transaction.
type txView struct {
	parent *Store
}

func (v *txView) InsertRequirement(_ context.Context, r pricing.Requirement) error {
	return v.parent.insertRequirementLocked(r)
}

func (v *txView) UpdateRequirement(_ context.Context, r pricing.Requirement) error {
	return v.parent.updateRequirementLocked(r)
}

func (v *txView) SoftDeleteRequirement(_ context.Context, id string, at time.Time) error {
	return v.parent.softDeleteRequirementLocked(id, at)
}

func (v *txView) Requirement(_ context.Context, id string) (pricing.Requirement, error) {
	r, ok := v.parent.requirements[id]
	if !ok {
		return pricing.Requirement{}, engine.ErrNotFound
	}
	return cloneRequirement(r), nil
}

func (v *txView) LiveRequirements(_ context.Context, projectID string) ([]pricing.Requirement, error) {
	var out []pricing.Requirement
	for _, r := range v.parent.requirements {
		if r.ProjectID == projectID && !r.Deleted() {
			out = append(out, cloneRequirement(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v *txView) Total(_ context.Context, projectID string) (string, error) {
	return v.parent.totals[projectID], nil
}

func (v *txView) UpdateTotal(_ context.Context, projectID string, update func(string) (string, error)) error {
	return v.parent.updateTotalLocked(projectID, update)
}

func (v *txView) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return fn(v) // already inside the outer transaction
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneRequirement(r pricing.Requirement) pricing.Requirement {
	out := r
	out.EstimatedHours = cloneDecimal(r.EstimatedHours)
	out.HourlyRate = cloneDecimal(r.HourlyRate)
	out.Amount = cloneDecimal(r.Amount)
	if r.DeletedAt != nil {
		at := *r.DeletedAt
		out.DeletedAt = &at
	}
	out.Milestones = make([]pricing.Milestone, len(r.Milestones))
	copy(out.Milestones, r.Milestones)
	return out
}

func cloneDecimal[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
