/*
gate.go - Permission gate and notification collaborators

PURPOSE:
  Authorization and notification fan-out are external to this core: the
  handlers consult a boolean Gate before every mutating call and hand
  successful work-status changes to a Notifier. Both are interfaces so
  the surrounding CRM wires in its real implementations; the defaults
  here are for dev servers and tests.
*/
package api

import (
	"context"
	"log"
	"net/http"

	"github.com/lumencrm/ledger-engine/worktime"
)

// =============================================================================
// PERMISSION GATE
// =============================================================================

// Gate answers "is this actor allowed to perform action on this project".
// The core trusts the answer and performs no authorization logic itself.
type Gate interface {
	Allow(ctx context.Context, actorID, action, projectID string) bool
}

// Mutating actions checked against the gate.
const (
	ActionAddMember        = "add_member"
	ActionWorkStatus       = "work_status"
	ActionWriteRequirement = "write_requirement"
	ActionReconcile        = "reconcile"
)

// AllowAll is the dev default: every actor may do everything.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, string, string, string) bool { return true }

// actorID is taken from a header the authenticating proxy sets.
const actorHeader = "X-Actor-ID"

func actorID(r *http.Request) string {
	return r.Header.Get(actorHeader)
}

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier receives successful work-status changes for fan-out
// (email, in-app, etc.). Invoked by the handler after the state change
// commits; failures are the notifier's problem, never the request's.
type Notifier interface {
	WorkStatusChanged(ctx context.Context, projectID, userID string, event worktime.EventType)
}

// LogNotifier is the dev default: it just logs.
type LogNotifier struct{}

func (LogNotifier) WorkStatusChanged(_ context.Context, projectID, userID string, event worktime.EventType) {
	log.Printf("work status changed: project=%s user=%s event=%s", projectID, userID, event)
}
