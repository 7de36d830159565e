/*
handlers.go - HTTP API handlers for the project ledger engine

PURPOSE:
  Exposes the work-time tracker and financial ledger via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Members:
    POST   /api/projects/{projectID}/members                        Add member
    POST   /api/projects/{projectID}/members/{userID}/work-status   Apply work event
    GET    /api/projects/{projectID}/members/{userID}/work-time     Duration summary

  Requirements:
    POST   /api/projects/{projectID}/requirements   Create requirement
    GET    /api/projects/{projectID}/requirements   List live requirements
    PUT    /api/requirements/{id}                   Update requirement
    DELETE /api/requirements/{id}                   Soft-delete requirement

  Project:
    GET    /api/projects/{projectID}/summary        Total + member states

  Admin:
    POST   /api/admin/projects/{projectID}/reconcile  Recompute stored total

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Tracker: work-status state machine over the event store
  - Requirements: requirement CRUD + delta application
  - Members: project membership
  - Gate: per-action permission checks (X-Actor-ID header)
  - Notify: fan-out hook for status changes

REQUEST FLOW:
  1. Parse HTTP request
  2. Check permission via Gate
  3. Call domain logic
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Domain errors map to HTTP status via the engine taxonomy:
  - 400: validation errors, invalid transitions
  - 404: missing requirement
  - 409: concurrent modification (retryable by the client)
  - 500: storage and decode failures

SEE ALSO:
  - dto.go: Request/response data structures
  - gate.go: Permission gate and notifier hooks
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lumencrm/ledger-engine/engine"
	"github.com/lumencrm/ledger-engine/ledger"
	"github.com/lumencrm/ledger-engine/pricing"
	"github.com/lumencrm/ledger-engine/worktime"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Tracker      *worktime.Tracker
	Events       worktime.EventStore
	Members      worktime.MembershipStore
	Requirements *ledger.RequirementService
	Gate         Gate
	Notify       Notifier

	// Now is the clock used for live duration math. Defaults to time.Now.
	Now worktime.Clock

	// Loc is the timezone for day-breakdown boundaries. Defaults to UTC.
	Loc *time.Location
}

// NewHandler wires a handler over the given stores and services.
func NewHandler(tracker *worktime.Tracker, events worktime.EventStore, members worktime.MembershipStore, reqs *ledger.RequirementService) *Handler {
	return &Handler{
		Tracker:      tracker,
		Events:       events,
		Members:      members,
		Requirements: reqs,
		Gate:         AllowAll{},
		Notify:       LogNotifier{},
		Now:          time.Now,
		Loc:          time.UTC,
	}
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// AddMember adds a user to the project team.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	if !h.Gate.Allow(r.Context(), actorID(r), ActionAddMember, projectID) {
		writeError(w, http.StatusForbidden, "Not allowed to add members")
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.Members.AddMember(r.Context(), projectID, req.UserID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"project_id": projectID,
		"user_id":    req.UserID,
		"status":     string(worktime.StatusNotStarted),
	})
}

// ApplyWorkStatus applies one work-status event to a member.
func (h *Handler) ApplyWorkStatus(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	userID := chi.URLParam(r, "userID")

	if !h.Gate.Allow(r.Context(), actorID(r), ActionWorkStatus, projectID) {
		writeError(w, http.StatusForbidden, "Not allowed to change work status")
		return
	}

	var req WorkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := h.Tracker.Apply(r.Context(), projectID, userID, worktime.EventType(req.Event), req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.Notify.WorkStatusChanged(r.Context(), projectID, userID, worktime.EventType(req.Event))

	writeJSON(w, http.StatusOK, toMemberStateDTO(projectID, userID, state))
}

// GetWorkTime returns the duration summary for one member.
func (h *Handler) GetWorkTime(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	userID := chi.URLParam(r, "userID")

	events, err := h.Events.Events(r.Context(), projectID, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := h.Now()
	summary := worktime.Aggregate(events, now, h.Loc)
	writeJSON(w, http.StatusOK, toWorkTimeDTO(projectID, userID, summary, now))
}

// =============================================================================
// REQUIREMENT HANDLERS
// =============================================================================

// CreateRequirement creates a requirement and applies its amount to the
// project total.
func (h *Handler) CreateRequirement(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	if !h.Gate.Allow(r.Context(), actorID(r), ActionWriteRequirement, projectID) {
		writeError(w, http.StatusForbidden, "Not allowed to modify requirements")
		return
	}

	in, ok := decodeRequirementInput(w, r)
	if !ok {
		return
	}

	created, err := h.Requirements.Create(r.Context(), projectID, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequirementDTO(created))
}

// ListRequirements returns the live requirements of a project.
func (h *Handler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	reqs, err := h.Requirements.List(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RequirementDTO, 0, len(reqs))
	for _, req := range reqs {
		dtos = append(dtos, toRequirementDTO(req))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateRequirement replaces a requirement's pricing and shifts the
// project total by the amount difference.
func (h *Handler) UpdateRequirement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.Requirements.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The gate needs the project id, which only the load can supply.
	// Answering 403 here would tell an unauthorized actor which ids
	// exist, so a denial looks exactly like a missing record.
	if !h.Gate.Allow(r.Context(), actorID(r), ActionWriteRequirement, existing.ProjectID) {
		writeError(w, http.StatusNotFound, engine.ErrNotFound.Error())
		return
	}

	in, ok := decodeRequirementInput(w, r)
	if !ok {
		return
	}

	updated, err := h.Requirements.Update(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequirementDTO(updated))
}

// DeleteRequirement soft-deletes a requirement and subtracts its amount
// from the project total. Deleting twice is a no-op.
func (h *Handler) DeleteRequirement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.Requirements.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Same masking as UpdateRequirement: a gate denial must not reveal
	// that the id exists.
	if !h.Gate.Allow(r.Context(), actorID(r), ActionWriteRequirement, existing.ProjectID) {
		writeError(w, http.StatusNotFound, engine.ErrNotFound.Error())
		return
	}

	if err := h.Requirements.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// =============================================================================
// PROJECT SUMMARY
// =============================================================================

// GetProjectSummary returns the decoded ledger total and every member's
// work state and total duration.
func (h *Handler) GetProjectSummary(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	ctx := r.Context()

	total, err := h.Requirements.ProjectTotal(ctx, projectID)
	if err != nil && !errors.Is(err, engine.ErrDecode) {
		writeDomainError(w, err)
		return
	}
	// A corrupt total surfaces as null rather than failing the whole
	// dashboard. The reconcile endpoint repairs it.
	if errors.Is(err, engine.ErrDecode) {
		log.Printf("WARN: project %s total failed to decode", projectID)
		total = nil
	}

	members, err := h.Members.Members(ctx, projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := h.Now()
	memberDTOs := make([]MemberSummaryDTO, 0, len(members))
	for _, m := range members {
		state, ok, err := h.Events.MemberState(ctx, projectID, m.UserID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !ok {
			state = worktime.NewMemberState()
		}

		events, err := h.Events.Events(ctx, projectID, m.UserID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		summary := worktime.Aggregate(events, now, h.Loc)

		memberDTOs = append(memberDTOs, MemberSummaryDTO{
			UserID:       m.UserID,
			Status:       string(state.Status),
			TotalSeconds: summary.LiveSeconds(now),
			Running:      summary.Running(),
			RunningSince: formatTimePtr(summary.RunningSince),
		})
	}

	writeJSON(w, http.StatusOK, ProjectSummaryDTO{
		ProjectID: projectID,
		Total:     formatDecimalPtr(total),
		Members:   memberDTOs,
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Reconcile recomputes the project total from live requirements and
// repairs the stored value when it drifted or failed to decode.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	if !h.Gate.Allow(r.Context(), actorID(r), ActionReconcile, projectID) {
		writeError(w, http.StatusForbidden, "Not allowed to reconcile")
		return
	}

	report, err := h.Requirements.Reconcile(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ReconcileDTO{
		ProjectID: report.ProjectID,
		Stored:    formatDecimalPtr(report.Stored),
		Computed:  report.Computed.StringFixed(2),
		Repaired:  report.Repaired,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeRequirementInput parses and converts a requirement write body.
// Writes the error response itself and returns ok=false on failure.
func decodeRequirementInput(w http.ResponseWriter, r *http.Request) (ledger.RequirementInput, bool) {
	var req RequirementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return ledger.RequirementInput{}, false
	}

	in := ledger.RequirementInput{
		Type:    pricing.RequirementType(req.Type),
		Pricing: pricing.PricingType(req.Pricing),
	}

	var ok bool
	if in.EstimatedHours, ok = parseDecimalPtr(w, "estimated_hours", req.EstimatedHours); !ok {
		return ledger.RequirementInput{}, false
	}
	if in.HourlyRate, ok = parseDecimalPtr(w, "hourly_rate", req.HourlyRate); !ok {
		return ledger.RequirementInput{}, false
	}
	if in.Amount, ok = parseDecimalPtr(w, "amount", req.Amount); !ok {
		return ledger.RequirementInput{}, false
	}

	for _, m := range req.Milestones {
		amount, err := decimal.NewFromString(m.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid milestone amount")
			return ledger.RequirementInput{}, false
		}
		var due *time.Time
		if m.DueDate != nil {
			t, err := time.Parse("2006-01-02", *m.DueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid milestone due_date (use YYYY-MM-DD)")
				return ledger.RequirementInput{}, false
			}
			due = &t
		}
		in.Milestones = append(in.Milestones, ledger.MilestoneInput{
			Title:   m.Title,
			DueDate: due,
			Amount:  amount,
		})
	}

	return in, true
}

func parseDecimalPtr(w http.ResponseWriter, field string, s *string) (*decimal.Decimal, bool) {
	if s == nil {
		return nil, true
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+field)
		return nil, false
	}
	return &d, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps a domain error to an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case engine.IsRetryable(err):
		writeError(w, http.StatusConflict, err.Error())
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("ERROR: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}
