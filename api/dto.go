/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY IN TRANSIT:
  Amounts cross the API as decimal strings ("350.01"), never floats -
  the same precision rule the domain enforces internally. Encrypted
  at-rest values are always decoded before they reach a DTO.

VALIDATION:
  Validation is done in handlers and the domain, not in DTOs. DTOs are
  pure data carriers.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumencrm/ledger-engine/pricing"
	"github.com/lumencrm/ledger-engine/worktime"
)

// =============================================================================
// WORK STATUS
// =============================================================================

// WorkStatusRequest asks for one status transition.
type WorkStatusRequest struct {
	Event string `json:"event"` // start | hold | resume | end
	Note  string `json:"note,omitempty"`
}

// MemberStateDTO is the cached work state of one member.
type MemberStateDTO struct {
	ProjectID string  `json:"project_id"`
	UserID    string  `json:"user_id"`
	Status    string  `json:"status"`
	StartedAt *string `json:"started_at,omitempty"`
	EndedAt   *string `json:"ended_at,omitempty"`
	DoneNotes string  `json:"done_notes,omitempty"`
}

// WorkTimeDTO is the aggregate of one member's work log.
type WorkTimeDTO struct {
	ProjectID    string          `json:"project_id"`
	UserID       string          `json:"user_id"`
	TotalSeconds int64           `json:"total_seconds"`
	LiveSeconds  int64           `json:"live_seconds"`
	Running      bool            `json:"running"`
	RunningSince *string         `json:"running_since,omitempty"`
	DayBreakdown []DaySecondsDTO `json:"day_breakdown"`
}

type DaySecondsDTO struct {
	Date    string `json:"date"`
	Seconds int64  `json:"seconds"`
}

// =============================================================================
// REQUIREMENTS
// =============================================================================

// MilestoneRequest is one milestone in a requirement write.
type MilestoneRequest struct {
	Title   string  `json:"title"`
	DueDate *string `json:"due_date,omitempty"` // 2006-01-02
	Amount  string  `json:"amount"`             // decimal string
}

// RequirementRequest is the body of a requirement create/update.
type RequirementRequest struct {
	Type           string             `json:"requirement_type"` // initial | addon
	Pricing        string             `json:"pricing_type"`     // hourly | fixed | milestone
	EstimatedHours *string            `json:"estimated_hours,omitempty"`
	HourlyRate     *string            `json:"hourly_rate,omitempty"`
	Amount         *string            `json:"amount,omitempty"`
	Milestones     []MilestoneRequest `json:"milestones,omitempty"`
}

// RequirementDTO is a requirement in API responses, amounts decoded.
type RequirementDTO struct {
	ID             string         `json:"id"`
	ProjectID      string         `json:"project_id"`
	Type           string         `json:"requirement_type"`
	Pricing        string         `json:"pricing_type"`
	EstimatedHours *string        `json:"estimated_hours,omitempty"`
	HourlyRate     *string        `json:"hourly_rate,omitempty"`
	Amount         *string        `json:"amount,omitempty"`
	Milestones     []MilestoneDTO `json:"milestones,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

type MilestoneDTO struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	DueDate *string `json:"due_date,omitempty"`
	Amount  string  `json:"amount"`
}

// =============================================================================
// PROJECT SUMMARY
// =============================================================================

// ProjectSummaryDTO is the project dashboard payload: decoded ledger
// total plus every member's work state and durations.
type ProjectSummaryDTO struct {
	ProjectID string             `json:"project_id"`
	Total     *string            `json:"project_amount"` // nil when never written
	Members   []MemberSummaryDTO `json:"members"`
}

type MemberSummaryDTO struct {
	UserID       string  `json:"user_id"`
	Status       string  `json:"status"`
	TotalSeconds int64   `json:"total_seconds"`
	Running      bool    `json:"running"`
	RunningSince *string `json:"running_since,omitempty"`
}

// ReconcileDTO reports one reconciliation pass.
type ReconcileDTO struct {
	ProjectID string  `json:"project_id"`
	Stored    *string `json:"stored_total"`
	Computed  string  `json:"computed_total"`
	Repaired  bool    `json:"repaired"`
}

// AddMemberRequest adds a user to a project team.
type AddMemberRequest struct {
	UserID string `json:"user_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toMemberStateDTO(projectID, userID string, s worktime.MemberState) MemberStateDTO {
	return MemberStateDTO{
		ProjectID: projectID,
		UserID:    userID,
		Status:    string(s.Status),
		StartedAt: formatTimePtr(s.StartedAt),
		EndedAt:   formatTimePtr(s.EndedAt),
		DoneNotes: s.DoneNotes,
	}
}

func toWorkTimeDTO(projectID, userID string, s worktime.Summary, now time.Time) WorkTimeDTO {
	dto := WorkTimeDTO{
		ProjectID:    projectID,
		UserID:       userID,
		TotalSeconds: s.TotalSeconds,
		LiveSeconds:  s.LiveSeconds(now),
		Running:      s.Running(),
		RunningSince: formatTimePtr(s.RunningSince),
		DayBreakdown: make([]DaySecondsDTO, 0, len(s.DayBreakdown)),
	}
	for _, d := range s.DayBreakdown {
		dto.DayBreakdown = append(dto.DayBreakdown, DaySecondsDTO{Date: d.Date, Seconds: d.Seconds})
	}
	return dto
}

func toRequirementDTO(r pricing.Requirement) RequirementDTO {
	dto := RequirementDTO{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		Type:           string(r.Type),
		Pricing:        string(r.Pricing),
		EstimatedHours: formatDecimalPtr(r.EstimatedHours),
		HourlyRate:     formatDecimalPtr(r.HourlyRate),
		Amount:         formatDecimalPtr(r.Amount),
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, m := range r.Milestones {
		var due *string
		if m.DueDate != nil {
			s := m.DueDate.UTC().Format("2006-01-02")
			due = &s
		}
		dto.Milestones = append(dto.Milestones, MilestoneDTO{
			ID:      m.ID,
			Title:   m.Title,
			DueDate: due,
			Amount:  m.Amount.String(),
		})
	}
	return dto
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func formatDecimalPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
