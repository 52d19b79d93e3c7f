/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator struct tags; handlers run them through a
  shared validator instance before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/atlashr/discipline-engine/discipline"
	"github.com/atlashr/discipline-engine/tardiness"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ProcessTardinessRequest is the request to process one attendance
// check-in. Either minutes_late is supplied precomputed, or check_in_time
// plus schedule_start (HH:MM) and the lateness is calculated here.
type ProcessTardinessRequest struct {
	AttendanceID string `json:"attendance_id" validate:"required"`
	EmployeeID   string `json:"employee_id" validate:"required"`

	MinutesLate *int `json:"minutes_late,omitempty" validate:"omitempty,min=0"`

	CheckInTime   string `json:"check_in_time,omitempty"`
	ScheduleStart string `json:"schedule_start,omitempty"`
	GraceMinutes  *int   `json:"grace_minutes,omitempty" validate:"omitempty,min=0"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// MonthCountersDTO is the post-update counter snapshot.
type MonthCountersDTO struct {
	LateArrivals       int `json:"late_arrivals"`
	DirectTardiness    int `json:"direct_tardiness"`
	FormalTardies      int `json:"formal_tardies"`
	AdministrativeActs int `json:"administrative_acts"`
}

// ProcessResultDTO is the outcome of one processed check-in.
type ProcessResultDTO struct {
	AttendanceID string `json:"attendance_id"`
	EmployeeID   string `json:"employee_id"`
	Replayed     bool   `json:"replayed"`

	RuleApplied        bool             `json:"rule_applied"`
	RuleID             string           `json:"rule_id,omitempty"`
	RuleName           string           `json:"rule_name,omitempty"`
	AccumulationType   string           `json:"accumulation_type"`
	FormalTardiesAdded int              `json:"formal_tardies_added"`
	CurrentMonthStats  MonthCountersDTO `json:"current_month_stats"`

	DisciplinaryActionTriggered bool   `json:"disciplinary_action_triggered"`
	DisciplinaryActionID        string `json:"disciplinary_action_id,omitempty"`
	TerminationProposed         bool   `json:"termination_proposed"`
	TerminationProposalID       string `json:"termination_proposal_id,omitempty"`
}

// MonthlyStatsDTO summarizes one employee-month.
type MonthlyStatsDTO struct {
	EmployeeID string `json:"employee_id"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`

	Counters MonthCountersDTO `json:"counters"`

	EventCount         int    `json:"event_count"`
	TotalMinutesLate   int    `json:"total_minutes_late"`
	AverageMinutesLate string `json:"average_minutes_late"`
	MaxMinutesLate     int    `json:"max_minutes_late"`
}

// DisciplinaryRecordDTO is one disciplinary record in API responses.
type DisciplinaryRecordDTO struct {
	ID             string `json:"id"`
	EmployeeID     string `json:"employee_id"`
	RuleID         string `json:"rule_id"`
	ActionType     string `json:"action_type"`
	TriggerType    string `json:"trigger_type"`
	TriggerCount   int    `json:"trigger_count"`
	AppliedDate    string `json:"applied_date"`
	SuspensionDays *int   `json:"suspension_days,omitempty"`
	Status         string `json:"status"`
	Description    string `json:"description,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// TardinessRuleDTO is one configured tardiness rule.
type TardinessRuleDTO struct {
	ID                      string `json:"id"`
	Role                    string `json:"role"`
	Name                    string `json:"name"`
	Type                    string `json:"type"`
	AccumulationCount       int    `json:"accumulation_count"`
	EquivalentFormalTardies int    `json:"equivalent_formal_tardies"`
}

// DisciplinaryRuleDTO is one configured disciplinary rule.
type DisciplinaryRuleDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	TriggerType      string `json:"trigger_type"`
	TriggerCount     int    `json:"trigger_count"`
	PeriodDays       int    `json:"period_days,omitempty"`
	ActionType       string `json:"action_type"`
	SuspensionDays   int    `json:"suspension_days,omitempty"`
	RequiresApproval bool   `json:"requires_approval"`
	Active           bool   `json:"active"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toProcessResultDTO(res *tardiness.Result) ProcessResultDTO {
	return ProcessResultDTO{
		AttendanceID:       res.AttendanceID,
		EmployeeID:         string(res.EmployeeID),
		Replayed:           res.Replayed,
		RuleApplied:        res.RuleApplied,
		RuleID:             string(res.RuleID),
		RuleName:           res.RuleName,
		AccumulationType:   string(res.AccumulationType),
		FormalTardiesAdded: res.FormalTardiesAdded,
		CurrentMonthStats: MonthCountersDTO{
			LateArrivals:       res.CurrentMonthStats.LateArrivals,
			DirectTardiness:    res.CurrentMonthStats.DirectTardiness,
			FormalTardies:      res.CurrentMonthStats.FormalTardies,
			AdministrativeActs: res.CurrentMonthStats.AdministrativeActs,
		},
		DisciplinaryActionTriggered: res.DisciplinaryActionTriggered,
		DisciplinaryActionID:        res.DisciplinaryActionID,
		TerminationProposed:         res.TerminationProposed,
		TerminationProposalID:       res.TerminationProposalID,
	}
}

func toMonthlyStatsDTO(stats *tardiness.MonthlyStats) MonthlyStatsDTO {
	return MonthlyStatsDTO{
		EmployeeID: string(stats.EmployeeID),
		Year:       stats.Year,
		Month:      int(stats.Month),
		Counters: MonthCountersDTO{
			LateArrivals:       stats.Counters.LateArrivals,
			DirectTardiness:    stats.Counters.DirectTardiness,
			FormalTardies:      stats.Counters.FormalTardies,
			AdministrativeActs: stats.Counters.AdministrativeActs,
		},
		EventCount:         stats.EventCount,
		TotalMinutesLate:   stats.TotalMinutesLate,
		AverageMinutesLate: stats.AverageMinutesLate.StringFixed(2),
		MaxMinutesLate:     stats.MaxMinutesLate,
	}
}

func toDisciplinaryRecordDTO(rec discipline.Record) DisciplinaryRecordDTO {
	dto := DisciplinaryRecordDTO{
		ID:             rec.ID,
		EmployeeID:     rec.EmployeeID,
		RuleID:         rec.RuleID,
		ActionType:     string(rec.ActionType),
		TriggerType:    string(rec.TriggerType),
		TriggerCount:   rec.TriggerCount,
		AppliedDate:    rec.AppliedDate.Format("2006-01-02"),
		SuspensionDays: rec.SuspensionDays,
		Status:         string(rec.Status),
		Description:    rec.Description,
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toTardinessRuleDTO(rule tardiness.Rule) TardinessRuleDTO {
	return TardinessRuleDTO{
		ID:                      string(rule.ID),
		Role:                    string(rule.Role),
		Name:                    rule.Name,
		Type:                    string(rule.Type),
		AccumulationCount:       rule.AccumulationCount,
		EquivalentFormalTardies: rule.EquivalentFormalTardies,
	}
}

func toDisciplinaryRuleDTO(rule discipline.Rule) DisciplinaryRuleDTO {
	return DisciplinaryRuleDTO{
		ID:               rule.ID,
		Name:             rule.Name,
		TriggerType:      string(rule.TriggerType),
		TriggerCount:     rule.TriggerCount,
		PeriodDays:       rule.PeriodDays,
		ActionType:       string(rule.ActionType),
		SuspensionDays:   rule.SuspensionDays,
		RequiresApproval: rule.RequiresApproval,
		Active:           rule.Active,
	}
}
