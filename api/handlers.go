/*
handlers.go - HTTP API handlers for the tardiness discipline engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Tardiness:
    POST   /api/tardiness/process                    Process one check-in
    GET    /api/employees/{id}/tardiness/stats       Monthly summary
    GET    /api/employees/{id}/disciplinary          Disciplinary history

  Rules (read-only reference data):
    GET    /api/rules/tardiness
    GET    /api/rules/disciplinary

  Operational:
    GET    /healthz
    GET    /metrics

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (pipeline, stats, history)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, malformed schedule times
  - 404: Resource not found
  - 409: Conflict (duplicate record race)
  - 422: Missing rule configuration
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. The service is deployed behind the HR
  application, which owns authentication.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlashr/discipline-engine/discipline"
	"github.com/atlashr/discipline-engine/metrics"
	"github.com/atlashr/discipline-engine/store/sqlite"
	"github.com/atlashr/discipline-engine/tardiness"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *tardiness.Service
	Metrics *metrics.Metrics

	// GraceMinutes is the default grace applied when a request carries a
	// check-in time without an explicit grace value.
	GraceMinutes int

	validate *validator.Validate
}

// NewHandler creates a new handler with the given store and pipeline.
func NewHandler(store *sqlite.Store, service *tardiness.Service, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		Store:    store,
		Service:  service,
		Metrics:  m,
		validate: validator.New(),
	}
}

// =============================================================================
// TARDINESS PIPELINE
// =============================================================================

// ProcessTardiness processes one attendance check-in.
// POST /api/tardiness/process
func (h *Handler) ProcessTardiness(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ProcessTardinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Metrics.FailuresTotal.WithLabelValues("decode").Inc()
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.Metrics.FailuresTotal.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	in := tardiness.ProcessInput{
		AttendanceID: req.AttendanceID,
		EmployeeID:   tardiness.EmployeeID(req.EmployeeID),
	}

	if req.CheckInTime != "" {
		checkIn, err := time.Parse(time.RFC3339, req.CheckInTime)
		if err != nil {
			h.Metrics.FailuresTotal.WithLabelValues("validation").Inc()
			writeError(w, http.StatusBadRequest, "Invalid check_in_time, expected RFC3339", err)
			return
		}
		in.CheckInTime = checkIn
	}

	switch {
	case req.MinutesLate != nil:
		in.MinutesLate = *req.MinutesLate
	case req.ScheduleStart != "":
		if in.CheckInTime.IsZero() {
			h.Metrics.FailuresTotal.WithLabelValues("validation").Inc()
			writeError(w, http.StatusBadRequest, "check_in_time is required with schedule_start", nil)
			return
		}
		grace := h.GraceMinutes
		if req.GraceMinutes != nil {
			grace = *req.GraceMinutes
		}
		minutes, err := tardiness.CalculateMinutesLate(in.CheckInTime, req.ScheduleStart, grace)
		if err != nil {
			h.Metrics.FailuresTotal.WithLabelValues("schedule").Inc()
			writeError(w, http.StatusBadRequest, "Cannot calculate lateness", err)
			return
		}
		in.MinutesLate = minutes
	default:
		h.Metrics.FailuresTotal.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, "Either minutes_late or schedule_start is required", nil)
		return
	}

	res, err := h.Service.ProcessTardiness(r.Context(), in)
	if err != nil {
		h.writeProcessError(w, err)
		return
	}

	h.Metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	h.Metrics.EventsTotal.WithLabelValues(string(res.AccumulationType)).Inc()
	if res.Replayed {
		h.Metrics.ReplaysTotal.Inc()
	} else {
		if res.DisciplinaryActionTriggered {
			h.Metrics.RecordsTotal.WithLabelValues(string(discipline.ActionAdministrativeAct)).Inc()
		}
		if res.TerminationProposed {
			h.Metrics.RecordsTotal.WithLabelValues(string(discipline.ActionTermination)).Inc()
		}
	}

	writeJSON(w, http.StatusOK, toProcessResultDTO(res))
}

func (h *Handler) writeProcessError(w http.ResponseWriter, err error) {
	switch {
	case tardiness.IsClientError(err):
		h.Metrics.FailuresTotal.WithLabelValues("input").Inc()
		writeError(w, http.StatusBadRequest, "Invalid tardiness input", err)
	case tardiness.IsConfigError(err):
		h.Metrics.FailuresTotal.WithLabelValues("config").Inc()
		writeError(w, http.StatusUnprocessableEntity, "No applicable rule configured", err)
	case errors.Is(err, tardiness.ErrDuplicateEvent),
		errors.Is(err, discipline.ErrDuplicateRecord):
		h.Metrics.FailuresTotal.WithLabelValues("conflict").Inc()
		writeError(w, http.StatusConflict, "Event already processed", err)
	default:
		h.Metrics.FailuresTotal.WithLabelValues("internal").Inc()
		writeError(w, http.StatusInternalServerError, "Failed to process tardiness", err)
	}
}

// =============================================================================
// READ ENDPOINTS
// =============================================================================

// GetMonthlyStats returns the tardiness summary for one employee-month.
// GET /api/employees/{id}/tardiness/stats?year=2026&month=3
func (h *Handler) GetMonthlyStats(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	now := time.Now()
	year, month := now.Year(), int(now.Month())
	var err error
	if v := r.URL.Query().Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}
	if v := r.URL.Query().Get("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
	}

	stats, err := h.Service.MonthlyStats(r.Context(), tardiness.EmployeeID(employeeID), time.Month(month), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats", err)
		return
	}

	writeJSON(w, http.StatusOK, toMonthlyStatsDTO(stats))
}

// GetDisciplinaryHistory returns the most recent disciplinary records.
// GET /api/employees/{id}/disciplinary?limit=20
func (h *Handler) GetDisciplinaryHistory(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	records, err := h.Service.DisciplinaryHistory(r.Context(), tardiness.EmployeeID(employeeID), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get disciplinary history", err)
		return
	}

	dtos := make([]DisciplinaryRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toDisciplinaryRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": dtos})
}

// ListTardinessRules returns the configured tardiness rules.
// GET /api/rules/tardiness
func (h *Handler) ListTardinessRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListTardinessRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tardiness rules", err)
		return
	}

	dtos := make([]TardinessRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toTardinessRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": dtos})
}

// ListDisciplinaryRules returns the configured disciplinary rules.
// GET /api/rules/disciplinary
func (h *Handler) ListDisciplinaryRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListDisciplinaryRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list disciplinary rules", err)
		return
	}

	dtos := make([]DisciplinaryRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toDisciplinaryRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": dtos})
}

// Healthz reports liveness.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
