package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"

	"github.com/threatengine/onboarding/internal/engine"
	"github.com/threatengine/onboarding/internal/executor"
	"github.com/threatengine/onboarding/internal/models"
	"github.com/threatengine/onboarding/internal/nextrun"
	"github.com/threatengine/onboarding/internal/repo"
)

// ScanRunner executes one tracked scan (the executor, behind an interface for
// handler tests).
type ScanRunner interface {
	RunTracked(ctx context.Context, req executor.Request) (string, *engine.ScanResult, error)
}

// ScheduleHandler handles scan schedule CRUD and manual triggering.
type ScheduleHandler struct {
	Schedules  *repo.ScheduleRepo
	Accounts   *repo.AccountRepo
	Providers  *repo.ProviderRepo
	Executions *repo.ExecutionRepo
	Runner     ScanRunner
	Log        *slog.Logger
}

// CreateSchedule creates a schedule and computes its first next_run_at.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var input struct {
		TenantID        string   `json:"tenant_id"`
		AccountID       string   `json:"account_id"`
		Name            string   `json:"name"`
		Description     string   `json:"description"`
		ScheduleType    string   `json:"schedule_type"`
		CronExpression  string   `json:"cron_expression"`
		IntervalSeconds int      `json:"interval_seconds"`
		Timezone        string   `json:"timezone"`
		Regions         []string `json:"regions"`
		Services        []string `json:"services"`
		ExcludeServices []string `json:"exclude_services"`
		NotifyOnSuccess bool     `json:"notify_on_success"`
		NotifyOnFailure bool     `json:"notify_on_failure"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	fields := make(map[string]string)
	if input.TenantID == "" {
		fields["tenant_id"] = "required"
	}
	if input.AccountID == "" {
		fields["account_id"] = "required"
	}
	if input.Name == "" {
		fields["name"] = "required"
	}
	if !models.KnownKind(input.ScheduleType) {
		fields["schedule_type"] = "must be cron, interval or one_time"
	}
	switch input.ScheduleType {
	case models.KindCron:
		if input.CronExpression == "" {
			fields["cron_expression"] = "required"
		} else if err := nextrun.ValidateCron(input.CronExpression); err != nil {
			fields["cron_expression"] = "invalid cron expression"
		}
	case models.KindInterval:
		if input.IntervalSeconds <= 0 {
			fields["interval_seconds"] = "must be positive"
		}
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}
	if input.Timezone == "" {
		input.Timezone = "UTC"
	}

	account, err := h.Accounts.GetByID(r.Context(), input.AccountID)
	if err != nil {
		h.Log.Error("lookup account", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if account == nil {
		JSONError(w, "account not found", http.StatusNotFound)
		return
	}
	provider, err := h.Providers.GetByID(r.Context(), account.ProviderID)
	if err != nil || provider == nil {
		if err != nil {
			h.Log.Error("lookup provider", "error", err)
		}
		JSONError(w, "provider not found for account", http.StatusNotFound)
		return
	}

	next, err := nextrun.Compute(input.ScheduleType, input.CronExpression, input.IntervalSeconds, input.Timezone, time.Now().UTC())
	if err != nil {
		JSONValidationError(w, "validation failed", map[string]string{"timezone": err.Error()}, http.StatusBadRequest)
		return
	}
	// one_time schedules run once, on the next poll
	if input.ScheduleType == models.KindOneTime {
		now := time.Now().UTC()
		next = &now
	}

	schedule, err := h.Schedules.Create(r.Context(), repo.CreateParams{
		TenantID:        input.TenantID,
		AccountID:       input.AccountID,
		Name:            input.Name,
		Description:     input.Description,
		Kind:            input.ScheduleType,
		CronExpression:  input.CronExpression,
		IntervalSeconds: input.IntervalSeconds,
		Timezone:        input.Timezone,
		ProviderType:    provider.ProviderType,
		Regions:         input.Regions,
		Services:        input.Services,
		ExcludeServices: input.ExcludeServices,
		NextRunAt:       next,
		NotifyOnSuccess: input.NotifyOnSuccess,
		NotifyOnFailure: input.NotifyOnFailure,
	})
	if err != nil {
		h.Log.Error("create schedule", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, schedule)
}

// ListSchedules returns schedules filtered by tenant_id or account_id,
// optionally by status.
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	accountID := r.URL.Query().Get("account_id")
	status := r.URL.Query().Get("status")

	var (
		list []models.Schedule
		err  error
	)
	switch {
	case accountID != "":
		list, err = h.Schedules.ListByAccount(r.Context(), accountID)
	case tenantID != "":
		list, err = h.Schedules.ListByTenant(r.Context(), tenantID)
	default:
		JSONError(w, "either tenant_id or account_id must be provided", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Log.Error("list schedules", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	if status != "" {
		filtered := list[:0]
		for _, s := range list {
			if s.Status == status {
				filtered = append(filtered, s)
			}
		}
		list = filtered
	}
	if list == nil {
		list = []models.Schedule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": list})
}

// GetSchedule returns one schedule by id.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// UpdateSchedule applies a partial update. Changing the cadence (cron
// expression, interval, schedule type or timezone) recomputes next_run_at.
func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.load(w, r)
	if !ok {
		return
	}

	var input struct {
		Name            *string  `json:"name"`
		Description     *string  `json:"description"`
		ScheduleType    *string  `json:"schedule_type"`
		CronExpression  *string  `json:"cron_expression"`
		IntervalSeconds *int     `json:"interval_seconds"`
		Timezone        *string  `json:"timezone"`
		Status          *string  `json:"status"`
		Enabled         *bool    `json:"enabled"`
		Regions         []string `json:"regions"`
		Services        []string `json:"services"`
		ExcludeServices []string `json:"exclude_services"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	updates := make(map[string]any)
	if input.Name != nil && *input.Name != "" {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Status != nil {
		if *input.Status != models.ScheduleActive && *input.Status != models.SchedulePaused {
			JSONValidationError(w, "validation failed", map[string]string{"status": "must be active or paused"}, http.StatusBadRequest)
			return
		}
		updates["status"] = *input.Status
	}
	if input.Enabled != nil {
		updates["enabled"] = *input.Enabled
	}
	if input.Regions != nil {
		updates["regions"] = pq.Array(input.Regions)
	}
	if input.Services != nil {
		updates["services"] = pq.Array(input.Services)
	}
	if input.ExcludeServices != nil {
		updates["exclude_services"] = pq.Array(input.ExcludeServices)
	}

	// merge cadence fields with the stored ones before recomputing
	kind := schedule.Kind
	cronExpr := schedule.CronExpression
	interval := schedule.IntervalSeconds
	timezone := schedule.Timezone
	cadenceChanged := false
	if input.ScheduleType != nil {
		if !models.KnownKind(*input.ScheduleType) {
			JSONValidationError(w, "validation failed", map[string]string{"schedule_type": "must be cron, interval or one_time"}, http.StatusBadRequest)
			return
		}
		kind = *input.ScheduleType
		updates["schedule_type"] = kind
		cadenceChanged = true
	}
	if input.CronExpression != nil {
		if err := nextrun.ValidateCron(*input.CronExpression); err != nil {
			JSONValidationError(w, "validation failed", map[string]string{"cron_expression": "invalid cron expression"}, http.StatusBadRequest)
			return
		}
		cronExpr = *input.CronExpression
		updates["cron_expression"] = cronExpr
		cadenceChanged = true
	}
	if input.IntervalSeconds != nil {
		if *input.IntervalSeconds <= 0 {
			JSONValidationError(w, "validation failed", map[string]string{"interval_seconds": "must be positive"}, http.StatusBadRequest)
			return
		}
		interval = *input.IntervalSeconds
		updates["interval_seconds"] = interval
		cadenceChanged = true
	}
	if input.Timezone != nil {
		timezone = *input.Timezone
		updates["timezone"] = timezone
		cadenceChanged = true
	}

	if cadenceChanged {
		next, err := nextrun.Compute(kind, cronExpr, interval, timezone, time.Now().UTC())
		if err != nil {
			JSONValidationError(w, "validation failed", map[string]string{"schedule": err.Error()}, http.StatusBadRequest)
			return
		}
		updates["next_run_at"] = next
	}

	if len(updates) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "schedule_id": schedule.ID})
		return
	}

	if err := h.Schedules.Update(r.Context(), schedule.ID, updates); err != nil {
		h.Log.Error("update schedule", "schedule_id", schedule.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	updated, _ := h.Schedules.GetByID(r.Context(), schedule.ID)
	writeJSON(w, http.StatusOK, updated)
}

// EnableSchedule resumes a schedule.
func (h *ScheduleHandler) EnableSchedule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableSchedule pauses a schedule without deleting it.
func (h *ScheduleHandler) DisableSchedule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *ScheduleHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	schedule, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.Schedules.SetEnabled(r.Context(), schedule.ID, enabled); err != nil {
		h.Log.Error("set schedule enabled", "schedule_id", schedule.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule_id": schedule.ID, "enabled": enabled})
}

// TriggerSchedule runs a schedule's scan immediately. The run lands in the
// execution history as triggered_by=manual and does not touch next_run_at.
func (h *ScheduleHandler) TriggerSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.load(w, r)
	if !ok {
		return
	}

	execID, result, err := h.Runner.RunTracked(r.Context(), executor.Request{
		ScheduleID:      schedule.ID,
		AccountID:       schedule.AccountID,
		ProviderType:    schedule.ProviderType,
		Regions:         schedule.Regions,
		Services:        schedule.Services,
		ExcludeServices: schedule.ExcludeServices,
		TriggeredBy:     models.TriggeredByManual,
	})
	if err != nil {
		h.Log.Error("manual trigger failed", "schedule_id", schedule.ID, "execution_id", execID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status":       "failed",
			"execution_id": execID,
			"error":        err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "triggered",
		"execution_id": execID,
		"scan_id":      result.ScanID,
		"message":      "Schedule executed manually",
	})
}

// DeleteSchedule removes a schedule.
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.Schedules.Delete(r.Context(), schedule.ID); err != nil {
		h.Log.Error("delete schedule", "schedule_id", schedule.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "schedule_id": schedule.ID})
}

// ListExecutions returns a schedule's execution history (query: limit, offset).
func (h *ScheduleHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.load(w, r)
	if !ok {
		return
	}

	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	executions, err := h.Executions.ListBySchedule(r.Context(), schedule.ID, limit, offset)
	if err != nil {
		h.Log.Error("list executions", "schedule_id", schedule.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	total, err := h.Executions.CountBySchedule(r.Context(), schedule.ID)
	if err != nil {
		h.Log.Error("count executions", "schedule_id", schedule.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if executions == nil {
		executions = []models.Execution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": executions, "total": total})
}

// load fetches the schedule from the URL or writes the error response.
func (h *ScheduleHandler) load(w http.ResponseWriter, r *http.Request) (*models.Schedule, bool) {
	id := chi.URLParam(r, "schedule_id")
	schedule, err := h.Schedules.GetByID(r.Context(), id)
	if err != nil {
		h.Log.Error("get schedule", "schedule_id", id, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return nil, false
	}
	if schedule == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return nil, false
	}
	return schedule, true
}
