// Package alerts implements the alert management HTTP endpoints.
package alerts

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/feedwatch/internal/alerting"
	"github.com/good-yellow-bee/feedwatch/internal/models"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Response types
type AlertResponse struct {
	ID            string                   `json:"id"`
	Name          string                   `json:"name"`
	Description   string                   `json:"description,omitempty"`
	Keywords      []string                 `json:"keywords"`
	Sources       []string                 `json:"sources,omitempty"`
	Priority      string                   `json:"priority"`
	Notifications models.NotificationPrefs `json:"notifications"`
	Schedule      models.Schedule          `json:"schedule"`
	Active        bool                     `json:"active"`
	CreatedAt     string                   `json:"created_at"`
	LastTriggered string                   `json:"last_triggered,omitempty"`
	TriggerCount  int                      `json:"trigger_count"`
}

type TriggerResponse struct {
	ID              string          `json:"id"`
	AlertID         string          `json:"alert_id"`
	TriggeredAt     string          `json:"triggered_at"`
	Item            models.FeedItem `json:"item"`
	MatchedKeywords []string        `json:"matched_keywords"`
	Priority        string          `json:"priority"`
	Acknowledged    bool            `json:"acknowledged"`
	AcknowledgedAt  string          `json:"acknowledged_at,omitempty"`
}

// Handler handles alert endpoints.
type Handler struct {
	engine *alerting.Engine
}

func NewHandler(engine *alerting.Engine) *Handler {
	return &Handler{engine: engine}
}

// Request types
type CreateRequest struct {
	Name          string                   `json:"name"`
	Description   string                   `json:"description"`
	Keywords      []string                 `json:"keywords"`
	Sources       []string                 `json:"sources"`
	Priority      string                   `json:"priority"`
	Notifications models.NotificationPrefs `json:"notifications"`
	Schedule      models.Schedule          `json:"schedule"`
	Active        *bool                    `json:"active"`
}

type UpdateRequest struct {
	Name          *string                   `json:"name,omitempty"`
	Description   *string                   `json:"description,omitempty"`
	Keywords      []string                  `json:"keywords,omitempty"`
	Sources       []string                  `json:"sources,omitempty"`
	Priority      *string                   `json:"priority,omitempty"`
	Notifications *models.NotificationPrefs `json:"notifications,omitempty"`
	Schedule      *models.Schedule          `json:"schedule,omitempty"`
	Active        *bool                     `json:"active,omitempty"`
}

type SnoozeRequest struct {
	// Minutes to suppress the alert; zero or negative clears an
	// existing snooze.
	Minutes int `json:"minutes"`
}

type CheckRequest struct {
	Items []*models.FeedItem `json:"items"`
}

// List returns all alerts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.engine.Alerts(r.Context())
	if err != nil {
		log.Printf("list alerts error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*AlertResponse, len(alerts))
	for i, a := range alerts {
		resp[i] = alertToResponse(a)
	}
	jsonOK(w, resp)
}

// Create creates a new alert.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if err := ValidateName(req.Name); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateKeywords(req.Keywords); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	priority, err := ValidatePriority(req.Priority)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateActiveHours(req.Schedule.ActiveHours); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateActiveDays(req.Schedule.ActiveDays); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateTimezone(req.Schedule.Timezone); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	alert := &models.AlertConfig{
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		Keywords:      req.Keywords,
		Sources:       req.Sources,
		Priority:      priority,
		Notifications: req.Notifications,
		Schedule:      req.Schedule,
		Active:        active,
	}

	created, err := h.engine.CreateAlert(r.Context(), alert)
	if err != nil {
		log.Printf("create alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonCreated(w, alertToResponse(created))
}

// GetByID returns an alert by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	alert, err := h.engine.Alert(r.Context(), id)
	if err != nil {
		log.Printf("get alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonOK(w, alertToResponse(alert))
}

// Update applies a partial update to an alert.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	upd := alerting.AlertUpdate{
		Keywords:      req.Keywords,
		Sources:       req.Sources,
		Notifications: req.Notifications,
		Schedule:      req.Schedule,
		Active:        req.Active,
	}
	if req.Name != nil {
		if err := ValidateName(*req.Name); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		name := strings.TrimSpace(*req.Name)
		upd.Name = &name
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		upd.Description = &desc
	}
	if req.Keywords != nil {
		if err := ValidateKeywords(req.Keywords); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
	}
	if req.Priority != nil {
		priority, err := ValidatePriority(*req.Priority)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		upd.Priority = &priority
	}
	if req.Schedule != nil {
		if err := ValidateActiveHours(req.Schedule.ActiveHours); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		if err := ValidateActiveDays(req.Schedule.ActiveDays); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		if err := ValidateTimezone(req.Schedule.Timezone); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
	}

	alert, err := h.engine.UpdateAlert(r.Context(), id, upd)
	if err != nil {
		log.Printf("update alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonOK(w, alertToResponse(alert))
}

// Delete deletes an alert. History is kept unless ?purge_history=true.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}
	purge := r.URL.Query().Get("purge_history") == "true"

	ok, err := h.engine.DeleteAlert(r.Context(), id, purge)
	if err != nil {
		log.Printf("delete alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonNoContent(w)
}

// Toggle flips an alert's active flag.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	alert, err := h.engine.ToggleAlert(r.Context(), id)
	if err != nil {
		log.Printf("toggle alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonOK(w, alertToResponse(alert))
}

// Snooze suppresses an alert for a number of minutes.
func (h *Handler) Snooze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	var req SnoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	alert, err := h.engine.SnoozeAlert(r.Context(), id, time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		log.Printf("snooze alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonOK(w, alertToResponse(alert))
}

// History returns trigger history, newest first. With an {id} URL
// parameter it is scoped to that alert; ?limit caps the page size.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")
	if alertID == "" {
		alertID = r.URL.Query().Get("alert_id")
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 0 {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	triggers, err := h.engine.History(r.Context(), alertID, limit)
	if err != nil {
		log.Printf("list history error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*TriggerResponse, len(triggers))
	for i, t := range triggers {
		resp[i] = triggerToResponse(t)
	}
	jsonOK(w, resp)
}

// ClearHistory removes trigger history, scoped to one alert when the
// {id} URL parameter is present.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")

	removed, err := h.engine.ClearHistory(r.Context(), alertID)
	if err != nil {
		log.Printf("clear history error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, map[string]int64{"removed": removed})
}

// Acknowledge marks a trigger acknowledged.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "trigger id required")
		return
	}

	ok, err := h.engine.AcknowledgeTrigger(r.Context(), id)
	if err != nil {
		log.Printf("acknowledge trigger error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "trigger not found")
		return
	}

	jsonNoContent(w)
}

// Stats returns alert and trigger statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.AlertStats(r.Context())
	if err != nil {
		log.Printf("alert stats error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, stats)
}

// Check runs one monitoring pass over the posted feed items and
// returns the triggers created.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	// Detached from the request context: a client disconnect must not
	// abort the pass's store writes partway through.
	triggers := h.engine.CheckFeedItems(context.WithoutCancel(r.Context()), req.Items)

	resp := make([]*TriggerResponse, len(triggers))
	for i, t := range triggers {
		resp[i] = triggerToResponse(t)
	}
	jsonOK(w, resp)
}

// Monitoring reports whether feed item checking is enabled.
func (h *Handler) Monitoring(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]bool{"monitoring": h.engine.Monitoring()})
}

// StartMonitoring enables feed item checking.
func (h *Handler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	h.engine.StartMonitoring()
	jsonOK(w, map[string]bool{"monitoring": true})
}

// StopMonitoring disables feed item checking.
func (h *Handler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	h.engine.StopMonitoring()
	jsonOK(w, map[string]bool{"monitoring": false})
}

func alertToResponse(a *models.AlertConfig) *AlertResponse {
	resp := &AlertResponse{
		ID:            a.ID,
		Name:          a.Name,
		Description:   a.Description,
		Keywords:      a.Keywords,
		Sources:       a.Sources,
		Priority:      string(a.Priority),
		Notifications: a.Notifications,
		Schedule:      a.Schedule,
		Active:        a.Active,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
		TriggerCount:  a.TriggerCount,
	}
	if a.LastTriggered != nil {
		resp.LastTriggered = a.LastTriggered.Format(time.RFC3339)
	}
	return resp
}

func triggerToResponse(t *models.AlertTrigger) *TriggerResponse {
	resp := &TriggerResponse{
		ID:              t.ID,
		AlertID:         t.AlertID,
		TriggeredAt:     t.TriggeredAt.Format(time.RFC3339),
		Item:            t.Item,
		MatchedKeywords: t.MatchedKeywords,
		Priority:        string(t.Priority),
		Acknowledged:    t.Acknowledged,
	}
	if t.AcknowledgedAt != nil {
		resp.AcknowledgedAt = t.AcknowledgedAt.Format(time.RFC3339)
	}
	return resp
}
