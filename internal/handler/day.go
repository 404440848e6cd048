package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/hearthquest/internal/auth"
	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/workflow"
)

// DayHandler exposes the daily mission workflow: toggling, validation
// requests, parent review, and closing the day.
type DayHandler struct {
	workflow *workflow.Service
	logger   *slog.Logger
}

func NewDayHandler(wf *workflow.Service, logger *slog.Logger) *DayHandler {
	return &DayHandler{workflow: wf, logger: logger}
}

// profileFor resolves which child's day is being acted on. Children act
// on their own day; parents pass ?profile_id= to review a child's day.
func profileFor(r *http.Request) (int64, bool) {
	if !auth.IsParent(r.Context()) {
		return auth.ProfileID(r.Context()), true
	}
	id, err := parseQueryID(r, "profile_id")
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *DayHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	profileID, ok := profileFor(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id is required"})
		return
	}

	state, logs, err := h.workflow.DayState(auth.FamilyID(r.Context()), profileID, date)
	if writeScopeError(w, err) {
		return
	}
	if err != nil {
		h.logger.Error("get day failed", "error", err, "date", date)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load day"})
		return
	}
	if logs == nil {
		logs = []model.DailyLog{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"state": state,
		"logs":  logs,
	})
}

func (h *DayHandler) ToggleMission(w http.ResponseWriter, r *http.Request) {
	missionID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if !validDate(req.Date) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	log, err := h.workflow.ToggleMission(auth.FamilyID(r.Context()), missionID, auth.ProfileID(r.Context()), req.Date)
	if writeScopeError(w, err) {
		return
	}
	if err != nil {
		h.logger.Error("toggle mission failed", "error", err, "mission_id", missionID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to toggle mission"})
		return
	}

	writeJSON(w, http.StatusOK, log)
}

func (h *DayHandler) RequestValidation(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	err = h.workflow.RequestValidation(auth.FamilyID(r.Context()), auth.ProfileID(r.Context()), date)
	if writeScopeError(w, err) {
		return
	}
	if errors.Is(err, workflow.ErrNoMissions) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no missions to validate"})
		return
	}
	if err != nil {
		h.logger.Error("request validation failed", "error", err, "date", date)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to request validation"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "requested"})
}

func (h *DayHandler) ValidateMission(w http.ResponseWriter, r *http.Request) {
	missionID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		ProfileID int64  `json:"profile_id"`
		Date      string `json:"date"`
		Validated bool   `json:"validated"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.ProfileID == 0 || !validDate(req.Date) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id and date are required"})
		return
	}

	log, err := h.workflow.SetMissionValidated(auth.FamilyID(r.Context()), missionID, req.ProfileID, req.Date, req.Validated)
	if writeScopeError(w, err) {
		return
	}
	if err != nil {
		h.logger.Error("validate mission failed", "error", err, "mission_id", missionID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to validate mission"})
		return
	}

	writeJSON(w, http.StatusOK, log)
}

func (h *DayHandler) CloseDay(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	var req struct {
		ProfileID int64 `json:"profile_id"`
		Success   bool  `json:"success"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.ProfileID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id is required"})
		return
	}

	ch, err := h.workflow.CloseDay(auth.FamilyID(r.Context()), req.ProfileID, date, req.Success)
	if writeScopeError(w, err) {
		return
	}
	if errors.Is(err, workflow.ErrIncompleteValidation) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "every mission must be validated before accepting the day"})
		return
	}
	if err != nil {
		h.logger.Error("close day failed", "error", err, "date", date, "profile_id", req.ProfileID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to close day"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "closed",
		"challenge": ch,
	})
}

// AcknowledgeResult clears a closed day so the child's board resets.
func (h *DayHandler) AcknowledgeResult(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	err = h.workflow.AcknowledgeResult(auth.FamilyID(r.Context()), auth.ProfileID(r.Context()), date)
	if writeScopeError(w, err) {
		return
	}
	if err != nil {
		h.logger.Error("acknowledge result failed", "error", err, "date", date)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to acknowledge result"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}
