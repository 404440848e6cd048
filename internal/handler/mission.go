package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/hearthquest/internal/auth"
	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/store"
	syncfeed "github.com/dukerupert/hearthquest/internal/sync"
)

type MissionHandler struct {
	missionStore *store.MissionStore
	feed         *syncfeed.Feed
	logger       *slog.Logger
}

func NewMissionHandler(ms *store.MissionStore, feed *syncfeed.Feed, logger *slog.Logger) *MissionHandler {
	return &MissionHandler{missionStore: ms, feed: feed, logger: logger}
}

type missionRequest struct {
	Title         string   `json:"title"`
	Icon          string   `json:"icon"`
	AssignedTo    *int64   `json:"assigned_to"`
	ReminderTimes []string `json:"reminder_times"`
}

func (h *MissionHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	var (
		missions []model.Mission
		err      error
	)
	if auth.IsParent(r.Context()) {
		missions, err = h.missionStore.ListByFamily(familyID)
	} else {
		missions, err = h.missionStore.ListForChild(familyID, auth.ProfileID(r.Context()))
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list missions"})
		return
	}
	if missions == nil {
		missions = []model.Mission{}
	}
	writeJSON(w, http.StatusOK, missions)
}

func (h *MissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req missionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	familyID := auth.FamilyID(r.Context())
	mission, err := h.missionStore.Create(familyID, req.Title, req.Icon, req.AssignedTo, req.ReminderTimes)
	if errors.Is(err, store.ErrTooManyReminders) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at most two reminder times per mission"})
		return
	}
	if err != nil {
		h.logger.Error("create mission failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create mission"})
		return
	}

	h.publish(syncfeed.ActionUpserted, mission)
	writeJSON(w, http.StatusCreated, mission)
}

func (h *MissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	mission, ok := h.loadMission(w, r)
	if !ok {
		return
	}

	var req missionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	updated, err := h.missionStore.Update(mission.ID, req.Title, req.Icon, req.AssignedTo, req.ReminderTimes)
	if errors.Is(err, store.ErrTooManyReminders) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at most two reminder times per mission"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update mission"})
		return
	}

	h.publish(syncfeed.ActionUpserted, updated)
	writeJSON(w, http.StatusOK, updated)
}

func (h *MissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	mission, ok := h.loadMission(w, r)
	if !ok {
		return
	}

	if err := h.missionStore.Delete(mission.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete mission"})
		return
	}

	h.publish(syncfeed.ActionDeleted, mission)
	w.WriteHeader(http.StatusNoContent)
}

// Reorder accepts the full ordered list of mission IDs for the family.
func (h *MissionHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids are required"})
		return
	}

	if err := h.missionStore.UpdateSortOrder(auth.FamilyID(r.Context()), req.IDs); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reorder missions"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MissionHandler) loadMission(w http.ResponseWriter, r *http.Request) (*model.Mission, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil, false
	}

	mission, err := h.missionStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get mission"})
		return nil, false
	}
	if mission == nil || mission.FamilyID != auth.FamilyID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "mission not found"})
		return nil, false
	}
	return mission, true
}

func (h *MissionHandler) publish(action syncfeed.Action, m *model.Mission) {
	if h.feed == nil {
		return
	}
	h.feed.Publish(syncfeed.Event{
		Table:    syncfeed.TableMissions,
		Action:   action,
		RowID:    m.ID,
		FamilyID: m.FamilyID,
	})
}
