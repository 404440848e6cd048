package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/hearthquest/internal/auth"
	"github.com/dukerupert/hearthquest/internal/challenge"
	"github.com/dukerupert/hearthquest/internal/store"
)

type ChallengeHandler struct {
	tracker *challenge.Tracker
	logger  *slog.Logger
}

func NewChallengeHandler(tracker *challenge.Tracker, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{tracker: tracker, logger: logger}
}

// Get returns the current challenge for a profile, provisioning a
// default one the first time a child is looked at.
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	profileID, ok := profileFor(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id is required"})
		return
	}

	ch, err := h.tracker.GetOrCreate(auth.FamilyID(r.Context()), profileID)
	if writeScopeError(w, err) {
		return
	}
	if err != nil {
		h.logger.Error("get challenge failed", "error", err, "profile_id", profileID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load challenge"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"challenge": ch,
		"state":     ch.State(),
	})
}

// Renew starts a fresh challenge cycle after the previous one finished.
// The current day's logs are wiped so the new streak starts clean.
func (h *ChallengeHandler) Renew(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileID    int64  `json:"profile_id"`
		RewardText   string `json:"reward_text"`
		MalusText    string `json:"malus_text"`
		DurationDays int    `json:"duration_days"`
		Date         string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.ProfileID == 0 || !validDate(req.Date) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id and date are required"})
		return
	}

	ch, err := h.tracker.Renew(auth.FamilyID(r.Context()), req.ProfileID, req.RewardText, req.MalusText, req.DurationDays, req.Date)
	if writeScopeError(w, err) {
		return
	}
	if errors.Is(err, store.ErrInvalidDuration) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "duration must be at least one day"})
		return
	}
	if err != nil {
		h.logger.Error("renew challenge failed", "error", err, "profile_id", req.ProfileID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to renew challenge"})
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

// Acknowledge marks a finished challenge as seen, deactivating it until
// the parent renews.
func (h *ChallengeHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	profileID, ok := profileFor(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id is required"})
		return
	}

	ch, err := h.tracker.Acknowledge(auth.FamilyID(r.Context()), profileID)
	if writeScopeError(w, err) {
		return
	}
	if err != nil {
		h.logger.Error("acknowledge challenge failed", "error", err, "profile_id", profileID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to acknowledge challenge"})
		return
	}

	writeJSON(w, http.StatusOK, ch)
}
