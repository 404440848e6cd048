package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/hearthquest/internal/auth"
	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/store"
)

// PairingHandler exchanges a child's invite code for a signed device token.
// This is the only unauthenticated mutation surface, so it sits behind the
// rate limiter.
type PairingHandler struct {
	familyStore  *store.FamilyStore
	profileStore *store.ProfileStore
	issuer       *auth.TokenIssuer
	logger       *slog.Logger
}

func NewPairingHandler(fs *store.FamilyStore, ps *store.ProfileStore, issuer *auth.TokenIssuer, logger *slog.Logger) *PairingHandler {
	return &PairingHandler{familyStore: fs, profileStore: ps, issuer: issuer, logger: logger}
}

// Setup bootstraps a new family with its parent profile and signs the
// first device in. After this every other device joins via invite code.
func (h *PairingHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FamilyName string `json:"family_name"`
		ParentName string `json:"parent_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.FamilyName = strings.TrimSpace(req.FamilyName)
	req.ParentName = strings.TrimSpace(req.ParentName)
	if req.FamilyName == "" || req.ParentName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "family_name and parent_name are required"})
		return
	}

	family, err := h.familyStore.Create(req.FamilyName)
	if err != nil {
		h.logger.Error("family setup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create family"})
		return
	}

	parent, err := h.profileStore.Create(family.ID, req.ParentName, model.RoleParent, "")
	if err != nil {
		h.logger.Error("parent setup failed", "error", err, "family_id", family.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create parent profile"})
		return
	}

	token, err := h.issuer.Issue(family.ID, parent.ID, parent.Role)
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create family"})
		return
	}

	h.logger.Info("family created", "family_id", family.ID, "parent_id", parent.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":   token,
		"family":  family,
		"profile": parent,
	})
}

func (h *PairingHandler) Pair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.InviteCode))
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invite_code is required"})
		return
	}

	profile, err := h.profileStore.GetByInviteCode(code)
	if err != nil {
		h.logger.Error("pairing lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to pair device"})
		return
	}
	if profile == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown invite code"})
		return
	}

	token, err := h.issuer.Issue(profile.FamilyID, profile.ID, profile.Role)
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to pair device"})
		return
	}

	h.logger.Info("device paired", "profile_id", profile.ID, "family_id", profile.FamilyID)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"profile": profile,
	})
}
