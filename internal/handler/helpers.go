package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/hearthquest/internal/workflow"
)

// writeScopeError answers 404 for tenant-boundary violations, so ids in
// another family are indistinguishable from missing rows. Reports whether it
// handled the error.
func writeScopeError(w http.ResponseWriter, err error) bool {
	if errors.Is(err, workflow.ErrUnknownProfile) || errors.Is(err, workflow.ErrUnknownMission) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return true
	}
	return false
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// parseDateParam validates the {date} path segment as a civil date. Dates are
// stored as YYYY-MM-DD strings so the ledger key never shifts with timezones.
func parseDateParam(r *http.Request) (string, error) {
	dateStr := r.PathValue("date")
	if _, err := time.Parse("2006-01-02", dateStr); err != nil {
		return "", err
	}
	return dateStr, nil
}

func parseQueryID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
