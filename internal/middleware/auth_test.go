package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/hearthquest/internal/auth"
	"github.com/dukerupert/hearthquest/internal/model"
)

func okHandler(t *testing.T, wantFamily int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := auth.FamilyID(r.Context()); got != wantFamily {
			t.Errorf("family id in context = %d, want %d", got, wantFamily)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthBearerHeader(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	token, err := issuer.Issue(1, 2, model.RoleChild)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/missions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	RequireAuth(issuer)(okHandler(t, 1)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAuthQueryFallback(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	token, err := issuer.Issue(1, 2, model.RoleChild)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// WebSocket clients cannot set headers; the token rides the query string.
	req := httptest.NewRequest("GET", "/ws?token="+token, nil)
	rec := httptest.NewRecorder()

	RequireAuth(issuer)(okHandler(t, 1)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	req := httptest.NewRequest("GET", "/api/missions", nil)
	rec := httptest.NewRecorder()

	RequireAuth(issuer)(okHandler(t, 0)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthBadToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	req := httptest.NewRequest("GET", "/api/missions", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	RequireAuth(issuer)(okHandler(t, 0)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireParent(t *testing.T) {
	handler := RequireParent(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	parentCtx := auth.WithAuth(httptest.NewRequest("GET", "/", nil).Context(),
		auth.AuthContext{FamilyID: 1, ProfileID: 2, Role: model.RoleParent})
	req := httptest.NewRequest("POST", "/api/missions", nil).WithContext(parentCtx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("parent status = %d, want 200", rec.Code)
	}

	childCtx := auth.WithAuth(httptest.NewRequest("GET", "/", nil).Context(),
		auth.AuthContext{FamilyID: 1, ProfileID: 3, Role: model.RoleChild})
	req = httptest.NewRequest("POST", "/api/missions", nil).WithContext(childCtx)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("child status = %d, want 403", rec.Code)
	}
}
