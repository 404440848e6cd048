package auth

import (
	"context"
	"testing"

	"github.com/dukerupert/hearthquest/internal/model"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{FamilyID: 1, ProfileID: 2, Role: model.RoleParent}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.FamilyID != 1 {
		t.Errorf("FamilyID = %d, want 1", got.FamilyID)
	}
	if got.ProfileID != 2 {
		t.Errorf("ProfileID = %d, want 2", got.ProfileID)
	}
	if got.Role != model.RoleParent {
		t.Errorf("Role = %q, want parent", got.Role)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestAccessorsMissingContext(t *testing.T) {
	ctx := context.Background()
	if FamilyID(ctx) != 0 {
		t.Error("expected 0 family id for missing context")
	}
	if ProfileID(ctx) != 0 {
		t.Error("expected 0 profile id for missing context")
	}
	if IsParent(ctx) {
		t.Error("expected IsParent = false for missing context")
	}
}

func TestIsParent(t *testing.T) {
	parent := WithAuth(context.Background(), AuthContext{Role: model.RoleParent})
	if !IsParent(parent) {
		t.Error("expected IsParent = true for parent role")
	}

	child := WithAuth(context.Background(), AuthContext{Role: model.RoleChild})
	if IsParent(child) {
		t.Error("expected IsParent = false for child role")
	}
}
