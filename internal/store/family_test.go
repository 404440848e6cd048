package store

import "testing"

func TestFamilyCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	s := NewFamilyStore(db)

	f, err := s.Create("The Peytons")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	if f.ID == 0 {
		t.Error("expected an id")
	}
	if f.Name != "The Peytons" {
		t.Errorf("name = %q, want The Peytons", f.Name)
	}

	got, err := s.GetByID(f.ID)
	if err != nil {
		t.Fatalf("get family: %v", err)
	}
	if got == nil || got.Name != f.Name {
		t.Errorf("got %v, want %v", got, f)
	}
}

func TestFamilyGetUnknownIsNil(t *testing.T) {
	db := setupTestDB(t)
	s := NewFamilyStore(db)

	got, err := s.GetByID(999)
	if err != nil {
		t.Fatalf("get family: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestFamilyRename(t *testing.T) {
	db := setupTestDB(t)
	s := NewFamilyStore(db)

	f, err := s.Create("Old Name")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}

	renamed, err := s.Rename(f.ID, "New Name")
	if err != nil {
		t.Fatalf("rename family: %v", err)
	}
	if renamed.Name != "New Name" {
		t.Errorf("name = %q, want New Name", renamed.Name)
	}
}

func TestFamilyListIDs(t *testing.T) {
	db := setupTestDB(t)
	s := NewFamilyStore(db)

	a, err := s.Create("A")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	b, err := s.Create("B")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}

	ids, err := s.ListIDs()
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != a.ID || ids[1] != b.ID {
		t.Errorf("ids = %v, want [%d %d]", ids, a.ID, b.ID)
	}
}
