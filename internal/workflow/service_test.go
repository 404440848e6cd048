package workflow

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/hearthquest/internal/challenge"
	"github.com/dukerupert/hearthquest/internal/database"
	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/store"
	"github.com/dukerupert/hearthquest/internal/sync"
)

type fixture struct {
	db       *sql.DB
	svc      *Service
	logs     *store.DailyLogStore
	tracker  *challenge.Tracker
	familyID int64
	childID  int64
	missions []int64
}

func setup(t *testing.T, missionCount int) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feed := sync.NewFeed(logger)

	family, err := store.NewFamilyStore(db).Create("Testers")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	child, err := store.NewProfileStore(db).Create(family.ID, "Milo", model.RoleChild, "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	ms := store.NewMissionStore(db)
	var missions []int64
	titles := []string{"Brush teeth", "Make bed", "Homework"}
	for i := 0; i < missionCount; i++ {
		m, err := ms.Create(family.ID, titles[i], "", nil, nil)
		if err != nil {
			t.Fatalf("create mission: %v", err)
		}
		missions = append(missions, m.ID)
	}

	ps := store.NewProfileStore(db)
	ls := store.NewDailyLogStore(db)
	tracker := challenge.NewTracker(store.NewChallengeStore(db), ls, ps, feed, logger)
	svc := NewService(ls, ms, ps, tracker, feed, logger)

	return &fixture{
		db:       db,
		svc:      svc,
		logs:     ls,
		tracker:  tracker,
		familyID: family.ID,
		childID:  child.ID,
		missions: missions,
	}
}

func (f *fixture) state(t *testing.T, date string) State {
	t.Helper()
	st, _, err := f.svc.DayState(f.familyID, f.childID, date)
	if err != nil {
		t.Fatalf("day state: %v", err)
	}
	return st
}

// Full happy path: toggle every mission, request validation, parent validates
// each, day closes as a success and the streak advances.
func TestAcceptedDayAdvancesStreak(t *testing.T) {
	f := setup(t, 2)
	date := "2026-03-01"

	for _, id := range f.missions {
		if _, err := f.svc.ToggleMission(f.familyID, id, f.childID, date); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	if st := f.state(t, date); st != StateAwaitingRequest {
		t.Fatalf("state = %q, want awaiting_request", st)
	}

	if err := f.svc.RequestValidation(f.familyID, f.childID, date); err != nil {
		t.Fatalf("request validation: %v", err)
	}
	if st := f.state(t, date); st != StatePendingParentReview {
		t.Fatalf("state = %q, want pending_parent_review", st)
	}

	for _, id := range f.missions {
		if _, err := f.svc.SetMissionValidated(f.familyID, id, f.childID, date, true); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	ch, err := f.svc.CloseDay(f.familyID, f.childID, date, true)
	if err != nil {
		t.Fatalf("close day: %v", err)
	}
	if ch.CurrentStreak != 1 {
		t.Errorf("streak = %d, want 1", ch.CurrentStreak)
	}
	if st := f.state(t, date); st != StateDayAccepted {
		t.Errorf("state = %q, want day_accepted", st)
	}
}

// Closing a day as success with an unvalidated mission must be refused
// outright, leaving both the ledger and the streak untouched.
func TestCloseSuccessRefusedWhenUnvalidated(t *testing.T) {
	f := setup(t, 2)
	date := "2026-03-01"

	if err := f.svc.RequestValidation(f.familyID, f.childID, date); err != nil {
		t.Fatalf("request validation: %v", err)
	}
	// Only the first mission gets validated.
	if _, err := f.svc.SetMissionValidated(f.familyID, f.missions[0], f.childID, date, true); err != nil {
		t.Fatalf("validate: %v", err)
	}

	_, err := f.svc.CloseDay(f.familyID, f.childID, date, true)
	if !errors.Is(err, ErrIncompleteValidation) {
		t.Fatalf("err = %v, want ErrIncompleteValidation", err)
	}

	// No mutation: still pending, no result stamped, streak untouched.
	if st := f.state(t, date); st != StatePendingParentReview {
		t.Errorf("state = %q, want pending_parent_review after refused close", st)
	}
	logs, err := f.logs.ListForDay(f.childID, date)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, l := range logs {
		if l.HasResult() {
			t.Errorf("mission %d has result %v after refused close", l.MissionID, *l.ValidationResult)
		}
	}
	ch, err := f.tracker.GetOrCreate(f.familyID, f.childID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if ch.CurrentStreak != 0 {
		t.Errorf("streak = %d, want 0", ch.CurrentStreak)
	}
}

// A failed day resets the streak and the child's acknowledgement clears the
// ledger back to a fresh in-progress day.
func TestRejectedDayResetsStreakAndClears(t *testing.T) {
	f := setup(t, 1)
	date := "2026-03-01"

	// Build up one day of streak first.
	if err := f.svc.RequestValidation(f.familyID, f.childID, date); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.SetMissionValidated(f.familyID, f.missions[0], f.childID, date, true); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := f.svc.CloseDay(f.familyID, f.childID, date, true); err != nil {
		t.Fatalf("close success: %v", err)
	}

	// Next day goes badly.
	next := "2026-03-02"
	if err := f.svc.RequestValidation(f.familyID, f.childID, next); err != nil {
		t.Fatalf("request next: %v", err)
	}
	ch, err := f.svc.CloseDay(f.familyID, f.childID, next, false)
	if err != nil {
		t.Fatalf("close failure: %v", err)
	}
	if ch.CurrentStreak != 0 {
		t.Errorf("streak = %d, want reset to 0", ch.CurrentStreak)
	}
	if st := f.state(t, next); st != StateDayRejected {
		t.Fatalf("state = %q, want day_rejected", st)
	}

	if err := f.svc.AcknowledgeResult(f.familyID, f.childID, next); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if st := f.state(t, next); st != StateInProgress {
		t.Errorf("state = %q, want in_progress after acknowledge", st)
	}
	logs, err := f.logs.ListForDay(f.childID, next)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("log count = %d, want 0 after acknowledge", len(logs))
	}
}

// A failed close does not require validation: a parent can reject at any time.
func TestCloseFailureNeedsNoValidation(t *testing.T) {
	f := setup(t, 2)
	date := "2026-03-01"

	if _, err := f.svc.ToggleMission(f.familyID, f.missions[0], f.childID, date); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	ch, err := f.svc.CloseDay(f.familyID, f.childID, date, false)
	if err != nil {
		t.Fatalf("close failure: %v", err)
	}
	if ch.CurrentStreak != 0 {
		t.Errorf("streak = %d, want 0", ch.CurrentStreak)
	}
	if st := f.state(t, date); st != StateDayRejected {
		t.Errorf("state = %q, want day_rejected", st)
	}
}

// Toggling after a recorded result clears the whole day first: the result
// disappears rather than coexisting with new progress.
func TestToggleAfterResultClearsDay(t *testing.T) {
	f := setup(t, 2)
	date := "2026-03-01"

	if err := f.svc.RequestValidation(f.familyID, f.childID, date); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.CloseDay(f.familyID, f.childID, date, false); err != nil {
		t.Fatalf("close: %v", err)
	}

	log, err := f.svc.ToggleMission(f.familyID, f.missions[0], f.childID, date)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !log.ChildCompleted {
		t.Error("expected toggle to mark the mission completed")
	}

	logs, err := f.logs.ListForDay(f.childID, date)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("log count = %d, want 1 (cleared then one toggle)", len(logs))
	}
	if logs[0].HasResult() {
		t.Error("stale validation result survived the toggle")
	}
}

func TestRequestValidationWithoutMissions(t *testing.T) {
	f := setup(t, 0)

	err := f.svc.RequestValidation(f.familyID, f.childID, "2026-03-01")
	if !errors.Is(err, ErrNoMissions) {
		t.Errorf("err = %v, want ErrNoMissions", err)
	}
}

func TestCrossFamilyDayOperationsRefused(t *testing.T) {
	f := setup(t, 1)
	date := "2026-03-01"

	other, err := store.NewFamilyStore(f.db).Create("Neighbors")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	otherChild, err := store.NewProfileStore(f.db).Create(other.ID, "Nora", model.RoleChild, "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	otherMission, err := store.NewMissionStore(f.db).Create(other.ID, "Water plants", "", nil, nil)
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}

	// A parent token from one family cannot stamp another family's child.
	if _, err := f.svc.CloseDay(f.familyID, otherChild.ID, date, false); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("close day err = %v, want ErrUnknownProfile", err)
	}
	if _, err := f.svc.SetMissionValidated(f.familyID, f.missions[0], otherChild.ID, date, true); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("validate err = %v, want ErrUnknownProfile", err)
	}
	if err := f.svc.AcknowledgeResult(f.familyID, otherChild.ID, date); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("acknowledge err = %v, want ErrUnknownProfile", err)
	}

	// Nor reach a mission outside its family, even for its own child.
	if _, err := f.svc.ToggleMission(f.familyID, otherMission.ID, f.childID, date); !errors.Is(err, ErrUnknownMission) {
		t.Errorf("toggle err = %v, want ErrUnknownMission", err)
	}
	if _, err := f.svc.SetMissionValidated(f.familyID, otherMission.ID, f.childID, date, true); !errors.Is(err, ErrUnknownMission) {
		t.Errorf("validate foreign mission err = %v, want ErrUnknownMission", err)
	}

	logs, err := f.logs.ListForDay(otherChild.ID, date)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("log count = %d, want 0 — refused operations must not write", len(logs))
	}
}
