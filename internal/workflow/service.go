package workflow

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/hearthquest/internal/challenge"
	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/store"
	"github.com/dukerupert/hearthquest/internal/sync"
)

// ErrIncompleteValidation is returned when the parent tries to close a day as
// a success before every mission is both completed and validated. The close is
// refused with no state mutation.
var ErrIncompleteValidation = errors.New("every mission must be completed and validated before closing the day")

// ErrNoMissions is returned when a day operation targets a child with no
// missions at all.
var ErrNoMissions = errors.New("no missions for this child")

// ErrUnknownProfile mirrors the tracker sentinel: the target profile does not
// exist or sits in a different family.
var ErrUnknownProfile = challenge.ErrUnknownProfile

// ErrUnknownMission is returned when a mission id does not exist or belongs
// to a different family.
var ErrUnknownMission = errors.New("mission not found in family")

// Service drives the validation workflow over the daily log ledger and the
// challenge tracker. Every operation checks its profile and mission ids
// against the caller's family before touching the ledger; the family is the
// tenant boundary. Every mutation publishes a change-feed event so connected
// viewers refetch.
type Service struct {
	logs     *store.DailyLogStore
	missions *store.MissionStore
	profiles *store.ProfileStore
	tracker  *challenge.Tracker
	feed     *sync.Feed
	logger   *slog.Logger
}

func NewService(ls *store.DailyLogStore, ms *store.MissionStore, ps *store.ProfileStore, tracker *challenge.Tracker, feed *sync.Feed, logger *slog.Logger) *Service {
	return &Service{logs: ls, missions: ms, profiles: ps, tracker: tracker, feed: feed, logger: logger}
}

func (s *Service) ensureMember(familyID, profileID int64) error {
	p, err := s.profiles.GetByID(profileID)
	if err != nil {
		return err
	}
	if p == nil || p.FamilyID != familyID {
		return ErrUnknownProfile
	}
	return nil
}

func (s *Service) ensureMission(familyID, missionID int64) error {
	m, err := s.missions.GetByID(missionID)
	if err != nil {
		return err
	}
	if m == nil || m.FamilyID != familyID {
		return ErrUnknownMission
	}
	return nil
}

func (s *Service) publishLogs(action sync.Action, rowID, familyID, profileID int64, date string) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(sync.Event{
		Table:     sync.TableDailyLogs,
		Action:    action,
		RowID:     rowID,
		FamilyID:  familyID,
		ProfileID: profileID,
		Date:      date,
	})
}

// DayState returns the derived workflow state plus the underlying logs for
// one (child, date).
func (s *Service) DayState(familyID, profileID int64, date string) (State, []model.DailyLog, error) {
	if err := s.ensureMember(familyID, profileID); err != nil {
		return "", nil, err
	}

	missions, err := s.missions.ListForChild(familyID, profileID)
	if err != nil {
		return "", nil, err
	}
	logs, err := s.logs.ListForDay(profileID, date)
	if err != nil {
		return "", nil, err
	}
	return ComputeState(missions, logs), logs, nil
}

// ToggleMission flips the child's completion flag for one mission. If the day
// already carries a validation result the whole day is cleared first, so a
// toggle never produces a hybrid state where one log shows a result and
// another shows fresh progress.
func (s *Service) ToggleMission(familyID, missionID, profileID int64, date string) (*model.DailyLog, error) {
	if err := s.ensureMember(familyID, profileID); err != nil {
		return nil, err
	}
	if err := s.ensureMission(familyID, missionID); err != nil {
		return nil, err
	}

	logs, err := s.logs.ListForDay(profileID, date)
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		if l.HasResult() {
			if err := s.clearDay(familyID, profileID, date); err != nil {
				return nil, err
			}
			break
		}
	}

	current, err := s.logs.GetByKey(missionID, profileID, date)
	if err != nil {
		return nil, err
	}
	completed := current == nil || !current.ChildCompleted

	log, err := s.logs.Upsert(missionID, profileID, date, store.LogPatch{ChildCompleted: &completed})
	if err != nil {
		return nil, err
	}

	s.publishLogs(sync.ActionUpserted, log.ID, familyID, profileID, date)
	return log, nil
}

// RequestValidation moves the day to pending review: every mission's log gets
// validation_requested, and the completed flag is forced on so the request
// always covers the full list.
func (s *Service) RequestValidation(familyID, profileID int64, date string) error {
	if err := s.ensureMember(familyID, profileID); err != nil {
		return err
	}

	missions, err := s.missions.ListForChild(familyID, profileID)
	if err != nil {
		return err
	}
	if len(missions) == 0 {
		return ErrNoMissions
	}

	ids := make([]int64, len(missions))
	for i, m := range missions {
		ids[i] = m.ID
	}

	if err := s.logs.RequestValidationAll(ids, profileID, date); err != nil {
		return err
	}

	s.logger.Info("validation requested", "profile_id", profileID, "date", date, "missions", len(ids))
	s.publishLogs(sync.ActionUpserted, 0, familyID, profileID, date)
	return nil
}

// SetMissionValidated records the parent's per-mission verdict ahead of
// day-close. It does not change the workflow state by itself.
func (s *Service) SetMissionValidated(familyID, missionID, profileID int64, date string, validated bool) (*model.DailyLog, error) {
	if err := s.ensureMember(familyID, profileID); err != nil {
		return nil, err
	}
	if err := s.ensureMission(familyID, missionID); err != nil {
		return nil, err
	}

	log, err := s.logs.Upsert(missionID, profileID, date, store.LogPatch{ParentValidated: &validated})
	if err != nil {
		return nil, err
	}

	s.publishLogs(sync.ActionUpserted, log.ID, familyID, profileID, date)
	return log, nil
}

// CloseDay records the parent's verdict for the whole day. Success requires
// every mission to be completed and validated and advances the challenge
// streak; failure resets the streak. Either way the logs keep the result
// until the child acknowledges or toggles, which clears the day.
func (s *Service) CloseDay(familyID, profileID int64, date string, success bool) (*model.Challenge, error) {
	if err := s.ensureMember(familyID, profileID); err != nil {
		return nil, err
	}
	if success {
		if err := s.checkAllValidated(familyID, profileID, date); err != nil {
			return nil, err
		}
	}

	ch, err := s.tracker.GetOrCreate(familyID, profileID)
	if err != nil {
		return nil, err
	}

	result := model.ResultFailure
	if success {
		result = model.ResultSuccess
	}
	if err := s.logs.CloseDayAll(profileID, date, result); err != nil {
		return nil, err
	}

	if success {
		ch, err = s.tracker.AdvanceOnSuccess(ch.ID)
	} else {
		ch, err = s.tracker.ResetOnFailure(ch.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("update challenge on day close: %w", err)
	}

	s.logger.Info("day closed", "profile_id", profileID, "date", date,
		"result", result, "streak", ch.CurrentStreak)
	s.publishLogs(sync.ActionUpserted, 0, familyID, profileID, date)
	return ch, nil
}

// AcknowledgeResult is the child dismissing a recorded day result, clearing
// the ledger for that day and returning the workflow to in-progress.
func (s *Service) AcknowledgeResult(familyID, profileID int64, date string) error {
	if err := s.ensureMember(familyID, profileID); err != nil {
		return err
	}
	return s.clearDay(familyID, profileID, date)
}

// checkAllValidated enforces the day-close precondition: every one of the
// child's missions has a log with both flags set. Checked before any
// mutation, so a refused close leaves no trace.
func (s *Service) checkAllValidated(familyID, profileID int64, date string) error {
	missions, err := s.missions.ListForChild(familyID, profileID)
	if err != nil {
		return err
	}
	if len(missions) == 0 {
		return ErrNoMissions
	}

	logs, err := s.logs.ListForDay(profileID, date)
	if err != nil {
		return err
	}
	byMission := make(map[int64]model.DailyLog, len(logs))
	for _, l := range logs {
		byMission[l.MissionID] = l
	}

	for _, m := range missions {
		l, ok := byMission[m.ID]
		if !ok || !l.ChildCompleted || !l.ParentValidated {
			return ErrIncompleteValidation
		}
	}
	return nil
}

func (s *Service) clearDay(familyID, profileID int64, date string) error {
	if err := s.logs.ClearDay(profileID, date); err != nil {
		return err
	}
	s.logger.Info("day cleared", "profile_id", profileID, "date", date)
	s.publishLogs(sync.ActionDeleted, 0, familyID, profileID, date)
	return nil
}
