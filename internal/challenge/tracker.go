// Package challenge manages the multi-day streak goal attached to each child.
package challenge

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/store"
	"github.com/dukerupert/hearthquest/internal/sync"
)

// Conservative defaults for a lazily provisioned challenge.
const (
	DefaultDurationDays = 2
	DefaultRewardText   = "Surprise reward"
	DefaultMalusText    = ""
)

// ErrInvalidDuration mirrors the store sentinel so callers need not import
// both packages.
var ErrInvalidDuration = store.ErrInvalidDuration

// ErrUnknownProfile is returned when the target profile does not exist or
// belongs to a different family. The family is the tenant boundary; no
// tracker operation may cross it.
var ErrUnknownProfile = errors.New("profile not found in family")

type Tracker struct {
	challenges *store.ChallengeStore
	logs       *store.DailyLogStore
	profiles   *store.ProfileStore
	feed       *sync.Feed
	logger     *slog.Logger
}

func NewTracker(cs *store.ChallengeStore, ls *store.DailyLogStore, ps *store.ProfileStore, feed *sync.Feed, logger *slog.Logger) *Tracker {
	return &Tracker{challenges: cs, logs: ls, profiles: ps, feed: feed, logger: logger}
}

// ensureMember refuses profile ids outside the caller's family.
func (t *Tracker) ensureMember(familyID, profileID int64) error {
	p, err := t.profiles.GetByID(profileID)
	if err != nil {
		return err
	}
	if p == nil || p.FamilyID != familyID {
		return ErrUnknownProfile
	}
	return nil
}

func (t *Tracker) publish(c *model.Challenge, action sync.Action) {
	if t.feed == nil || c == nil {
		return
	}
	t.feed.Publish(sync.Event{
		Table:     sync.TableChallenges,
		Action:    action,
		RowID:     c.ID,
		FamilyID:  c.FamilyID,
		ProfileID: c.ProfileID,
	})
}

// GetOrCreate returns the child's current challenge, provisioning one with
// conservative defaults on first use. A missing challenge is never an error;
// a profile outside the family is.
func (t *Tracker) GetOrCreate(familyID, profileID int64) (*model.Challenge, error) {
	if err := t.ensureMember(familyID, profileID); err != nil {
		return nil, err
	}

	c, err := t.challenges.Latest(familyID, profileID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}

	c, err = t.challenges.Create(familyID, profileID, DefaultRewardText, DefaultMalusText, DefaultDurationDays)
	if err != nil {
		return nil, fmt.Errorf("provision default challenge: %w", err)
	}
	t.logger.Info("provisioned default challenge", "profile_id", profileID, "challenge_id", c.ID)
	t.publish(c, sync.ActionUpserted)
	return c, nil
}

// AdvanceOnSuccess bumps the streak after a successfully closed day.
func (t *Tracker) AdvanceOnSuccess(id int64) (*model.Challenge, error) {
	c, err := t.challenges.AdvanceStreak(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	if c.Finished() {
		t.logger.Info("challenge finished", "challenge_id", c.ID, "profile_id", c.ProfileID,
			"streak", c.CurrentStreak, "duration_days", c.DurationDays)
	}
	t.publish(c, sync.ActionUpserted)
	return c, nil
}

// ResetOnFailure zeroes the streak after a failed day.
func (t *Tracker) ResetOnFailure(id int64) (*model.Challenge, error) {
	c, err := t.challenges.ResetStreak(id)
	if err != nil {
		return nil, err
	}
	t.publish(c, sync.ActionUpserted)
	return c, nil
}

// Acknowledge records the parent's acknowledgement of a finished challenge,
// deactivating it and returning the lifecycle to configuring pending renewal.
func (t *Tracker) Acknowledge(familyID, profileID int64) (*model.Challenge, error) {
	c, err := t.GetOrCreate(familyID, profileID)
	if err != nil {
		return nil, err
	}
	if !c.Finished() {
		return c, nil
	}

	c, err = t.challenges.SetActive(c.ID, false)
	if err != nil {
		return nil, err
	}
	t.publish(c, sync.ActionUpserted)
	return c, nil
}

// Renew reconfigures the challenge and restarts it, also clearing the given
// day's logs so the new cycle starts clean.
func (t *Tracker) Renew(familyID, profileID int64, rewardText, malusText string, durationDays int, date string) (*model.Challenge, error) {
	c, err := t.GetOrCreate(familyID, profileID)
	if err != nil {
		return nil, err
	}

	c, err = t.challenges.Renew(c.ID, rewardText, malusText, durationDays)
	if err != nil {
		return nil, err
	}

	if err := t.logs.ClearDay(profileID, date); err != nil {
		return nil, fmt.Errorf("clear day on renew: %w", err)
	}

	t.publish(c, sync.ActionUpserted)
	if t.feed != nil {
		t.feed.Publish(sync.Event{
			Table:     sync.TableDailyLogs,
			Action:    sync.ActionDeleted,
			FamilyID:  familyID,
			ProfileID: profileID,
			Date:      date,
		})
	}
	return c, nil
}
