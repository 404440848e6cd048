package model

import "time"

// ChallengeState is derived from the challenge's counters, never stored.
type ChallengeState string

const (
	ChallengeConfiguring ChallengeState = "configuring"
	ChallengeActive      ChallengeState = "active"
	ChallengeFinished    ChallengeState = "finished"
)

type Challenge struct {
	ID            int64     `json:"id"`
	FamilyID      int64     `json:"family_id"`
	ProfileID     int64     `json:"profile_id"`
	RewardText    string    `json:"reward_text"`
	MalusText     string    `json:"malus_text"`
	DurationDays  int       `json:"duration_days"`
	CurrentStreak int       `json:"current_streak"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StreakComplete is the single definition of "finished": the streak has
// reached the target duration. Kept as a pure function over the two counters
// so the predicate can never drift from the stored state.
func StreakComplete(currentStreak, durationDays int) bool {
	return currentStreak >= durationDays
}

// Finished reports whether the challenge has reached its target duration.
func (c Challenge) Finished() bool {
	return StreakComplete(c.CurrentStreak, c.DurationDays)
}

// State derives the lifecycle state from the stored counters and flags.
// An acknowledged challenge goes inactive and reads as configuring until
// the parent renews it.
func (c Challenge) State() ChallengeState {
	switch {
	case c.IsActive && c.Finished():
		return ChallengeFinished
	case c.IsActive:
		return ChallengeActive
	default:
		return ChallengeConfiguring
	}
}
