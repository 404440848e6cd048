package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/hearthquest/internal/model"
)

// ErrInvalidDuration is returned when a challenge is configured with a
// duration below one day.
var ErrInvalidDuration = errors.New("challenge duration must be at least one day")

type ChallengeStore struct {
	db *sql.DB
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func scanChallenge(scanner interface{ Scan(...any) error }) (*model.Challenge, error) {
	var c model.Challenge
	err := scanner.Scan(
		&c.ID, &c.FamilyID, &c.ProfileID, &c.RewardText, &c.MalusText,
		&c.DurationDays, &c.CurrentStreak, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const challengeCols = `id, family_id, profile_id, reward_text, malus_text, duration_days, current_streak, is_active, created_at, updated_at`

func (s *ChallengeStore) Create(familyID, profileID int64, rewardText, malusText string, durationDays int) (*model.Challenge, error) {
	if durationDays < 1 {
		return nil, ErrInvalidDuration
	}

	result, err := s.db.Exec(
		`INSERT INTO challenges (family_id, profile_id, reward_text, malus_text, duration_days) VALUES (?, ?, ?, ?, ?)`,
		familyID, profileID, rewardText, malusText, durationDays,
	)
	if err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChallengeStore) GetByID(id int64) (*model.Challenge, error) {
	row := s.db.QueryRow(`SELECT `+challengeCols+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

// Latest returns the child's current challenge (most recently created), or
// nil. Scoped by family so a caller can never reach across tenants with a
// guessed profile id.
func (s *ChallengeStore) Latest(familyID, profileID int64) (*model.Challenge, error) {
	row := s.db.QueryRow(
		`SELECT `+challengeCols+` FROM challenges WHERE family_id = ? AND profile_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		familyID, profileID,
	)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest challenge: %w", err)
	}
	return c, nil
}

// AdvanceStreak increments the streak by one inside a transaction that
// re-reads the current value first, clamping at duration_days. Never a blind
// increment, so two concurrent day-closes cannot push the streak past the
// target.
func (s *ChallengeStore) AdvanceStreak(id int64) (*model.Challenge, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var streak, duration int
	err = tx.QueryRow(`SELECT current_streak, duration_days FROM challenges WHERE id = ?`, id).Scan(&streak, &duration)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read streak: %w", err)
	}

	if streak < duration {
		streak++
	}

	_, err = tx.Exec(
		`UPDATE challenges SET current_streak = ?, updated_at = datetime('now') WHERE id = ?`,
		streak, id,
	)
	if err != nil {
		return nil, fmt.Errorf("advance streak: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// ResetStreak zeroes the streak after a failed day.
func (s *ChallengeStore) ResetStreak(id int64) (*model.Challenge, error) {
	_, err := s.db.Exec(
		`UPDATE challenges SET current_streak = 0, updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("reset streak: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChallengeStore) SetActive(id int64, active bool) (*model.Challenge, error) {
	_, err := s.db.Exec(
		`UPDATE challenges SET is_active = ?, updated_at = datetime('now') WHERE id = ?`,
		active, id,
	)
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	return s.GetByID(id)
}

// Renew reconfigures the challenge and restarts it: new reward, malus, and
// duration, streak back to zero, active again.
func (s *ChallengeStore) Renew(id int64, rewardText, malusText string, durationDays int) (*model.Challenge, error) {
	if durationDays < 1 {
		return nil, ErrInvalidDuration
	}

	_, err := s.db.Exec(
		`UPDATE challenges SET reward_text = ?, malus_text = ?, duration_days = ?, current_streak = 0, is_active = 1, updated_at = datetime('now') WHERE id = ?`,
		rewardText, malusText, durationDays, id,
	)
	if err != nil {
		return nil, fmt.Errorf("renew challenge: %w", err)
	}
	return s.GetByID(id)
}
