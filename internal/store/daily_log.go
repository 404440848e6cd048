package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/hearthquest/internal/model"
)

// LogPatch carries the fields to merge into a daily log row. Nil fields are
// left untouched. ClearResult distinguishes "set validation_result to NULL"
// from "leave validation_result alone".
type LogPatch struct {
	ChildCompleted      *bool
	ParentValidated     *bool
	ValidationRequested *bool
	ValidationResult    *model.ValidationResult
	ClearResult         bool
}

type DailyLogStore struct {
	db *sql.DB
}

func NewDailyLogStore(db *sql.DB) *DailyLogStore {
	return &DailyLogStore{db: db}
}

func scanLog(scanner interface{ Scan(...any) error }) (*model.DailyLog, error) {
	var l model.DailyLog
	var result sql.NullString

	err := scanner.Scan(
		&l.ID, &l.MissionID, &l.ProfileID, &l.Date,
		&l.ChildCompleted, &l.ParentValidated, &l.ValidationRequested,
		&result, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if result.Valid {
		r := model.ValidationResult(result.String)
		l.ValidationResult = &r
	}
	return &l, nil
}

const logCols = `id, mission_id, profile_id, date, child_completed, parent_validated, validation_requested, validation_result, created_at, updated_at`

// Upsert merges the patch into the unique row for (missionID, profileID, date),
// creating the row if absent. Only the fields present in the patch are written,
// so concurrent writers touching disjoint field sets never clobber each other.
func (s *DailyLogStore) Upsert(missionID, profileID int64, date string, patch LogPatch) (*model.DailyLog, error) {
	childCompleted := false
	parentValidated := false
	validationRequested := false
	var result sql.NullString

	if patch.ChildCompleted != nil {
		childCompleted = *patch.ChildCompleted
	}
	if patch.ParentValidated != nil {
		parentValidated = *patch.ParentValidated
	}
	if patch.ValidationRequested != nil {
		validationRequested = *patch.ValidationRequested
	}
	if patch.ValidationResult != nil {
		result = sql.NullString{String: string(*patch.ValidationResult), Valid: true}
	}

	set := ``
	if patch.ChildCompleted != nil {
		set += `, child_completed = excluded.child_completed`
	}
	if patch.ParentValidated != nil {
		set += `, parent_validated = excluded.parent_validated`
	}
	if patch.ValidationRequested != nil {
		set += `, validation_requested = excluded.validation_requested`
	}
	if patch.ValidationResult != nil || patch.ClearResult {
		set += `, validation_result = excluded.validation_result`
	}

	query := `INSERT INTO daily_logs (mission_id, profile_id, date, child_completed, parent_validated, validation_requested, validation_result)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(mission_id, profile_id, date) DO UPDATE SET updated_at = datetime('now')` + set

	_, err := s.db.Exec(query, missionID, profileID, date, childCompleted, parentValidated, validationRequested, result)
	if err != nil {
		return nil, fmt.Errorf("upsert daily log: %w", err)
	}

	return s.GetByKey(missionID, profileID, date)
}

// GetByKey returns the log for the unique (mission, profile, date) key, or nil.
func (s *DailyLogStore) GetByKey(missionID, profileID int64, date string) (*model.DailyLog, error) {
	row := s.db.QueryRow(
		`SELECT `+logCols+` FROM daily_logs WHERE mission_id = ? AND profile_id = ? AND date = ?`,
		missionID, profileID, date,
	)
	l, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily log: %w", err)
	}
	return l, nil
}

// ListForDay returns all of the child's logs for the given date.
func (s *DailyLogStore) ListForDay(profileID int64, date string) ([]model.DailyLog, error) {
	rows, err := s.db.Query(
		`SELECT `+logCols+` FROM daily_logs WHERE profile_id = ? AND date = ? ORDER BY mission_id ASC`,
		profileID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}
	defer rows.Close()

	var logs []model.DailyLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// RequestValidationAll marks every one of the child's logs for the date as
// requested and completed in a single transaction, creating rows for the
// given missions where none exist yet. The completed flag is forced on so a
// review request always covers the full mission list.
func (s *DailyLogStore) RequestValidationAll(missionIDs []int64, profileID int64, date string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, missionID := range missionIDs {
		_, err := tx.Exec(
			`INSERT INTO daily_logs (mission_id, profile_id, date, child_completed, validation_requested)
			 VALUES (?, ?, ?, 1, 1)
			 ON CONFLICT(mission_id, profile_id, date) DO UPDATE SET
				child_completed = 1, validation_requested = 1, updated_at = datetime('now')`,
			missionID, profileID, date,
		)
		if err != nil {
			return fmt.Errorf("request validation: %w", err)
		}
	}
	return tx.Commit()
}

// CloseDayAll stamps the validation result on every one of the child's logs
// for the date and drops the requested flag, in a single transaction.
func (s *DailyLogStore) CloseDayAll(profileID int64, date string, result model.ValidationResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE daily_logs SET validation_result = ?, validation_requested = 0, updated_at = datetime('now')
		 WHERE profile_id = ? AND date = ?`,
		string(result), profileID, date,
	)
	if err != nil {
		return fmt.Errorf("close day: %w", err)
	}
	return tx.Commit()
}

// ClearDay deletes every one of the child's logs for the date. This is the
// only destructive ledger operation; a single statement keeps it atomic with
// respect to in-flight toggles.
func (s *DailyLogStore) ClearDay(profileID int64, date string) error {
	_, err := s.db.Exec(
		`DELETE FROM daily_logs WHERE profile_id = ? AND date = ?`,
		profileID, date,
	)
	if err != nil {
		return fmt.Errorf("clear day: %w", err)
	}
	return nil
}

// CountForKey reports how many rows exist for a ledger key. Used by tests to
// assert key uniqueness; the unique index makes >1 impossible.
func (s *DailyLogStore) CountForKey(missionID, profileID int64, date string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM daily_logs WHERE mission_id = ? AND profile_id = ? AND date = ?`,
		missionID, profileID, date,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count daily logs: %w", err)
	}
	return n, nil
}
