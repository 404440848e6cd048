package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukerupert/hearthquest/internal/model"
)

// ErrTooManyReminders is returned when a mission is given more reminder times
// than model.MaxReminderTimes allows.
var ErrTooManyReminders = errors.New("too many reminder times")

type MissionStore struct {
	db *sql.DB
}

func NewMissionStore(db *sql.DB) *MissionStore {
	return &MissionStore{db: db}
}

func scanMission(scanner interface{ Scan(...any) error }) (*model.Mission, error) {
	var m model.Mission
	var assignedTo sql.NullInt64
	var reminders string

	err := scanner.Scan(
		&m.ID, &m.FamilyID, &m.Title, &m.Icon, &assignedTo,
		&reminders, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedTo.Valid {
		m.AssignedTo = &assignedTo.Int64
	}
	if err := json.Unmarshal([]byte(reminders), &m.ReminderTimes); err != nil {
		return nil, fmt.Errorf("decode reminder times: %w", err)
	}
	return &m, nil
}

const missionCols = `id, family_id, title, icon, assigned_to, reminder_times, sort_order, created_at, updated_at`

func encodeReminders(times []string) (string, error) {
	if len(times) > model.MaxReminderTimes {
		return "", ErrTooManyReminders
	}
	if times == nil {
		times = []string{}
	}
	data, err := json.Marshal(times)
	if err != nil {
		return "", fmt.Errorf("encode reminder times: %w", err)
	}
	return string(data), nil
}

func (s *MissionStore) Create(familyID int64, title, icon string, assignedTo *int64, reminderTimes []string) (*model.Mission, error) {
	reminders, err := encodeReminders(reminderTimes)
	if err != nil {
		return nil, err
	}

	var aTo sql.NullInt64
	if assignedTo != nil {
		aTo = sql.NullInt64{Int64: *assignedTo, Valid: true}
	}

	var maxOrder int
	err = s.db.QueryRow(`SELECT COALESCE(MAX(sort_order), -1) FROM missions WHERE family_id = ?`, familyID).Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO missions (family_id, title, icon, assigned_to, reminder_times, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, title, icon, aTo, reminders, maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert mission: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MissionStore) GetByID(id int64) (*model.Mission, error) {
	row := s.db.QueryRow(`SELECT `+missionCols+` FROM missions WHERE id = ?`, id)
	m, err := scanMission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	return m, nil
}

func (s *MissionStore) ListByFamily(familyID int64) ([]model.Mission, error) {
	rows, err := s.db.Query(
		`SELECT `+missionCols+` FROM missions WHERE family_id = ? ORDER BY sort_order ASC, title ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	var missions []model.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		missions = append(missions, *m)
	}
	return missions, rows.Err()
}

// ListForChild returns the missions on the child's daily list: missions
// assigned to the child plus unassigned missions, which apply to everyone.
func (s *MissionStore) ListForChild(familyID, profileID int64) ([]model.Mission, error) {
	rows, err := s.db.Query(
		`SELECT `+missionCols+` FROM missions
		 WHERE family_id = ? AND (assigned_to IS NULL OR assigned_to = ?)
		 ORDER BY sort_order ASC, title ASC`,
		familyID, profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list missions for child: %w", err)
	}
	defer rows.Close()

	var missions []model.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		missions = append(missions, *m)
	}
	return missions, rows.Err()
}

func (s *MissionStore) Update(id int64, title, icon string, assignedTo *int64, reminderTimes []string) (*model.Mission, error) {
	reminders, err := encodeReminders(reminderTimes)
	if err != nil {
		return nil, err
	}

	var aTo sql.NullInt64
	if assignedTo != nil {
		aTo = sql.NullInt64{Int64: *assignedTo, Valid: true}
	}

	_, err = s.db.Exec(
		`UPDATE missions SET title = ?, icon = ?, assigned_to = ?, reminder_times = ?, updated_at = datetime('now') WHERE id = ?`,
		title, icon, aTo, reminders, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update mission: %w", err)
	}
	return s.GetByID(id)
}

func (s *MissionStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM missions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mission: %w", err)
	}
	return nil
}

// UpdateSortOrder rewrites sort positions for the given missions. The family
// scope makes ids belonging to other families silent no-ops.
func (s *MissionStore) UpdateSortOrder(familyID int64, ids []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.Exec(`UPDATE missions SET sort_order = ? WHERE id = ? AND family_id = ?`, i, id, familyID); err != nil {
			return fmt.Errorf("update sort order: %w", err)
		}
	}
	return tx.Commit()
}
