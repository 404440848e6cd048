package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SettingsStore holds per-family configuration records. Session-level flags
// that a client would otherwise keep in local storage (active profile,
// onboarding dismissed) live here so every device reads the same state at
// session start.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(familyID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE family_id = ? AND key = ?`,
		familyID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) GetAll(familyID int64) (map[string]string, error) {
	rows, err := s.db.Query(
		`SELECT key, value FROM settings WHERE family_id = ? ORDER BY key`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(familyID int64, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (family_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(family_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		familyID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
