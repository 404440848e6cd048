package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/hearthquest/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func (s *BackupStore) Create(key string, sizeBytes int64, encrypted bool) (*model.BackupRecord, error) {
	result, err := s.db.Exec(
		`INSERT INTO backups (key, size_bytes, encrypted) VALUES (?, ?, ?)`,
		key, sizeBytes, encrypted,
	)
	if err != nil {
		return nil, fmt.Errorf("insert backup record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT id, key, size_bytes, encrypted, created_at FROM backups WHERE id = ?`, id)
	var b model.BackupRecord
	if err := row.Scan(&b.ID, &b.Key, &b.SizeBytes, &b.Encrypted, &b.CreatedAt); err != nil {
		return nil, fmt.Errorf("get backup record: %w", err)
	}
	return &b, nil
}

func (s *BackupStore) List(limit int) ([]model.BackupRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, key, size_bytes, encrypted, created_at FROM backups ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backup records: %w", err)
	}
	defer rows.Close()

	var records []model.BackupRecord
	for rows.Next() {
		var b model.BackupRecord
		if err := rows.Scan(&b.ID, &b.Key, &b.SizeBytes, &b.Encrypted, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup record: %w", err)
		}
		records = append(records, b)
	}
	return records, rows.Err()
}

func (s *BackupStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backup record: %w", err)
	}
	return nil
}
