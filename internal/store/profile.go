package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/hearthquest/internal/model"
)

// ErrParentExists is returned when creating a second parent profile for a
// family. Exactly one parent profile exists per family.
var ErrParentExists = errors.New("family already has a parent profile")

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var inviteCode sql.NullString

	err := scanner.Scan(
		&p.ID, &p.FamilyID, &p.Name, &p.Role, &p.Color,
		&p.HasPIN, &inviteCode, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inviteCode.Valid {
		p.InviteCode = inviteCode.String
	}
	return &p, nil
}

const profileCols = `id, family_id, name, role, color, pin IS NOT NULL, invite_code, created_at, updated_at`

// Create inserts a profile. Child profiles are provisioned with a fresh invite
// code for device pairing; a second parent for the same family is rejected.
func (s *ProfileStore) Create(familyID int64, name string, role model.Role, color string) (*model.Profile, error) {
	var inviteCode sql.NullString
	if role == model.RoleChild {
		inviteCode = sql.NullString{String: newInviteCode(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO profiles (family_id, name, role, color, invite_code) VALUES (?, ?, ?, ?, ?)`,
		familyID, name, string(role), color, inviteCode,
	)
	if err != nil {
		// The one-parent partial index surfaces as a UNIQUE violation on
		// profiles.family_id; the driver does not report the index name.
		if role == model.RoleParent && strings.Contains(err.Error(), "profiles.family_id") {
			return nil, ErrParentExists
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) GetByID(id int64) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByInviteCode(code string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE invite_code = ?`, code)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by invite code: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) ListByFamily(familyID int64) ([]model.Profile, error) {
	rows, err := s.db.Query(
		`SELECT `+profileCols+` FROM profiles WHERE family_id = ? ORDER BY role DESC, name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// Parent returns the family's parent profile, or nil if not provisioned yet.
func (s *ProfileStore) Parent(familyID int64) (*model.Profile, error) {
	row := s.db.QueryRow(
		`SELECT `+profileCols+` FROM profiles WHERE family_id = ? AND role = 'parent'`,
		familyID,
	)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get parent profile: %w", err)
	}
	return p, nil
}

// Children returns the family's child profiles.
func (s *ProfileStore) Children(familyID int64) ([]model.Profile, error) {
	rows, err := s.db.Query(
		`SELECT `+profileCols+` FROM profiles WHERE family_id = ? AND role = 'child' ORDER BY name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list child profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func (s *ProfileStore) Update(id int64, name, color string) (*model.Profile, error) {
	_, err := s.db.Exec(
		`UPDATE profiles SET name = ?, color = ?, updated_at = datetime('now') WHERE id = ?`,
		name, color, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// RotateInviteCode issues a fresh pairing code for a child profile.
func (s *ProfileStore) RotateInviteCode(id int64) (*model.Profile, error) {
	_, err := s.db.Exec(
		`UPDATE profiles SET invite_code = ?, updated_at = datetime('now') WHERE id = ? AND role = 'child'`,
		newInviteCode(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("rotate invite code: %w", err)
	}
	return s.GetByID(id)
}

// SetPIN hashes and stores a 4-digit access PIN for a parent profile.
func (s *ProfileStore) SetPIN(id int64, pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE profiles SET pin = ?, updated_at = datetime('now') WHERE id = ?`,
		string(hash), id,
	)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *ProfileStore) ClearPIN(id int64) error {
	_, err := s.db.Exec(
		`UPDATE profiles SET pin = NULL, updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

// VerifyPIN checks a candidate PIN against the stored hash. Returns false if
// no PIN is set.
func (s *ProfileStore) VerifyPIN(id int64, pin string) (bool, error) {
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT pin FROM profiles WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pin: %w", err)
	}
	if !hash.Valid {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(pin)) == nil, nil
}

func newInviteCode() string {
	// Short, shareable code: first segment of a UUID.
	return strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
}
