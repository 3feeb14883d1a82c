package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/repcoach/internal/profile"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a profile for the same exercise already exists.
var ErrConflict = errors.New("already exists")

// ProfileRecord is a user-defined exercise profile stored in the database.
type ProfileRecord struct {
	ID        string
	Profile   *profile.Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileRepository provides CRUD operations for stored profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

// Create inserts a new profile into the database.
func (r *ProfileRepository) Create(rec *ProfileRecord) error {
	definition, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err = r.db.Exec(
		`INSERT INTO profiles (id, exercise_id, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Profile.ID, string(definition), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	return nil
}

// GetByID retrieves a profile by its record ID.
func (r *ProfileRepository) GetByID(id string) (*ProfileRecord, error) {
	return r.getOne(`SELECT id, definition, created_at, updated_at FROM profiles WHERE id = ?`, id)
}

// GetByExercise retrieves a profile by its exercise ID.
func (r *ProfileRepository) GetByExercise(exerciseID string) (*ProfileRecord, error) {
	return r.getOne(`SELECT id, definition, created_at, updated_at FROM profiles WHERE exercise_id = ?`, exerciseID)
}

func (r *ProfileRepository) getOne(query string, arg string) (*ProfileRecord, error) {
	rec, err := scanProfile(r.db.QueryRow(query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List retrieves all stored profiles ordered by exercise ID.
func (r *ProfileRepository) List() ([]*ProfileRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, definition, created_at, updated_at
		 FROM profiles ORDER BY exercise_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ProfileRecord
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Profiles returns the profile definitions of every stored record.
func (r *ProfileRepository) Profiles() ([]*profile.Profile, error) {
	records, err := r.List()
	if err != nil {
		return nil, err
	}
	out := make([]*profile.Profile, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Profile)
	}
	return out, nil
}

// Update replaces the definition of an existing profile.
func (r *ProfileRepository) Update(rec *ProfileRecord) error {
	definition, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	rec.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE profiles SET exercise_id = ?, definition = ?, updated_at = ?
		 WHERE id = ?`,
		rec.Profile.ID, string(definition), rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a profile from the database by its record ID.
func (r *ProfileRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*ProfileRecord, error) {
	rec := &ProfileRecord{}
	var definition string

	if err := row.Scan(&rec.ID, &definition, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	rec.Profile = &profile.Profile{}
	if err := json.Unmarshal([]byte(definition), rec.Profile); err != nil {
		return nil, fmt.Errorf("decoding profile %s: %w", rec.ID, err)
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
