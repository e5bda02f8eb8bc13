// Package registry stores the student records documents are verified
// against. Verification only reads it; rows get in through an explicit
// import.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/veridocproj/veridoc/internal/fields"
)

// Record is one registered student.
type Record struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	DOB            string    `json:"dob"`
	PassingYear    string    `json:"passing_year"`
	Board          string    `json:"board"`
	Gender         string    `json:"gender"`
	IdentityNumber string    `json:"identity_number"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Field returns the record's value for a matchable field.
func (r *Record) Field(f fields.Field) string {
	switch f {
	case fields.FieldName:
		return r.Name
	case fields.FieldDOB:
		return r.DOB
	case fields.FieldPassingYear:
		return r.PassingYear
	case fields.FieldBoard:
		return r.Board
	case fields.FieldGender:
		return r.Gender
	case fields.FieldIdentityNumber:
		return r.IdentityNumber
	}
	return ""
}

// Store persists student records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the registry database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			name            TEXT NOT NULL DEFAULT '',
			dob             TEXT NOT NULL DEFAULT '',
			passing_year    TEXT NOT NULL DEFAULT '',
			board           TEXT NOT NULL DEFAULT '',
			gender          TEXT NOT NULL DEFAULT '',
			identity_number TEXT NOT NULL DEFAULT '',
			updated_at      DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_students_identity ON students(identity_number);
	`)
	if err != nil {
		return fmt.Errorf("creating students table: %w", err)
	}
	return nil
}

// Insert writes records in one transaction. A zero UpdatedAt is stamped
// with the current time.
func (s *Store) Insert(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning registry insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO students (name, dob, passing_year, board, gender, identity_number, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing registry insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		updated := rec.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Name,
			rec.DOB,
			rec.PassingYear,
			rec.Board,
			rec.Gender,
			rec.IdentityNumber,
			updated.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("inserting student %q: %w", rec.Name, err)
		}
	}
	return tx.Commit()
}

// Records returns every student, lowest ID first.
func (s *Store) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, dob, passing_year, board, gender, identity_number, updated_at
		FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying students: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var updated string
		if err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.DOB,
			&rec.PassingYear,
			&rec.Board,
			&rec.Gender,
			&rec.IdentityNumber,
			&updated,
		); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		if updated != "" {
			if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
				rec.UpdatedAt = ts
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the number of registered students.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting students: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
