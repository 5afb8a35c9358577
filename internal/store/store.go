// Package store keeps the pouch-verification log: one row per validated
// medication intake, pointing at the snapshot taken as proof.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Verification is one proven medication intake.
type Verification struct {
	ID           int64
	MedicationID string
	Name         string
	Color        string
	ImagePath    string
	VerifiedAt   time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the verification database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS verifications (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		med_id      TEXT NOT NULL,
		med_name    TEXT NOT NULL,
		color       TEXT NOT NULL,
		image_path  TEXT,
		verified_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verifications_med ON verifications(med_id, verified_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one verification.
func (s *Store) Record(ctx context.Context, v Verification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verifications (med_id, med_name, color, image_path, verified_at)
		 VALUES (?, ?, ?, ?, ?)`,
		v.MedicationID, v.Name, v.Color, v.ImagePath, v.VerifiedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record verification: %w", err)
	}
	return nil
}

// Recent returns the newest verifications, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Verification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, med_id, med_name, color, image_path, verified_at
		 FROM verifications ORDER BY verified_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query verifications: %w", err)
	}
	defer rows.Close()

	var out []Verification
	for rows.Next() {
		var v Verification
		var at string
		if err := rows.Scan(&v.ID, &v.MedicationID, &v.Name, &v.Color, &v.ImagePath, &at); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, at); err == nil {
			v.VerifiedAt = t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
