// Package db archives composed reports in PostgreSQL and announces them on
// a NOTIFY channel. Nothing is ever read back into a live session.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mindtriage/internal/scoring"
)

// ArchivedReport is one stored report.
type ArchivedReport struct {
	ID         int64
	SessionID  uuid.UUID
	Conditions []string
	Notes      string
	Results    []scoring.Result
	Report     string
	Fallback   bool
	CreatedAt  time.Time
}

// Repository wraps the archive queries.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// SaveReport inserts r and sets its ID.
func (r *Repository) SaveReport(ctx context.Context, rep *ArchivedReport) error {
	if rep.SessionID == uuid.Nil {
		return errors.New("save report: missing session id")
	}
	results, err := encodeResults(rep.Results)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}
	conditions := rep.Conditions
	if conditions == nil {
		conditions = []string{}
	}
	err = r.DB.QueryRowContext(ctx,
		`INSERT INTO triage_reports (session_id, conditions, notes, results, report, fallback, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id`,
		rep.SessionID, pq.Array(conditions), rep.Notes, results, rep.Report, rep.Fallback, rep.CreatedAt,
	).Scan(&rep.ID)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func encodeResults(results []scoring.Result) ([]byte, error) {
	if results == nil {
		results = []scoring.Result{}
	}
	return json.Marshal(results)
}
