package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) RecordSubmission(ctx context.Context, sub Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_submissions (
			id, request_id, activity, person_name, session_date, time_slot,
			requested_status, final_status, category, reason, superseded, target_row,
			submitted_date, submitted_clock, outcome, error_code, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		sub.ID, sub.RequestID, sub.Activity, sub.PersonName, sub.SessionDate, sub.TimeSlot,
		sub.RequestedStatus, sub.FinalStatus, sub.Category, sub.Reason, sub.Superseded, sub.TargetRow,
		sub.SubmittedDate, sub.SubmittedClock, sub.Outcome, sub.ErrorCode, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

const submissionColumns = `
	id, request_id, activity, person_name, session_date, time_slot,
	requested_status, final_status, category, reason, superseded, target_row,
	submitted_date, submitted_clock, outcome, error_code, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (Submission, error) {
	var sub Submission
	err := row.Scan(
		&sub.ID,
		&sub.RequestID,
		&sub.Activity,
		&sub.PersonName,
		&sub.SessionDate,
		&sub.TimeSlot,
		&sub.RequestedStatus,
		&sub.FinalStatus,
		&sub.Category,
		&sub.Reason,
		&sub.Superseded,
		&sub.TargetRow,
		&sub.SubmittedDate,
		&sub.SubmittedClock,
		&sub.Outcome,
		&sub.ErrorCode,
		&sub.CreatedAt,
	)
	return sub, err
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM attendance_submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// ListSubmissions returns the newest submissions first. Query matches the
// person name, activity or reason.
func (s *PostgresStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM attendance_submissions
		WHERE ($1='' OR activity=$1)
		  AND ($2='' OR person_name ILIKE '%' || $2 || '%' OR activity ILIKE '%' || $2 || '%' OR reason ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3
	`, filter.Activity, filter.Query, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	items := make([]Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		items = append(items, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return items, nil
}
