package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"rehearsal/api/internal/dedupe"
)

const uniqueViolation = "23505"

// IdempotencyStore keeps request records in Postgres when no Redis is
// configured.
type IdempotencyStore struct {
	db  *sql.DB
	ttl time.Duration
}

func NewIdempotencyStore(db *sql.DB, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{db: db, ttl: ttl}
}

func (s *IdempotencyStore) Begin(ctx context.Context, key string) (dedupe.Record, bool, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM submission_requests WHERE request_key=$1 AND expires_at < NOW()`, key); err != nil {
		return dedupe.Record{}, false, fmt.Errorf("expire request %s: %w", key, err)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submission_requests (request_key, state, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, key, string(dedupe.StatePending), now, now.Add(s.ttl))
	if err == nil {
		return dedupe.Record{State: dedupe.StatePending, CreatedAt: now}, true, nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return dedupe.Record{}, false, fmt.Errorf("claim request %s: %w", key, err)
	}

	var (
		rec    dedupe.Record
		state  string
		result []byte
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT state, result, created_at FROM submission_requests WHERE request_key=$1
	`, key).Scan(&state, &result, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.Begin(ctx, key)
	}
	if err != nil {
		return dedupe.Record{}, false, fmt.Errorf("lookup request %s: %w", key, err)
	}
	rec.State = dedupe.State(state)
	rec.Result = json.RawMessage(result)
	return rec, false, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key string, result json.RawMessage) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submission_requests (request_key, state, result, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_key) DO UPDATE
		SET state=EXCLUDED.state, result=EXCLUDED.result, expires_at=EXCLUDED.expires_at
	`, key, string(dedupe.StateDone), []byte(result), now, now.Add(s.ttl))
	if err != nil {
		return fmt.Errorf("complete request %s: %w", key, err)
	}
	return nil
}

func (s *IdempotencyStore) Abandon(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM submission_requests WHERE request_key=$1`, key); err != nil {
		return fmt.Errorf("abandon request %s: %w", key, err)
	}
	return nil
}
