package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"rehearsal/api/internal/attendance"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sheets (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS sheet_rows (
	sheet_id        INTEGER NOT NULL REFERENCES sheets(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	activity        TEXT NOT NULL DEFAULT '',
	person_name     TEXT NOT NULL DEFAULT '',
	session_date    TEXT NOT NULL DEFAULT '',
	time_slot       TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL DEFAULT '',
	submitted_date  TEXT NOT NULL DEFAULT '',
	submitted_clock TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sheet_rows_position ON sheet_rows(sheet_id, position);
`

// SQLiteLedger keeps the ledger in a local SQLite file. Each batch runs in
// one transaction, which gives the same all-or-nothing guarantee as the
// spreadsheet backend.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite opens or creates the ledger database at path. Use ":memory:"
// for a throwaway ledger.
func OpenSQLite(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	// one writer at a time; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite ledger %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// EnsureSheet creates the sheet with a header row if it does not exist yet.
func (l *SQLiteLedger) EnsureSheet(ctx context.Context, title string, header []string) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, fmt.Errorf("sheet title is required")
	}
	if id, err := l.ResolveSheetID(ctx, title); err == nil {
		return id, nil
	} else if !errors.Is(err, ErrSheetNotFound) {
		return 0, err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StoreError{Op: "create sheet", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO sheets (title) VALUES (?)`, title)
	if err != nil {
		return 0, &StoreError{Op: "create sheet", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StoreError{Op: "create sheet", Err: err}
	}
	if err := insertRow(ctx, tx, id, 0, attendance.RowFromValues(header)); err != nil {
		return 0, &StoreError{Op: "create sheet", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &StoreError{Op: "create sheet", Err: err}
	}
	return id, nil
}

func (l *SQLiteLedger) ResolveSheetID(ctx context.Context, activity string) (int64, error) {
	var id int64
	err := l.db.QueryRowContext(ctx, `SELECT id FROM sheets WHERE title = ?`, activity).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrSheetNotFound, activity)
	}
	if err != nil {
		return 0, &StoreError{Op: "resolve sheet", Err: err}
	}
	return id, nil
}

func (l *SQLiteLedger) ReadRows(ctx context.Context, activity string) ([][]string, error) {
	sheetID, err := l.ResolveSheetID(ctx, activity)
	if err != nil {
		return nil, err
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT activity, person_name, session_date, time_slot, status, reason, submitted_date, submitted_clock
		FROM sheet_rows
		WHERE sheet_id = ?
		ORDER BY position
	`, sheetID)
	if err != nil {
		return nil, &StoreError{Op: "read rows", Err: err}
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var r attendance.Row
		if err := rows.Scan(&r.Activity, &r.PersonName, &r.SessionDate, &r.TimeSlot, &r.Status, &r.Reason, &r.SubmittedDate, &r.SubmittedClock); err != nil {
			return nil, &StoreError{Op: "read rows", Err: err}
		}
		out = append(out, r.Values())
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "read rows", Err: err}
	}
	return out, nil
}

// Categories returns the background category of every row, header included.
func (l *SQLiteLedger) Categories(ctx context.Context, activity string) ([]attendance.Category, error) {
	sheetID, err := l.ResolveSheetID(ctx, activity)
	if err != nil {
		return nil, err
	}
	rows, err := l.db.QueryContext(ctx, `SELECT category FROM sheet_rows WHERE sheet_id = ? ORDER BY position`, sheetID)
	if err != nil {
		return nil, &StoreError{Op: "read categories", Err: err}
	}
	defer rows.Close()

	var out []attendance.Category
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, &StoreError{Op: "read categories", Err: err}
		}
		out = append(out, attendance.Category(c))
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) ApplyBatch(ctx context.Context, batch attendance.Batch) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "apply batch", Err: err}
	}
	defer tx.Rollback()

	for _, op := range batch.Ops {
		if err := applyOp(ctx, tx, batch.SheetID, op); err != nil {
			return &StoreError{Op: "apply batch", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "apply batch", Err: err}
	}
	return nil
}

func applyOp(ctx context.Context, tx *sql.Tx, sheetID int64, op attendance.Operation) error {
	switch op.Kind {
	case attendance.OpDelete:
		if op.Row < attendance.HeaderRows {
			return fmt.Errorf("refusing to delete header row %d", op.Row)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet_id = ? AND position = ?`, sheetID, op.Row)
		if err != nil {
			return fmt.Errorf("delete row %d: %w", op.Row, err)
		}
		if err := expectOneRow(res, "delete", op.Row); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sheet_rows SET position = position - 1 WHERE sheet_id = ? AND position > ?`, sheetID, op.Row); err != nil {
			return fmt.Errorf("shift rows after %d: %w", op.Row, err)
		}
		return nil
	case attendance.OpAppend:
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM sheet_rows WHERE sheet_id = ?`, sheetID).Scan(&next); err != nil {
			return fmt.Errorf("locate append position: %w", err)
		}
		return insertRow(ctx, tx, sheetID, next, op.Values)
	case attendance.OpColor:
		res, err := tx.ExecContext(ctx, `UPDATE sheet_rows SET category = ? WHERE sheet_id = ? AND position = ?`, string(op.Category), sheetID, op.Row)
		if err != nil {
			return fmt.Errorf("color row %d: %w", op.Row, err)
		}
		return expectOneRow(res, "color", op.Row)
	default:
		return fmt.Errorf("unsupported operation %q", op.Kind)
	}
}

func insertRow(ctx context.Context, tx *sql.Tx, sheetID int64, position int, r attendance.Row) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sheet_rows (sheet_id, position, activity, person_name, session_date, time_slot, status, reason, submitted_date, submitted_clock)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sheetID, position, r.Activity, r.PersonName, r.SessionDate, r.TimeSlot, r.Status, r.Reason, r.SubmittedDate, r.SubmittedClock)
	if err != nil {
		return fmt.Errorf("insert row %d: %w", position, err)
	}
	return nil
}

func expectOneRow(res sql.Result, op string, row int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s row %d: %w", op, row, err)
	}
	if n != 1 {
		return fmt.Errorf("%s row %d: no such row", op, row)
	}
	return nil
}
