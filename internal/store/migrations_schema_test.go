package store

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

var ledgerTables = []string{"attendance_submissions", "submission_requests"}

// TestMigrationsSchemaPostgres applies the migrations, rolls them back and
// applies them again, checking the tables and their constraints each way.
func TestMigrationsSchemaPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	migrations := os.DirFS(filepath.Join("..", "..", "db", "migrations"))

	if err := ApplyMigrationsFS(ctx, db, migrations); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	for _, table := range ledgerTables {
		if !tableExists(ctx, t, db, table) {
			t.Errorf("%s missing after up migrations", table)
		}
	}

	if err := rollBack(ctx, db, migrations); err != nil {
		t.Fatalf("down migrations: %v", err)
	}
	for _, table := range ledgerTables {
		if tableExists(ctx, t, db, table) {
			t.Errorf("%s left behind by down migrations", table)
		}
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}
	if err := ApplyMigrationsFS(ctx, db, migrations); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}
	for _, table := range ledgerTables {
		if !tableExists(ctx, t, db, table) {
			t.Errorf("%s missing after reapplying", table)
		}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO attendance_submissions (id, activity, person_name, session_date, requested_status, outcome)
		VALUES ('sub-ok', '취타', '김민수', '2026-03-14', 'present', 'applied')`)
	if err != nil {
		t.Fatalf("insert valid submission: %v", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO attendance_submissions (id, activity, person_name, session_date, requested_status, outcome)
		VALUES ('sub-bad', '취타', '김민수', '2026-03-14', 'present', 'bogus')`)
	if err == nil {
		t.Error("outcome check accepted 'bogus'")
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO submission_requests (request_key, state, expires_at)
		VALUES ('취타:req-1', 'finished', NOW() + INTERVAL '1 hour')`)
	if err == nil {
		t.Error("state check accepted 'finished'")
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO submission_requests (request_key, state)
		VALUES ('취타:req-2', 'pending')`)
	if err == nil {
		t.Error("request without expires_at accepted")
	}
}

func tableExists(ctx context.Context, t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var name sql.NullString
	if err := db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, "public."+table).Scan(&name); err != nil {
		t.Fatalf("look up %s: %v", table, err)
	}
	return name.Valid
}

// rollBack runs every *.down.sql file, newest first.
func rollBack(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	downs, err := fs.Glob(fsys, "*.down.sql")
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))
	for _, name := range downs {
		contents, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if text := strings.TrimSpace(string(contents)); text != "" {
			if _, err := db.ExecContext(ctx, text); err != nil {
				return err
			}
		}
	}
	return nil
}
