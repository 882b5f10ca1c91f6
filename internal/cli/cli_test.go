package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearsal/api/internal/config"
	"rehearsal/api/internal/ledger"
)

func testEnv(t *testing.T) (*Env, *ledger.SQLiteLedger) {
	t.Helper()
	l, err := ledger.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	_, err = l.EnsureSheet(context.Background(), "취타", ledger.DefaultHeader)
	require.NoError(t, err)

	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	env := &Env{
		Config: config.Config{
			LedgerBackend:  ledger.BackendSQLite,
			Activities:     []string{"취타"},
			TimeSlots:      []string{"19:00"},
			Timezone:       "Asia/Seoul",
			PresentMinutes: 10,
			LateMinutes:    40,
		},
		OpenLedger: func(context.Context, config.Config) (*ledger.Handle, error) {
			return &ledger.Handle{
				Gateway: l,
				Options: ledger.StaticOptions{Activities: []string{"취타"}, TimeSlots: []string{"19:00"}},
				Ping:    l.Ping,
				Close:   func() error { return nil },
			}, nil
		},
		Now: func() time.Time { return time.Date(2026, 3, 14, 19, 25, 0, 0, loc) },
	}
	return env, l
}

func run(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(env)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	env, _ := testEnv(t)
	cmd := NewRootCommand(env)
	for _, name := range []string{"classify", "options", "snapshot", "submit", "init"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	env, _ := testEnv(t)
	_, err := run(t, env, "--format", "yaml", "options")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestClassify(t *testing.T) {
	env, _ := testEnv(t)

	out, err := run(t, env, "classify", "--date", "2026-03-14", "--slot", "19:00")
	require.NoError(t, err)
	assert.Contains(t, out, "late (지각)")

	out, err = run(t, env, "--format", "json", "classify", "--date", "2026-03-14", "--slot", "19:00", "--at", "19:10")
	require.NoError(t, err)
	var resp struct {
		Status string         `json:"status"`
		Data   ClassifyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "present", string(resp.Data.FinalStatus))
	assert.Equal(t, 10.0, resp.Data.ElapsedMinutes)

	_, err = run(t, env, "classify", "--date", "2026-03-14", "--slot", "19:00", "--status", "absent")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOptions(t *testing.T) {
	env, _ := testEnv(t)
	out, err := run(t, env, "options")
	require.NoError(t, err)
	assert.Contains(t, out, "activities: 취타")
	assert.Contains(t, out, "time slots: 19:00")
}

func TestSubmitThenSnapshot(t *testing.T) {
	env, _ := testEnv(t)

	out, err := run(t, env, "submit", "--activity", "취타", "--name", "김민수", "--date", "2026-03-14", "--slot", "19:00")
	require.NoError(t, err)
	assert.Contains(t, out, "late (지각) at row 2")

	out, err = run(t, env, "--format", "json", "snapshot", "취타")
	require.NoError(t, err)
	var resp struct {
		Data []SnapshotRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 2, resp.Data[0].Line)
	assert.Equal(t, "김민수", resp.Data[0].Name)
	assert.Equal(t, "지각", resp.Data[0].Status)
	assert.Equal(t, "19:25", resp.Data[0].SubmittedClock)
}

func TestSubmitRejected(t *testing.T) {
	env, _ := testEnv(t)
	_, err := run(t, env, "submit", "--activity", "취타", "--name", "김민수", "--date", "2026-03-14", "--slot", "19:00", "--status", "general-excused")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")
}

func TestSnapshotMissingSheet(t *testing.T) {
	env, _ := testEnv(t)
	_, err := run(t, env, "snapshot", "축제")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrSheetNotFound))
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInitCreatesTabs(t *testing.T) {
	env, l := testEnv(t)
	out, err := run(t, env, "init", "축제", "도드리")
	require.NoError(t, err)
	assert.Contains(t, out, "축제: sheet")

	_, err = l.ResolveSheetID(context.Background(), "도드리")
	assert.NoError(t, err)
}

func TestOpenLedgerFailure(t *testing.T) {
	env, _ := testEnv(t)
	env.OpenLedger = func(context.Context, config.Config) (*ledger.Handle, error) {
		return nil, errors.New("no credentials")
	}
	_, err := run(t, env, "options")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFlagOverrides(t *testing.T) {
	env, _ := testEnv(t)
	var seen config.Config
	open := env.OpenLedger
	env.OpenLedger = func(ctx context.Context, cfg config.Config) (*ledger.Handle, error) {
		seen = cfg
		return open(ctx, cfg)
	}
	_, err := run(t, env, "--backend", "sqlite", "--sqlite", "/tmp/other.db", "options")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", seen.SQLitePath)
	assert.Equal(t, "sqlite", seen.LedgerBackend)
}
