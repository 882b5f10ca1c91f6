// Package cli implements ledgerctl, the operator tool for the attendance
// ledger.
package cli

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"rehearsal/api/internal/attendance"
	"rehearsal/api/internal/config"
	"rehearsal/api/internal/ledger"
)

// Env is what the commands need from the outside world.
type Env struct {
	Config config.Config
	// OpenLedger connects the configured backend.
	OpenLedger func(ctx context.Context, cfg config.Config) (*ledger.Handle, error)
	Now        func() time.Time
}

// DefaultEnv reads the environment and opens the real backends.
func DefaultEnv() *Env {
	return &Env{
		Config:     config.Load(),
		OpenLedger: OpenLedger,
		Now:        time.Now,
	}
}

// OpenLedger opens the ledger described by cfg.
func OpenLedger(ctx context.Context, cfg config.Config) (*ledger.Handle, error) {
	return ledger.Open(ctx, ledger.OpenConfig{
		Backend: cfg.LedgerBackend,
		Sheets: ledger.SheetsConfig{
			SpreadsheetID: cfg.SheetsID,
			ClientEmail:   cfg.SheetsEmail,
			PrivateKey:    cfg.SheetsPrivateKey,
			ConfigRange:   cfg.SheetsConfigRange,
			Timeout:       cfg.LedgerTimeout,
		},
		SQLitePath:  cfg.SQLitePath,
		OptionsFile: cfg.OptionsFile,
		Fallback:    ledger.Options{Activities: cfg.Activities, TimeSlots: cfg.TimeSlots},
	})
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	Backend    string
	SQLitePath string
	env        *Env
}

var ValidFormats = []string{"text", "json"}

// config returns the environment config with flag overrides applied.
func (o *RootOptions) config() config.Config {
	cfg := o.env.Config
	if o.Backend != "" {
		cfg.LedgerBackend = o.Backend
	}
	if o.SQLitePath != "" {
		cfg.SQLitePath = o.SQLitePath
	}
	return cfg
}

func (o *RootOptions) openLedger(ctx context.Context) (*ledger.Handle, error) {
	h, err := o.env.OpenLedger(ctx, o.config())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open ledger", err)
	}
	return h, nil
}

func (o *RootOptions) resolver() (*attendance.Resolver, error) {
	r, err := attendance.LoadResolver(o.config().Timezone)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "timezone", err)
	}
	return r, nil
}

func (o *RootOptions) classifier() (*attendance.Classifier, error) {
	cfg := o.config()
	thresholds := attendance.Thresholds{Present: float64(cfg.PresentMinutes), Late: float64(cfg.LateMinutes)}
	if err := thresholds.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "thresholds", err)
	}
	return attendance.NewClassifier(thresholds), nil
}

// NewRootCommand creates the ledgerctl root command.
func NewRootCommand(env *Env) *cobra.Command {
	opts := &RootOptions{env: env}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and drive the rehearsal attendance ledger",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error once
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "ledger backend (sheets|sqlite), overrides LEDGER_BACKEND")
	cmd.PersistentFlags().StringVar(&opts.SQLitePath, "sqlite", "", "SQLite ledger path, overrides LEDGER_SQLITE_PATH")

	cmd.AddCommand(NewClassifyCommand(opts))
	cmd.AddCommand(NewOptionsCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))

	return cmd
}
