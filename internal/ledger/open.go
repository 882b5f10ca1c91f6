package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

// OpenConfig selects and configures a ledger backend.
type OpenConfig struct {
	Backend     string
	Sheets      SheetsConfig
	SQLitePath  string
	OptionsFile string
	// Fallback seeds the SQLite tabs and is the option list when nothing
	// else provides one.
	Fallback Options
}

// Handle is an opened backend with its option listing.
type Handle struct {
	Gateway Gateway
	Options OptionsSource
	Ping    func(context.Context) error
	Close   func() error
}

// Open connects the configured backend. An options file always overrides
// the backend's own listing.
func Open(ctx context.Context, cfg OpenConfig) (*Handle, error) {
	var h *Handle
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendSheets, "":
		gw, err := NewSheetsGateway(ctx, cfg.Sheets)
		if err != nil {
			return nil, err
		}
		h = &Handle{Gateway: gw, Options: gw, Ping: gw.Ping, Close: func() error { return nil }}
	case BackendSQLite:
		l, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		for _, activity := range cfg.Fallback.Activities {
			if _, err := l.EnsureSheet(ctx, activity, DefaultHeader); err != nil {
				l.Close()
				return nil, fmt.Errorf("seed sheet %q: %w", activity, err)
			}
		}
		h = &Handle{Gateway: l, Options: StaticOptions(cfg.Fallback), Ping: l.Ping, Close: l.Close}
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}

	if path := strings.TrimSpace(cfg.OptionsFile); path != "" {
		log.Printf("ledger: reading options from %s", path)
		h.Options = FileOptions{Path: path}
	}
	return h, nil
}
