// Package ledger reads and mutates the row-oriented attendance ledger: one
// sheet per activity, a header row, eight columns per record.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rehearsal/api/internal/attendance"
)

var (
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrHeaderMissing means the sheet has no header row, so row numbers
	// cannot be mapped onto the ledger layout.
	ErrHeaderMissing = errors.New("sheet has no header row")
)

// StoreError reports a failed call to the ledger backend. Ambiguous is set
// when a batch may have been applied even though no success was observed.
type StoreError struct {
	Op        string
	Err       error
	Ambiguous bool
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Ambiguous {
		return fmt.Sprintf("ledger %s (outcome unknown): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsAmbiguous reports whether err carries an ambiguous StoreError.
func IsAmbiguous(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Ambiguous
}

// Gateway is the external row store.
type Gateway interface {
	ResolveSheetID(ctx context.Context, activity string) (int64, error)
	// ReadRows returns every row of the sheet with the header as row 0.
	ReadRows(ctx context.Context, activity string) ([][]string, error)
	// ApplyBatch applies all operations or none.
	ApplyBatch(ctx context.Context, batch attendance.Batch) error
}

// Snapshot is a read of one sheet taken while its activity lock is held.
type Snapshot struct {
	Activity string
	SheetID  int64
	Header   []string
	Rows     []attendance.Row
}

// Load resolves the sheet and reads its data rows, header excluded.
func Load(ctx context.Context, gw Gateway, activity string) (Snapshot, error) {
	activity = strings.TrimSpace(activity)
	sheetID, err := gw.ResolveSheetID(ctx, activity)
	if err != nil {
		return Snapshot{}, err
	}
	values, err := gw.ReadRows(ctx, activity)
	if err != nil {
		return Snapshot{}, err
	}

	if len(values) < attendance.HeaderRows {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrHeaderMissing, activity)
	}
	snap := Snapshot{Activity: activity, SheetID: sheetID}
	snap.Header = values[0]
	snap.Rows = make([]attendance.Row, 0, len(values)-attendance.HeaderRows)
	for _, v := range values[attendance.HeaderRows:] {
		snap.Rows = append(snap.Rows, attendance.RowFromValues(v))
	}
	return snap, nil
}

// DefaultHeader is written to sheets created by the local ledger.
var DefaultHeader = []string{"곡", "이름", "날짜", "시간", "출결", "사유", "제출일", "제출시각"}
