// Package dedupe remembers submission request IDs so a retried request
// replays its first outcome instead of writing the ledger twice.
package dedupe

import (
	"context"
	"encoding/json"
	"time"
)

type State string

const (
	// StatePending marks a request whose ledger write has started but not
	// reported back.
	StatePending State = "pending"
	StateDone    State = "done"
)

type Record struct {
	State     State           `json:"state"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store claims and settles request keys.
//
// Begin claims key as pending. When the key is already known it returns the
// existing record and created=false.
type Store interface {
	Begin(ctx context.Context, key string) (rec Record, created bool, err error)
	Complete(ctx context.Context, key string, result json.RawMessage) error
	Abandon(ctx context.Context, key string) error
}
