// Package lock serializes ledger submissions per activity.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrLockTimeout = errors.New("lock not acquired")

// ErrLockLost is the cancellation cause of the holder's context when a shared
// lock expired or passed to another holder before fn returned.
var ErrLockLost = fmt.Errorf("%w: lock lost while held", ErrLockTimeout)

// Serializer runs fn while holding the exclusive lock for one activity.
// The lock is released when fn returns, whatever its result. If the lock is
// lost first, the context passed to fn is cancelled with ErrLockLost.
type Serializer interface {
	WithSheetLock(ctx context.Context, activity string, fn func(context.Context) error) error
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed lock. Entries are dropped once no goroutine
// holds or waits for them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) WithSheetLock(ctx context.Context, activity string, fn func(context.Context) error) error {
	key := strings.TrimSpace(activity)
	release, err := l.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (l *Local) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			l.drop(key, e)
		}, nil
	case <-ctx.Done():
		l.drop(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}
}

func (l *Local) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// size reports the number of live entries.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
