package lock

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rehearsal/api/internal/util"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a lock shared by every API replica that talks to the same ledger.
// Goroutines of one process queue on a Local lock first, so only one of them
// polls Redis at a time.
type Redis struct {
	client   *redis.Client
	local    *Local
	prefix   string
	ttl      time.Duration
	minRetry time.Duration
	maxRetry time.Duration
}

// NewRedis creates a lock whose keys expire after ttl unless the holder keeps
// extending them.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		client:   client,
		local:    NewLocal(),
		prefix:   "ledger-lock:",
		ttl:      ttl,
		minRetry: 10 * time.Millisecond,
		maxRetry: 250 * time.Millisecond,
	}
}

func (r *Redis) key(activity string) string {
	return r.prefix + strings.TrimSpace(activity)
}

func (r *Redis) WithSheetLock(ctx context.Context, activity string, fn func(context.Context) error) error {
	return r.local.WithSheetLock(ctx, activity, func(ctx context.Context) error {
		key := r.key(activity)
		token := util.NewID("lock")
		if err := r.acquire(ctx, key, token); err != nil {
			return err
		}

		held, lose := context.WithCancelCause(ctx)
		defer lose(nil)
		stop := make(chan struct{})
		done := make(chan struct{})
		go r.keepAlive(key, token, lose, stop, done)
		defer func() {
			close(stop)
			<-done
			r.release(key, token)
		}()
		return fn(held)
	})
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	wait := r.minRetry
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
			}
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-timer.C:
		}
		wait *= 2
		if wait > r.maxRetry {
			wait = r.maxRetry
		}
	}
}

// keepAlive extends the key while the holder is still working, so a slow
// ledger call cannot outlive the lock. When the key is gone or owned by
// someone else, or extending has failed for a whole ttl, the holder's context
// is cancelled with ErrLockLost.
func (r *Redis) keepAlive(key, token string, lose context.CancelCauseFunc, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	lastExtended := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
			extended, err := extendScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				log.Printf("lock: extend %s: %v", key, err)
				if time.Since(lastExtended) >= r.ttl {
					lose(fmt.Errorf("%w: %s: extend failing since %s", ErrLockLost, key, lastExtended.Format(time.RFC3339)))
					return
				}
			case extended == 0:
				log.Printf("lock: %s expired or taken over", key)
				lose(fmt.Errorf("%w: %s", ErrLockLost, key))
				return
			default:
				lastExtended = time.Now()
			}
		}
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
		log.Printf("lock: release %s: %v", key, err)
	}
}
