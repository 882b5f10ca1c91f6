// Package catalog caches the activity and time slot lists members may
// submit against.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rehearsal/api/internal/attendance"
	"rehearsal/api/internal/ledger"
)

var (
	ErrUnknownActivity = errors.New("unknown activity")
	ErrUnknownTimeSlot = errors.New("unknown time slot")
	// ErrUnavailable means there is no activity list to check against.
	ErrUnavailable = errors.New("activity catalog unavailable")
)

// Registry holds the last good option lists. A lookup miss triggers one
// throttled refresh so newly added activities are accepted without waiting
// for the schedule.
type Registry struct {
	source   ledger.OptionsSource
	fallback ledger.Options

	mu          sync.RWMutex
	current     ledger.Options
	loaded      bool
	loadedAt    time.Time
	lastAttempt time.Time

	missInterval time.Duration
	now          func() time.Time
	cron         *cron.Cron
}

// NewRegistry creates a registry over source. fallback is served until the
// first successful load.
func NewRegistry(source ledger.OptionsSource, fallback ledger.Options) *Registry {
	return &Registry{
		source:       source,
		fallback:     fallback,
		missInterval: 30 * time.Second,
		now:          time.Now,
	}
}

// Refresh reloads the option lists. On failure the previous lists stay.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.lastAttempt = r.now()
	r.mu.Unlock()

	if r.source == nil {
		return nil
	}
	opts, err := r.source.Options(ctx)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}

	r.mu.Lock()
	r.current = opts
	r.loaded = true
	r.loadedAt = r.now()
	r.mu.Unlock()
	return nil
}

func (r *Registry) snapshot() (ledger.Options, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.loaded {
		return r.current, true
	}
	return r.fallback, false
}

// Options returns the cached lists, loading them on first use.
func (r *Registry) Options(ctx context.Context) (ledger.Options, error) {
	if opts, ok := r.snapshot(); ok {
		return opts, nil
	}
	if err := r.Refresh(ctx); err != nil {
		opts, _ := r.snapshot()
		if len(opts.Activities) > 0 {
			log.Printf("catalog: %v; serving fallback lists", err)
			return opts, nil
		}
		return ledger.Options{}, err
	}
	opts, _ := r.snapshot()
	return opts, nil
}

// LoadedAt reports when the lists were last loaded from the source.
func (r *Registry) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

// Validate checks activity and slot against the catalog. Without an activity
// list every request is refused, so no request can reach a tab that is not
// an activity. An empty slot list accepts every slot.
func (r *Registry) Validate(ctx context.Context, activity, slot string) error {
	opts, err := r.Options(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(opts.Activities) == 0 {
		return fmt.Errorf("%w: no activities configured", ErrUnavailable)
	}
	if err := check(opts, activity, slot); err == nil {
		return nil
	}

	if r.refreshDue() {
		if err := r.Refresh(ctx); err != nil {
			log.Printf("catalog: refresh on miss: %v", err)
		} else {
			opts, _ = r.snapshot()
		}
	}
	if len(opts.Activities) == 0 {
		return fmt.Errorf("%w: no activities configured", ErrUnavailable)
	}
	return check(opts, activity, slot)
}

func (r *Registry) refreshDue() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now().Sub(r.lastAttempt) >= r.missInterval
}

func check(opts ledger.Options, activity, slot string) error {
	activity = strings.TrimSpace(activity)
	if !slices.Contains(opts.Activities, activity) {
		return fmt.Errorf("%w: %q", ErrUnknownActivity, activity)
	}
	if slot == "" || len(opts.TimeSlots) == 0 {
		return nil
	}
	want := attendance.CanonicalSlot(slot)
	for _, s := range opts.TimeSlots {
		if attendance.CanonicalSlot(s) == want {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTimeSlot, slot)
}

// Start refreshes the lists on schedule (cron syntax or "@every 5m").
func (r *Registry) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := r.Refresh(ctx); err != nil {
			log.Printf("catalog: scheduled refresh: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule options refresh %q: %w", schedule, err)
	}
	r.cron = c
	c.Start()
	log.Printf("catalog: refresh scheduled %q", schedule)
	return nil
}

func (r *Registry) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}
